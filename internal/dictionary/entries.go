package dictionary

import (
	"strings"

	"github.com/google/uuid"

	"github.com/bbus-fleet/backend/internal/models"
)

// BusEntry is one StateNumbersDictionary element.
type BusEntry struct {
	StateNumber string `json:"StateNumber"`
}

// RouteEntry is one RoutesDictionary element.
type RouteEntry struct {
	RouteUID1C      string `json:"routeUid1c"`
	CounterpartyInn string `json:"counterpartyInn"`
	RouteUID        string `json:"routeUid"`
}

// CardEntry is one cardsData element.
type CardEntry struct {
	CardID          string `json:"cardId"`
	NameOnCard      string `json:"nameOnCard"`
	CardType        string `json:"cardType"`
	CardStatus      string `json:"cardStatus"`
	CounterpartyInn string `json:"counterpartyInn"`
}

// RouteKey is the business key of a route.
type RouteKey struct {
	OrganizationID uuid.UUID
	Code           string
}

func (e BusEntry) toBus(identity models.ServiceIdentity) (models.Bus, bool) {
	plate := strings.TrimSpace(e.StateNumber)
	if plate == "" {
		return models.Bus{}, false
	}
	return models.Bus{
		PlateNumber:    plate,
		Description:    plate,
		OrganizationID: identity.DefaultOrganizationID,
		RouteID:        identity.DefaultRouteID,
	}, true
}

func (e RouteEntry) normalized() (RouteEntry, bool) {
	e.RouteUID = strings.TrimSpace(e.RouteUID)
	e.RouteUID1C = strings.TrimSpace(e.RouteUID1C)
	e.CounterpartyInn = strings.TrimSpace(e.CounterpartyInn)
	return e, e.RouteUID != "" && e.CounterpartyInn != ""
}

func (e RouteEntry) toRoute(organizationID uuid.UUID) models.Route {
	return models.Route{
		Code:           e.RouteUID,
		Name:           e.RouteUID,
		Description:    e.RouteUID1C + " - " + e.CounterpartyInn,
		Mode:           models.RouteModeRegistration,
		OrganizationID: organizationID,
	}
}

func (e CardEntry) normalized() (CardEntry, bool) {
	e.CardID = strings.TrimSpace(e.CardID)
	e.NameOnCard = strings.TrimSpace(e.NameOnCard)
	e.CardType = strings.ToUpper(strings.TrimSpace(e.CardType))
	e.CardStatus = strings.ToUpper(strings.TrimSpace(e.CardStatus))
	e.CounterpartyInn = strings.TrimSpace(e.CounterpartyInn)
	if e.CardStatus == "" {
		e.CardStatus = string(models.CardStatusActive)
	}
	ok := e.CardID != "" && models.CardType(e.CardType).Valid() && models.CardStatus(e.CardStatus).Valid()
	return e, ok
}

func (e CardEntry) toCard(organizationID uuid.UUID) models.AccessCard {
	return models.AccessCard{
		CardID:         e.CardID,
		NameOnCard:     e.NameOnCard,
		CardType:       models.CardType(e.CardType),
		CardStatus:     models.CardStatus(e.CardStatus),
		OrganizationID: organizationID,
	}
}
