package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RouteMode is how passengers are validated on a route.
type RouteMode string

const (
	RouteModeRegistration  RouteMode = "REGISTRATION"
	RouteModeAuthorization RouteMode = "AUTHORIZATION"
)

// Valid reports whether m is a known route mode.
func (m RouteMode) Valid() bool {
	return m == RouteModeRegistration || m == RouteModeAuthorization
}

// Route is an operated line. Code is the external route id, unique within an organization only.
type Route struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"routeId"`
	Name           string    `json:"routeName"`
	Description    string    `json:"routeDescription,omitempty"`
	Mode           RouteMode `json:"routeMode"`
	OrganizationID uuid.UUID `json:"organizationId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Bus is a vehicle. RouteID is the current assignment and is overwritten by every reconciled order.
type Bus struct {
	ID             uuid.UUID `json:"id"`
	PlateNumber    string    `json:"busPlateNumber"`
	Description    string    `json:"busDescription,omitempty"`
	OrganizationID uuid.UUID `json:"organizationId"`
	RouteID        uuid.UUID `json:"routeId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NormalizePlate returns the case-insensitive comparison key for a plate number.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// CardType is the physical medium of an access card.
type CardType string

const (
	CardTypeNFC    CardType = "NFC"
	CardTypeRFID   CardType = "RFID"
	CardTypeQRCode CardType = "QR_CODE"
)

// Valid reports whether t is a known card type.
func (t CardType) Valid() bool {
	return t == CardTypeNFC || t == CardTypeRFID || t == CardTypeQRCode
}

// CardStatus is the lifecycle state of an access card.
type CardStatus string

const (
	CardStatusActive    CardStatus = "ACTIVE"
	CardStatusInactive  CardStatus = "INACTIVE"
	CardStatusSuspended CardStatus = "SUSPENDED"
)

// Valid reports whether s is a known card status.
func (s CardStatus) Valid() bool {
	return s == CardStatusActive || s == CardStatusInactive || s == CardStatusSuspended
}

// AccessCard is a passenger card. CardID is the external business key.
type AccessCard struct {
	ID             uuid.UUID  `json:"id"`
	CardID         string     `json:"cardId"`
	NameOnCard     string     `json:"nameOnCard,omitempty"`
	CardType       CardType   `json:"cardType"`
	CardStatus     CardStatus `json:"cardStatus"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Application is a validator device registered by a dashboard user.
type Application struct {
	ID          uuid.UUID `json:"id"`
	DeviceID    string    `json:"deviceId,omitempty"`
	Description string    `json:"appDescription,omitempty"`
	UserID      string    `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
