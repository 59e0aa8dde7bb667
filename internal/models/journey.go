package models

import (
	"time"

	"github.com/google/uuid"
)

// JourneyStatus is the validator outcome recorded for a journey.
type JourneyStatus string

const (
	JourneyRegistrationOK      JourneyStatus = "REGISTRATION_OK"
	JourneyRegistrationError   JourneyStatus = "REGISTRATION_ERROR"
	JourneyAuthorizationOK     JourneyStatus = "AUTHORIZATION_OK"
	JourneyAuthorizationFailed JourneyStatus = "AUTHORIZATION_FAILED"
	JourneyAuthorizationError  JourneyStatus = "AUTHORIZATION_ERROR"
)

// Valid reports whether s is a known journey status.
func (s JourneyStatus) Valid() bool {
	switch s {
	case JourneyRegistrationOK, JourneyRegistrationError, JourneyAuthorizationOK,
		JourneyAuthorizationFailed, JourneyAuthorizationError:
		return true
	}
	return false
}

// Journey is one passenger validation event. Journeys are append-only.
type Journey struct {
	ID            uuid.UUID     `json:"id"`
	Timestamp     time.Time     `json:"journeyTimeStamp"`
	Latitude      string        `json:"coordinatesLattitude,omitempty"`
	Longitude     string        `json:"coordinatesLongitude,omitempty"`
	Status        JourneyStatus `json:"journeyStatus,omitempty"`
	AccessCardID  uuid.UUID     `json:"accessCardId"`
	BusID         uuid.UUID     `json:"busId"`
	RouteID       uuid.UUID     `json:"routeId"`
	ApplicationID uuid.UUID     `json:"applicationId"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// JourneyDetail is a journey with its related entities joined.
type JourneyDetail struct {
	Journey
	AccessCard  AccessCard  `json:"accessCard"`
	Bus         Bus         `json:"bus"`
	Route       Route       `json:"route"`
	Application Application `json:"application"`
}
