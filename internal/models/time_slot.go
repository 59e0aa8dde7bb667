package models

import (
	"time"

	"github.com/google/uuid"
)

// TimeSlot ties a bus to a route for one operating window. OrderExternalID is the upsert key.
type TimeSlot struct {
	ID              uuid.UUID `json:"id"`
	RouteID         uuid.UUID `json:"routeId"`
	RouteCode       string    `json:"route1cId"`
	StartsAt        time.Time `json:"startTimestamp"`
	EndsAt          time.Time `json:"endTimestamp"`
	OrderExternalID string    `json:"orderId"`
	BusID           uuid.UUID `json:"busId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TimeSlotData is the replaceable part of a time slot.
type TimeSlotData struct {
	RouteID   uuid.UUID `json:"routeId"`
	RouteCode string    `json:"route1cId"`
	StartsAt  time.Time `json:"startTimestamp"`
	EndsAt    time.Time `json:"endTimestamp"`
	BusID     uuid.UUID `json:"busId"`
}

// Apply overwrites every replaceable field of s with d.
func (s *TimeSlot) Apply(d TimeSlotData) {
	s.RouteID = d.RouteID
	s.RouteCode = d.RouteCode
	s.StartsAt = d.StartsAt
	s.EndsAt = d.EndsAt
	s.BusID = d.BusID
}
