package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction classifies an audit log entry.
type AuditAction string

const (
	AuditCreate AuditAction = "CREATE"
	AuditUpdate AuditAction = "UPDATE"
	AuditGet    AuditAction = "GET"
	AuditAccess AuditAction = "ACCESS"
	AuditDelete AuditAction = "DELETE"
)

// AuditLog records who changed what. ActorID is an auth-provider user id.
type AuditLog struct {
	ID            uuid.UUID   `json:"id"`
	ActorID       string      `json:"userId"`
	Action        AuditAction `json:"logActionType"`
	Metadata      string      `json:"metadata"`
	ApplicationID *uuid.UUID  `json:"applicationId,omitempty"`
	TimeStamp     time.Time   `json:"timeStamp"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// ServiceIdentity is the actor and the stand-in entities used for webhook-driven writes.
type ServiceIdentity struct {
	ActorID               string
	DefaultOrganizationID uuid.UUID
	DefaultRouteID        uuid.UUID
}
