package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Organization is a client of the fleet operator. TaxID is the join key used by the external order system.
type Organization struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Slug      string          `json:"slug"`
	Logo      string          `json:"logo,omitempty"`
	TaxID     string          `json:"taxId"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Member roles as issued by the auth provider in session tokens.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
	RoleDriver = "driver"
)
