package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/opencrvs/webhooks/internal/datatypes"
)

// Registration binds one (event, action) pair to a subscriber callback URL.
// Registrations are created only after a successful handshake and are never
// mutated in place; only deletion changes state.
type Registration struct {
	ID        uuid.UUID        `json:"id"`
	CreatedBy string           `json:"created_by"`
	Event     datatypes.Event  `json:"event"`
	Action    datatypes.Action `json:"action"`
	Address   string           `json:"address"`
	CreatedAt time.Time        `json:"created_at"`
}

// Topic returns the registration's subscription topic.
func (r *Registration) Topic() string {
	return datatypes.Topic(r.Event, r.Action)
}

// CreateRegistrationRequest is the persistence request built by the
// handshake after the challenge check passed.
type CreateRegistrationRequest struct {
	ID        uuid.UUID
	CreatedBy string
	Event     datatypes.Event
	Action    datatypes.Action
	Address   string
}

// RegistrationOwner identifies the subscriber a registration belongs to in
// list responses.
type RegistrationOwner struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Username string `json:"username"`
}

// RegistrationEntry is one element of the list response.
type RegistrationEntry struct {
	ID        uuid.UUID         `json:"id"`
	Callback  string            `json:"callback"`
	CreatedAt string            `json:"createdAt"`
	CreatedBy RegistrationOwner `json:"createdBy"`
	Topic     string            `json:"topic"`
}

// ListRegistrationsResponse is the list endpoint envelope.
type ListRegistrationsResponse struct {
	Entries []RegistrationEntry `json:"entries"`
}
