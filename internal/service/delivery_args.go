package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/opencrvs/webhooks/internal/fhir"
)

const webhookDeliveryKind = "webhook_delivery"

// DeliveryPayload is the body POSTed to a subscriber callback.
type DeliveryPayload struct {
	Timestamp time.Time     `json:"timestamp"`
	ID        uuid.UUID     `json:"id"`
	Event     DeliveryEvent `json:"event"`
}

// DeliveryEvent wraps the filtered record in the hub envelope.
type DeliveryEvent struct {
	Hub     DeliveryHub    `json:"hub"`
	Context []*fhir.Bundle `json:"context"`
}

// DeliveryHub names the action that produced the event.
type DeliveryHub struct {
	Topic string `json:"topic"`
}

// DeliveryArgs is the job payload for one delivery to one registration.
// Payload is the pre-serialized body so the signature stays valid across
// retries. RegistrationID and DispatchToken together form the uniqueness
// key (river:"unique"): the token is fresh per trigger call so retries of
// the same trigger do not collide across queue jobs.
type DeliveryArgs struct {
	RegistrationID uuid.UUID       `json:"registration_id" river:"unique"`
	Action         string          `json:"action"`
	URL            string          `json:"url"`
	Payload        json.RawMessage `json:"payload"`
	Signature      string          `json:"signature"`
	DispatchToken  uuid.UUID       `json:"dispatch_token"  river:"unique"`
}

// Kind returns the River job kind.
func (DeliveryArgs) Kind() string { return webhookDeliveryKind }

var _ river.JobArgs = DeliveryArgs{}
