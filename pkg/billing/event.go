package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrymomot/subledger/pkg/validator"
)

// EventType names a payment provider notification.
type EventType string

const (
	EventPaymentProcessed      EventType = "payment_processed"
	EventPaymentFailed         EventType = "payment_failed"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
)

// EventTypes lists the notifications the reconciler understands.
var EventTypes = []EventType{EventPaymentProcessed, EventPaymentFailed, EventSubscriptionCancelled}

// Event is a provider notification. It is not stored; its effects are. ID is
// optional; when present it makes replays detectable.
type Event struct {
	ID             string         `json:"event_id,omitempty"`
	Type           EventType      `json:"event_type"`
	SubscriptionID string         `json:"subscription_id"`
	UserID         string         `json:"user_id"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Validate checks the event shape: a known type, both ids and a timestamp.
func (e Event) Validate() error {
	err := validator.Apply(
		validator.OneOf("event_type", e.Type, EventTypes),
		validator.RequiredString("subscription_id", e.SubscriptionID),
		validator.RequiredString("user_id", e.UserID),
		validator.RequiredTime("timestamp", e.Timestamp),
		validator.MaxLenString("event_id", e.ID, 200),
	)
	if err != nil {
		return errors.Join(ErrInvalidEvent, err)
	}
	return nil
}

// ParseEvent decodes and validates a JSON event body. Timestamps must be
// RFC 3339.
func ParseEvent(body []byte) (Event, error) {
	var e Event
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return Event{}, errors.Join(ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
