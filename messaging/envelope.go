package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"betboard/events"

	"github.com/google/uuid"
)

// Envelope wraps a domain event for delivery to external brokers
type Envelope struct {
	ID         string           `json:"id"`
	Type       events.EventType `json:"type"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    json.RawMessage  `json:"payload"`
}

// NewEnvelope serializes the event under a fresh message id
func NewEnvelope(e events.Event, now time.Time) (*Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type(), err)
	}

	return &Envelope{
		ID:         uuid.NewString(),
		Type:       e.Type(),
		OccurredAt: now.UTC(),
		Payload:    payload,
	}, nil
}

// Subject returns the broker subject for the envelope under prefix
func (e *Envelope) Subject(prefix string) string {
	if prefix == "" {
		return string(e.Type)
	}
	return prefix + "." + string(e.Type)
}
