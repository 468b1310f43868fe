package realtime

import (
	"context"
	"encoding/json"
)

// Event is one frame fanned out to the members of a negotiation room.
// ID is stable across redeliveries so clients can drop duplicates.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	NegotiationID uint64          `json:"negotiationId"`
	Data          json.RawMessage `json:"data"`
}

// Broadcaster delivers events to connected parties. Delivery is best effort;
// the persisted chat history stays the source of truth.
type Broadcaster interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event. Used when no transport is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
