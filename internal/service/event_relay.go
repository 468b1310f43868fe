package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/metrics"
	"github.com/shinyyama/agri-market-backend/internal/realtime"
	"github.com/shinyyama/agri-market-backend/internal/repository"
)

const (
	relayBatchSize     = 100
	maxPublishAttempts = 5
)

// EventRelay moves committed negotiation events to the realtime broadcaster.
// Delivery is at least once; subscribers dedupe on the event id.
type EventRelay interface {
	Flush(ctx context.Context) (int, error)
}

type eventRelay struct {
	mu          sync.Mutex
	events      repository.EventRepository
	broadcaster realtime.Broadcaster
	log         zerolog.Logger
	now         func() time.Time
}

func NewEventRelay(events repository.EventRepository, broadcaster realtime.Broadcaster, log zerolog.Logger) EventRelay {
	if broadcaster == nil {
		broadcaster = realtime.Nop{}
	}
	return &eventRelay{
		events:      events,
		broadcaster: broadcaster,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Flush publishes pending events in creation order and stops at the first
// failure so a negotiation's events never overtake each other.
func (r *eventRelay) Flush(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, err := r.events.ListPending(ctx, relayBatchSize)
	if err != nil {
		return 0, err
	}
	metrics.PendingOutboxEvents.Set(float64(len(pending)))

	published := 0
	for _, ev := range pending {
		if ev.Attempts >= maxPublishAttempts {
			r.log.Error().Str("event_id", ev.ID).Uint64("negotiation_id", ev.NegotiationID).Msg("dropping event after repeated publish failures")
			metrics.BroadcastEvents.WithLabelValues(string(ev.Type), "dropped").Inc()
			if err := r.events.MarkPublished(ctx, ev.ID, r.now()); err != nil {
				return published, err
			}
			continue
		}
		err := r.broadcaster.Publish(ctx, realtime.Event{
			ID:            ev.ID,
			Type:          string(ev.Type),
			NegotiationID: ev.NegotiationID,
			Data:          json.RawMessage(ev.Payload),
		})
		if err != nil {
			metrics.BroadcastEvents.WithLabelValues(string(ev.Type), "error").Inc()
			r.log.Warn().Err(err).Str("event_id", ev.ID).Msg("publish failed")
			if incErr := r.events.IncrementAttempts(ctx, ev.ID); incErr != nil {
				r.log.Warn().Err(incErr).Str("event_id", ev.ID).Msg("attempt count not stored")
			}
			return published, err
		}
		metrics.BroadcastEvents.WithLabelValues(string(ev.Type), "ok").Inc()
		if err := r.events.MarkPublished(ctx, ev.ID, r.now()); err != nil {
			return published, err
		}
		published++
	}
	metrics.PendingOutboxEvents.Set(float64(len(pending) - published))
	return published, nil
}
