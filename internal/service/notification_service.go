package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
)

const (
	NotifyNegotiationStarted = "negotiation_started"
	NotifyOfferReceived      = "offer_received"
	NotifyOfferAccepted      = "offer_accepted"
	NotifyNegotiationClosed  = "negotiation_closed"
	NotifyMessageReceived    = "message_received"
	NotifyOrderPlaced        = "order_placed"
	NotifyOrderUpdated       = "order_updated"
	NotifySampleRequested    = "sample_requested"
	NotifySampleAnswered     = "sample_answered"
)

// NotificationRefs points a notification at the records it is about.
type NotificationRefs struct {
	NegotiationID *uint64
	ThreadID      *uint64
	OrderID       *uint64
}

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, title, body string, refs NotificationRefs)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userUID string) error
	MarkByNegotiation(ctx context.Context, userUID string, negotiationID uint64) error
}

type notificationService struct {
	repo repository.NotificationRepository
	log  zerolog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, log zerolog.Logger) NotificationService {
	return &notificationService{repo: repo, log: log}
}

// Notify is best-effort; failures are logged and never reach the caller.
func (s *notificationService) Notify(ctx context.Context, userUID, typ, title, body string, refs NotificationRefs) {
	if userUID == "" || typ == "" {
		return
	}
	ctx, cancel := withShortDeadline(ctx)
	defer cancel()
	n := &model.Notification{
		UserUID:       userUID,
		Type:          typ,
		Title:         title,
		Body:          truncate(body, 200),
		NegotiationID: refs.NegotiationID,
		ThreadID:      refs.ThreadID,
		OrderID:       refs.OrderID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.log.Warn().Err(err).Str("user_uid", userUID).Str("type", typ).Msg("notification not stored")
	}
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}

func (s *notificationService) MarkByNegotiation(ctx context.Context, userUID string, negotiationID uint64) error {
	if userUID == "" || negotiationID == 0 {
		return nil
	}
	return s.repo.MarkByNegotiation(ctx, userUID, negotiationID)
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

// withShortDeadline keeps side work from holding up the main flow.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
}
