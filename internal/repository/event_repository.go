package repository

import (
	"context"
	"time"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"gorm.io/gorm"
)

type EventRepository interface {
	Create(ctx context.Context, ev *model.NegotiationEvent) error
	ListPending(ctx context.Context, limit int) ([]model.NegotiationEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	IncrementAttempts(ctx context.Context, id string) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, ev *model.NegotiationEvent) error {
	return r.db.WithContext(ctx).Create(ev).Error
}

// ListPending returns unpublished events oldest first. Event ids are ULIDs so
// ordering by id follows creation order.
func (r *eventRepository) ListPending(ctx context.Context, limit int) ([]model.NegotiationEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var list []model.NegotiationEvent
	if err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *eventRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.NegotiationEvent{}).
		Where("id = ? AND published_at IS NULL", id).
		Update("published_at", at).Error
}

func (r *eventRepository) IncrementAttempts(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&model.NegotiationEvent{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).Error
}
