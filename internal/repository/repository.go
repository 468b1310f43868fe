package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a guarded update matched no row: the
// record was changed by someone else or is no longer in the expected status.
var ErrVersionConflict = errors.New("version conflict")

// Repositories groups every repository bound to the same connection or transaction.
type Repositories struct {
	Crops         CropRepository
	Negotiations  NegotiationRepository
	Chats         ChatRepository
	Events        EventRepository
	Orders        OrderRepository
	Samples       SampleRequestRepository
	Notifications NotificationRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Crops:         NewCropRepository(db),
		Negotiations:  NewNegotiationRepository(db),
		Chats:         NewChatRepository(db),
		Events:        NewEventRepository(db),
		Orders:        NewOrderRepository(db),
		Samples:       NewSampleRequestRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

// UnitOfWork runs fn against repositories sharing one database transaction.
// Returning an error from fn rolls everything back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(r Repositories) error) error
}

type gormUnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(r Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
