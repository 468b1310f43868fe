package model

import "time"

type EventType string

const (
	EventOfferUpdated  EventType = "offer_updated"
	EventMessagePosted EventType = "message_posted"
)

// NegotiationEvent is an outbox row written in the same transaction as the
// negotiation change it describes. PublishedAt is set once the relay has handed
// it to the broadcaster.
type NegotiationEvent struct {
	ID            string     `gorm:"primaryKey;size:26"`
	NegotiationID uint64     `gorm:"column:negotiation_id;not null;index"`
	Type          EventType  `gorm:"column:type;size:32;not null"`
	Payload       string     `gorm:"column:payload;type:text;not null"`
	Attempts      int        `gorm:"column:attempts;not null;default:0"`
	PublishedAt   *time.Time `gorm:"column:published_at;index"`
	CreatedAt     time.Time  `gorm:"autoCreateTime"`
}

func (NegotiationEvent) TableName() string {
	return "negotiation_events"
}
