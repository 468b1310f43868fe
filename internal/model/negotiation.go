package model

import "time"

type NegotiationStatus string

const (
	NegotiationOngoing   NegotiationStatus = "ongoing"
	NegotiationAccepted  NegotiationStatus = "accepted"
	NegotiationRejected  NegotiationStatus = "rejected"
	NegotiationExpired   NegotiationStatus = "expired"
	NegotiationCancelled NegotiationStatus = "cancelled"
)

// Terminal reports whether no further offers or accepts are allowed.
func (s NegotiationStatus) Terminal() bool {
	return s != NegotiationOngoing
}

// Negotiation is the price discussion between one farmer and one wholesaler over one crop.
// Version is bumped by every write and guards concurrent updates.
type Negotiation struct {
	ID                 uint64            `gorm:"primaryKey;autoIncrement"`
	CropID             uint64            `gorm:"column:crop_id;not null;index"`
	FarmerUID          string            `gorm:"column:farmer_uid;size:128;not null;index"`
	WholesalerUID      string            `gorm:"column:wholesaler_uid;size:128;not null;index"`
	InitialPrice       float64           `gorm:"column:initial_price;not null"`
	CurrentOfferAmount float64           `gorm:"column:current_offer_amount;not null"`
	CurrentOfferBy     Role              `gorm:"column:current_offer_by;size:16;not null"`
	AgreedQuantity     Quantity          `gorm:"embedded;embeddedPrefix:agreed_quantity_"`
	Status             NegotiationStatus `gorm:"column:status;size:16;not null;index"`
	FinalAgreedPrice   *float64          `gorm:"column:final_agreed_price"`
	TotalAmount        *float64          `gorm:"column:total_amount"`
	AcceptedBy         *Role             `gorm:"column:accepted_by;size:16"`
	AcceptedAt         *time.Time        `gorm:"column:accepted_at"`
	ClosedBy           *Role             `gorm:"column:closed_by;size:16"`
	CloseReason        string            `gorm:"column:close_reason;size:1000"`
	ClosedAt           *time.Time        `gorm:"column:closed_at"`
	ExpiresAt          time.Time         `gorm:"column:expires_at;not null;index"`
	Version            uint64            `gorm:"column:version;not null"`
	Offers             []Offer           `gorm:"foreignKey:NegotiationID"`
	CreatedAt          time.Time         `gorm:"autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime"`
}

func (Negotiation) TableName() string {
	return "negotiations"
}

// RoleOf returns the slot uid occupies on this negotiation.
func (n *Negotiation) RoleOf(uid string) (Role, bool) {
	switch {
	case uid == "":
		return "", false
	case uid == n.FarmerUID:
		return RoleFarmer, true
	case uid == n.WholesalerUID:
		return RoleWholesaler, true
	}
	return "", false
}

// UIDOf returns the user occupying role.
func (n *Negotiation) UIDOf(role Role) string {
	if role == RoleFarmer {
		return n.FarmerUID
	}
	return n.WholesalerUID
}

// PastDeadline reports whether an ongoing negotiation has outlived ExpiresAt.
func (n *Negotiation) PastDeadline(now time.Time) bool {
	return n.Status == NegotiationOngoing && !n.ExpiresAt.IsZero() && now.After(n.ExpiresAt)
}

// Offer is one proposal in a negotiation's history. Seq is its 1-based position.
type Offer struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	NegotiationID uint64    `gorm:"column:negotiation_id;not null;uniqueIndex:uk_offers_negotiation_seq,priority:1;uniqueIndex:uk_offers_negotiation_key,priority:1" json:"-"`
	Seq           int       `gorm:"column:seq;not null;uniqueIndex:uk_offers_negotiation_seq,priority:2" json:"seq"`
	OfferedBy     Role      `gorm:"column:offered_by;size:16;not null;uniqueIndex:uk_offers_negotiation_key,priority:2" json:"offeredBy"`
	Amount        float64   `gorm:"column:amount;not null" json:"amount"`
	Quantity      Quantity  `gorm:"embedded;embeddedPrefix:quantity_" json:"quantity"`
	Message       string    `gorm:"column:message;size:1000" json:"message,omitempty"`
	ClientKey     *string   `gorm:"column:client_key;size:64;uniqueIndex:uk_offers_negotiation_key,priority:3" json:"-"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"timestamp"`
}

func (Offer) TableName() string {
	return "offers"
}
