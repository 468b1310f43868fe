package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is derived from exactly one accepted negotiation; its pricing is copied verbatim.
type Order struct {
	ID            uint64      `gorm:"primaryKey;autoIncrement"`
	NegotiationID uint64      `gorm:"column:negotiation_id;not null;uniqueIndex:uk_orders_negotiation"`
	CropID        uint64      `gorm:"column:crop_id;not null;index"`
	FarmerUID     string      `gorm:"column:farmer_uid;size:128;not null;index"`
	WholesalerUID string      `gorm:"column:wholesaler_uid;size:128;not null;index"`
	PricePerUnit  float64     `gorm:"column:price_per_unit;not null"`
	Quantity      Quantity    `gorm:"embedded;embeddedPrefix:quantity_"`
	TotalAmount   float64     `gorm:"column:total_amount;not null"`
	Status        OrderStatus `gorm:"column:status;size:16;not null"`
	AgreementURL  string      `gorm:"column:agreement_url;size:512"`
	ShippedAt     *time.Time  `gorm:"column:shipped_at"`
	DeliveredAt   *time.Time  `gorm:"column:delivered_at"`
	CancelledAt   *time.Time  `gorm:"column:cancelled_at"`
	CreatedAt     time.Time   `gorm:"autoCreateTime"`
	UpdatedAt     time.Time   `gorm:"autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
