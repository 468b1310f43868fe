package model

import "time"

// Crop is a produce listing owned by a farmer. The negotiation core only reads it.
type Crop struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	FarmerUID         string    `gorm:"column:farmer_uid;size:128;not null;index" json:"farmerUid"`
	Name              string    `gorm:"size:120;not null" json:"name"`
	Category          string    `gorm:"size:64;not null;index" json:"category"`
	Season            string    `gorm:"size:32" json:"season"`
	ReferencePrice    float64   `gorm:"column:reference_price;not null" json:"referencePrice"`
	Unit              string    `gorm:"size:32;not null" json:"unit"`
	AvailableQuantity float64   `gorm:"column:available_quantity" json:"availableQuantity"`
	SampleRequests    int64     `gorm:"column:sample_requests;not null;default:0" json:"sampleRequests"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Crop) TableName() string {
	return "crops"
}
