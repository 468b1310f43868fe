package model

import "time"

type SampleStatus string

const (
	SamplePending  SampleStatus = "pending"
	SampleAccepted SampleStatus = "accepted"
	SampleRejected SampleStatus = "rejected"
)

type SampleRequest struct {
	ID            uint64       `gorm:"primaryKey;autoIncrement" json:"id"`
	CropID        uint64       `gorm:"column:crop_id;not null;index" json:"cropId"`
	FarmerUID     string       `gorm:"column:farmer_uid;size:128;not null;index" json:"farmerUid"`
	WholesalerUID string       `gorm:"column:wholesaler_uid;size:128;not null;index" json:"wholesalerUid"`
	Status        SampleStatus `gorm:"column:status;size:16;not null" json:"status"`
	Message       string       `gorm:"column:message;size:1000" json:"message,omitempty"`
	ThreadID      *uint64      `gorm:"column:thread_id" json:"threadId,omitempty"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (SampleRequest) TableName() string {
	return "sample_requests"
}
