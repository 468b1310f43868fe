package model

import "time"

type MessageType string

const (
	MessageText   MessageType = "text"
	MessageOffer  MessageType = "offer"
	MessageSystem MessageType = "system"
)

// MaxMessageLength bounds ChatMessage.Content, counted in characters.
const MaxMessageLength = 1000

// ChatThread is the message log between a farmer and a wholesaler. It is bound
// either to one negotiation or to one accepted sample request.
type ChatThread struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	NegotiationID      *uint64    `gorm:"column:negotiation_id;uniqueIndex:uk_chat_threads_negotiation" json:"negotiationId,omitempty"`
	SampleRequestID    *uint64    `gorm:"column:sample_request_id;uniqueIndex:uk_chat_threads_sample" json:"sampleRequestId,omitempty"`
	CropID             uint64     `gorm:"column:crop_id;not null;index" json:"cropId"`
	FarmerUID          string     `gorm:"column:farmer_uid;size:128;not null;index" json:"farmerUid"`
	WholesalerUID      string     `gorm:"column:wholesaler_uid;size:128;not null;index" json:"wholesalerUid"`
	LastMessageContent string     `gorm:"column:last_message_content;size:1000" json:"lastMessage,omitempty"`
	LastMessageAt      *time.Time `gorm:"column:last_message_at" json:"lastMessageAt,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (ChatThread) TableName() string {
	return "chat_threads"
}

func (t *ChatThread) RoleOf(uid string) (Role, bool) {
	switch {
	case uid == "":
		return "", false
	case uid == t.FarmerUID:
		return RoleFarmer, true
	case uid == t.WholesalerUID:
		return RoleWholesaler, true
	}
	return "", false
}

func (t *ChatThread) Counterpart(uid string) string {
	if uid == t.FarmerUID {
		return t.WholesalerUID
	}
	return t.FarmerUID
}

type ChatMessage struct {
	ID          uint64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID    uint64      `gorm:"column:thread_id;not null;index" json:"threadId"`
	SenderUID   string      `gorm:"column:sender_uid;size:128;not null;index" json:"senderUid"`
	SenderRole  Role        `gorm:"column:sender_role;size:16;not null" json:"senderRole"`
	Content     string      `gorm:"column:content;size:1000;not null" json:"content"`
	MessageType MessageType `gorm:"column:message_type;size:16;not null" json:"messageType"`
	IsRead      bool        `gorm:"column:is_read;not null;default:false" json:"isRead"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
