package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
)

type currentOfferPayload struct {
	Amount    float64    `json:"amount"`
	OfferedBy model.Role `json:"offeredBy"`
}

type offerUpdatedPayload struct {
	NegotiationID uint64                  `json:"negotiationId"`
	Status        model.NegotiationStatus `json:"status"`
	Version       uint64                  `json:"version"`
	CurrentOffer  currentOfferPayload     `json:"currentOffer"`
	Offer         *model.Offer            `json:"offer,omitempty"`
}

type messagePostedPayload struct {
	NegotiationID uint64             `json:"negotiationId"`
	Message       *model.ChatMessage `json:"message"`
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func enqueueEvent(ctx context.Context, r repository.Repositories, negotiationID uint64, typ model.EventType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.Events.Create(ctx, &model.NegotiationEvent{
		ID:            ulid.Make().String(),
		NegotiationID: negotiationID,
		Type:          typ,
		Payload:       string(data),
	})
}

func enqueueOfferUpdated(ctx context.Context, r repository.Repositories, n *model.Negotiation, offer *model.Offer) error {
	return enqueueEvent(ctx, r, n.ID, model.EventOfferUpdated, offerUpdatedPayload{
		NegotiationID: n.ID,
		Status:        n.Status,
		Version:       n.Version,
		CurrentOffer:  currentOfferPayload{Amount: n.CurrentOfferAmount, OfferedBy: n.CurrentOfferBy},
		Offer:         offer,
	})
}

// appendNegotiationMessage writes one message to the thread bound to
// negotiationID and queues its message_posted event, all on r.
func appendNegotiationMessage(ctx context.Context, r repository.Repositories, negotiationID uint64, uid string, role model.Role, typ model.MessageType, content string, now time.Time) (*model.ChatMessage, error) {
	thread, err := r.Chats.FindThreadByNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("chat thread for negotiation %d: %w", negotiationID, err)
	}
	msg := &model.ChatMessage{
		ThreadID:    thread.ID,
		SenderUID:   uid,
		SenderRole:  role,
		Content:     truncate(content, model.MaxMessageLength),
		MessageType: typ,
		CreatedAt:   now,
	}
	if err := r.Chats.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := enqueueEvent(ctx, r, negotiationID, model.EventMessagePosted, messagePostedPayload{NegotiationID: negotiationID, Message: msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
