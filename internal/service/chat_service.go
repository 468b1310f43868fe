package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/metrics"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"gorm.io/gorm"
)

type ChatService interface {
	PostMessage(ctx context.Context, negotiationID uint64, uid, content string) (*model.ChatMessage, error)
	PostMessageToThread(ctx context.Context, threadID uint64, uid, content string) (*model.ChatMessage, error)
	GetThread(ctx context.Context, negotiationID uint64, uid string) (*model.ChatThread, []model.ChatMessage, error)
	GetThreadByID(ctx context.Context, threadID uint64, uid string) (*model.ChatThread, []model.ChatMessage, error)
	ListThreads(ctx context.Context, uid string) ([]model.ChatThread, error)
	MarkMessageRead(ctx context.Context, messageID uint64, uid string) error
}

type chatService struct {
	repos  repository.Repositories
	uow    repository.UnitOfWork
	relay  EventRelay
	notify NotificationService
	now    func() time.Time
	log    zerolog.Logger
}

func NewChatService(repos repository.Repositories, uow repository.UnitOfWork, relay EventRelay, notify NotificationService, log zerolog.Logger) ChatService {
	return &chatService{
		repos:  repos,
		uow:    uow,
		relay:  relay,
		notify: notify,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

func (s *chatService) PostMessage(ctx context.Context, negotiationID uint64, uid, content string) (*model.ChatMessage, error) {
	thread, err := s.threadForNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	return s.post(ctx, thread, uid, content)
}

func (s *chatService) PostMessageToThread(ctx context.Context, threadID uint64, uid, content string) (*model.ChatMessage, error) {
	thread, err := s.repos.Chats.FindThreadByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.post(ctx, thread, uid, content)
}

func (s *chatService) post(ctx context.Context, thread *model.ChatThread, uid, content string) (*model.ChatMessage, error) {
	role, ok := thread.RoleOf(uid)
	if !ok {
		return nil, ErrForbidden
	}
	content, err := validateText("content", content, true)
	if err != nil {
		return nil, err
	}
	msg := &model.ChatMessage{
		ThreadID:    thread.ID,
		SenderUID:   uid,
		SenderRole:  role,
		Content:     content,
		MessageType: model.MessageText,
		CreatedAt:   s.now(),
	}
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Chats.AppendMessage(ctx, msg); err != nil {
			return err
		}
		if thread.NegotiationID == nil {
			return nil
		}
		return enqueueEvent(ctx, r, *thread.NegotiationID, model.EventMessagePosted, messagePostedPayload{
			NegotiationID: *thread.NegotiationID,
			Message:       msg,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.ChatMessages.WithLabelValues(string(model.MessageText)).Inc()
	if thread.NegotiationID != nil && s.relay != nil {
		if _, err := s.relay.Flush(ctx); err != nil {
			s.log.Warn().Err(err).Uint64("thread_id", thread.ID).Msg("event flush failed, relay worker will retry")
		}
	}
	s.notify.Notify(ctx, thread.Counterpart(uid), NotifyMessageReceived, "New message", content, NotificationRefs{
		NegotiationID: thread.NegotiationID,
		ThreadID:      uint64Ptr(thread.ID),
	})
	return msg, nil
}

func (s *chatService) GetThread(ctx context.Context, negotiationID uint64, uid string) (*model.ChatThread, []model.ChatMessage, error) {
	thread, err := s.threadForNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, nil, err
	}
	return s.withMessages(ctx, thread, uid)
}

func (s *chatService) GetThreadByID(ctx context.Context, threadID uint64, uid string) (*model.ChatThread, []model.ChatMessage, error) {
	thread, err := s.repos.Chats.FindThreadByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return s.withMessages(ctx, thread, uid)
}

func (s *chatService) withMessages(ctx context.Context, thread *model.ChatThread, uid string) (*model.ChatThread, []model.ChatMessage, error) {
	if _, ok := thread.RoleOf(uid); !ok {
		return nil, nil, ErrForbidden
	}
	msgs, err := s.repos.Chats.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, nil, err
	}
	return thread, msgs, nil
}

func (s *chatService) ListThreads(ctx context.Context, uid string) ([]model.ChatThread, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	return s.repos.Chats.ListThreadsByUser(ctx, uid)
}

// MarkMessageRead is idempotent; only members of the message's thread may call it.
func (s *chatService) MarkMessageRead(ctx context.Context, messageID uint64, uid string) error {
	msg, err := s.repos.Chats.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	thread, err := s.repos.Chats.FindThreadByID(ctx, msg.ThreadID)
	if err != nil {
		return err
	}
	if _, ok := thread.RoleOf(uid); !ok {
		return ErrForbidden
	}
	if msg.IsRead {
		return nil
	}
	return s.repos.Chats.MarkRead(ctx, messageID)
}

func (s *chatService) threadForNegotiation(ctx context.Context, negotiationID uint64) (*model.ChatThread, error) {
	thread, err := s.repos.Chats.FindThreadByNegotiation(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return thread, nil
}
