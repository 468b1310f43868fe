package repository

import (
	"context"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"gorm.io/gorm"
)

type ChatRepository interface {
	CreateThread(ctx context.Context, t *model.ChatThread) error
	FindThreadByID(ctx context.Context, id uint64) (*model.ChatThread, error)
	FindThreadByNegotiation(ctx context.Context, negotiationID uint64) (*model.ChatThread, error)
	ListThreadsByUser(ctx context.Context, uid string) ([]model.ChatThread, error)
	// AppendMessage inserts msg and refreshes the thread's lastMessage cache.
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, threadID uint64) ([]model.ChatMessage, error)
	CountMessages(ctx context.Context, threadID uint64) (int64, error)
	FindMessage(ctx context.Context, id uint64) (*model.ChatMessage, error)
	MarkRead(ctx context.Context, id uint64) error
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateThread(ctx context.Context, t *model.ChatThread) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *chatRepository) FindThreadByID(ctx context.Context, id uint64) (*model.ChatThread, error) {
	var t model.ChatThread
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *chatRepository) FindThreadByNegotiation(ctx context.Context, negotiationID uint64) (*model.ChatThread, error) {
	var t model.ChatThread
	if err := r.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *chatRepository) ListThreadsByUser(ctx context.Context, uid string) ([]model.ChatThread, error) {
	var list []model.ChatThread
	if err := r.db.WithContext(ctx).
		Where("farmer_uid = ? OR wholesaler_uid = ?", uid, uid).
		Order("updated_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *chatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(msg).Error; err != nil {
		return err
	}
	res := db.Model(&model.ChatThread{}).
		Where("id = ?", msg.ThreadID).
		Updates(map[string]interface{}{
			"last_message_content": msg.Content,
			"last_message_at":      msg.CreatedAt,
			"updated_at":           msg.CreatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *chatRepository) ListMessages(ctx context.Context, threadID uint64) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	if err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *chatRepository) CountMessages(ctx context.Context, threadID uint64) (int64, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("thread_id = ?", threadID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *chatRepository) FindMessage(ctx context.Context, id uint64) (*model.ChatMessage, error) {
	var m model.ChatMessage
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkRead sets is_read. Callers check that the message exists first.
func (r *chatRepository) MarkRead(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("id = ?", id).
		Update("is_read", true).Error
}
