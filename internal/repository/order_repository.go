package repository

import (
	"context"
	"time"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id uint64) (*model.Order, error)
	FindByNegotiation(ctx context.Context, negotiationID uint64) (*model.Order, error)
	Update(ctx context.Context, o *model.Order) error
	SetAgreementURL(ctx context.Context, id uint64, url string) error
	MarkDeliveredIfShipped(ctx context.Context, id uint64, wholesalerUID string, at time.Time) (int64, error)
	ListByParticipant(ctx context.Context, uid string, role model.Role) ([]model.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepository) FindByID(ctx context.Context, id uint64) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) FindByNegotiation(ctx context.Context, negotiationID uint64) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) Update(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Save(o).Error
}

func (r *orderRepository) SetAgreementURL(ctx context.Context, id uint64, url string) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Update("agreement_url", url).Error
}

func (r *orderRepository) MarkDeliveredIfShipped(ctx context.Context, id uint64, wholesalerUID string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND wholesaler_uid = ? AND status = ?", id, wholesalerUID, model.OrderStatusShipped).
		Updates(map[string]interface{}{
			"status":       model.OrderStatusDelivered,
			"delivered_at": at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *orderRepository) ListByParticipant(ctx context.Context, uid string, role model.Role) ([]model.Order, error) {
	column := "wholesaler_uid"
	if role == model.RoleFarmer {
		column = "farmer_uid"
	}
	var list []model.Order
	if err := r.db.WithContext(ctx).
		Where(column+" = ?", uid).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
