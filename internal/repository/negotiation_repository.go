package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"gorm.io/gorm"
)

type NegotiationRepository interface {
	Create(ctx context.Context, n *model.Negotiation) error
	FindByID(ctx context.Context, id uint64) (*model.Negotiation, error)
	ListByParticipant(ctx context.Context, uid string, role model.Role) ([]model.Negotiation, error)
	// Update persists the mutable columns of n if it is still ongoing at
	// expectedVersion, and bumps n.Version. Otherwise it returns ErrVersionConflict.
	Update(ctx context.Context, n *model.Negotiation, expectedVersion uint64) error
	AppendOffer(ctx context.Context, offer *model.Offer) error
	FindOfferByClientKey(ctx context.Context, negotiationID uint64, offeredBy model.Role, key string) (*model.Offer, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Negotiation, error)
}

type negotiationRepository struct {
	db *gorm.DB
}

func NewNegotiationRepository(db *gorm.DB) NegotiationRepository {
	return &negotiationRepository{db: db}
}

func (r *negotiationRepository) Create(ctx context.Context, n *model.Negotiation) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *negotiationRepository) FindByID(ctx context.Context, id uint64) (*model.Negotiation, error) {
	var n model.Negotiation
	if err := r.db.WithContext(ctx).
		Preload("Offers", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&n, id).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *negotiationRepository) ListByParticipant(ctx context.Context, uid string, role model.Role) ([]model.Negotiation, error) {
	column := "wholesaler_uid"
	if role == model.RoleFarmer {
		column = "farmer_uid"
	}
	var list []model.Negotiation
	if err := r.db.WithContext(ctx).
		Preload("Offers", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where(column+" = ?", uid).
		Order("created_at DESC").
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *negotiationRepository) Update(ctx context.Context, n *model.Negotiation, expectedVersion uint64) error {
	next := expectedVersion + 1
	res := r.db.WithContext(ctx).
		Model(&model.Negotiation{}).
		Where("id = ? AND version = ? AND status = ?", n.ID, expectedVersion, model.NegotiationOngoing).
		Updates(map[string]interface{}{
			"current_offer_amount":  n.CurrentOfferAmount,
			"current_offer_by":      n.CurrentOfferBy,
			"agreed_quantity_value": n.AgreedQuantity.Value,
			"agreed_quantity_unit":  n.AgreedQuantity.Unit,
			"status":                n.Status,
			"final_agreed_price":    n.FinalAgreedPrice,
			"total_amount":          n.TotalAmount,
			"accepted_by":           n.AcceptedBy,
			"accepted_at":           n.AcceptedAt,
			"closed_by":             n.ClosedBy,
			"close_reason":          n.CloseReason,
			"closed_at":             n.ClosedAt,
			"version":               next,
			"updated_at":            n.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	n.Version = next
	return nil
}

func (r *negotiationRepository) AppendOffer(ctx context.Context, offer *model.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *negotiationRepository) FindOfferByClientKey(ctx context.Context, negotiationID uint64, offeredBy model.Role, key string) (*model.Offer, error) {
	var o model.Offer
	err := r.db.WithContext(ctx).
		Where("negotiation_id = ? AND offered_by = ? AND client_key = ?", negotiationID, offeredBy, key).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *negotiationRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]model.Negotiation, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []model.Negotiation
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", model.NegotiationOngoing, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
