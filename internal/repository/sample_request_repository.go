package repository

import (
	"context"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"gorm.io/gorm"
)

type SampleRequestRepository interface {
	Create(ctx context.Context, s *model.SampleRequest) error
	FindByID(ctx context.Context, id uint64) (*model.SampleRequest, error)
	Update(ctx context.Context, s *model.SampleRequest) error
	ListByParticipant(ctx context.Context, uid string, role model.Role) ([]model.SampleRequest, error)
}

type sampleRequestRepository struct {
	db *gorm.DB
}

func NewSampleRequestRepository(db *gorm.DB) SampleRequestRepository {
	return &sampleRequestRepository{db: db}
}

func (r *sampleRequestRepository) Create(ctx context.Context, s *model.SampleRequest) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sampleRequestRepository) FindByID(ctx context.Context, id uint64) (*model.SampleRequest, error) {
	var s model.SampleRequest
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sampleRequestRepository) Update(ctx context.Context, s *model.SampleRequest) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *sampleRequestRepository) ListByParticipant(ctx context.Context, uid string, role model.Role) ([]model.SampleRequest, error) {
	column := "wholesaler_uid"
	if role == model.RoleFarmer {
		column = "farmer_uid"
	}
	var list []model.SampleRequest
	if err := r.db.WithContext(ctx).
		Where(column+" = ?", uid).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
