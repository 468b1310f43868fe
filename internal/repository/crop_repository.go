package repository

import (
	"context"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"gorm.io/gorm"
)

type CropRepository interface {
	Create(ctx context.Context, crop *model.Crop) error
	FindByID(ctx context.Context, id uint64) (*model.Crop, error)
	List(ctx context.Context, limit, offset int, category string) ([]model.Crop, int64, error)
	IncrementSampleRequests(ctx context.Context, id uint64) error
}

type cropRepository struct {
	db *gorm.DB
}

func NewCropRepository(db *gorm.DB) CropRepository {
	return &cropRepository{db: db}
}

func (r *cropRepository) Create(ctx context.Context, crop *model.Crop) error {
	return r.db.WithContext(ctx).Create(crop).Error
}

func (r *cropRepository) FindByID(ctx context.Context, id uint64) (*model.Crop, error) {
	var crop model.Crop
	if err := r.db.WithContext(ctx).First(&crop, id).Error; err != nil {
		return nil, err
	}
	return &crop, nil
}

func (r *cropRepository) List(ctx context.Context, limit, offset int, category string) ([]model.Crop, int64, error) {
	var (
		crops []model.Crop
		total int64
	)
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Crop{})
		if category != "" {
			q = q.Where("category = ?", category)
		}
		return q
	}
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := scoped().
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&crops).Error; err != nil {
		return nil, 0, err
	}
	return crops, total, nil
}

func (r *cropRepository) IncrementSampleRequests(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Crop{}).
		Where("id = ?", id).
		UpdateColumn("sample_requests", gorm.Expr("sample_requests + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
