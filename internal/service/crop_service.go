package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"gorm.io/gorm"
)

type CropService interface {
	Create(ctx context.Context, crop *model.Crop) (*model.Crop, error)
	Get(ctx context.Context, id uint64) (*model.Crop, error)
	List(ctx context.Context, limit, offset int, category string) ([]model.Crop, int64, error)
}

type cropService struct {
	repo repository.CropRepository
}

func NewCropService(repo repository.CropRepository) CropService {
	return &cropService{repo: repo}
}

func (s *cropService) Create(ctx context.Context, crop *model.Crop) (*model.Crop, error) {
	crop.Name = strings.TrimSpace(crop.Name)
	crop.Category = strings.TrimSpace(crop.Category)
	crop.Unit = strings.TrimSpace(crop.Unit)
	if crop.FarmerUID == "" {
		return nil, validationError("farmer is required")
	}
	if crop.Name == "" || len(crop.Name) > 120 {
		return nil, validationError("invalid name")
	}
	if crop.Category == "" {
		return nil, validationError("category is required")
	}
	if crop.Unit == "" {
		return nil, validationError("unit is required")
	}
	if err := validateAmount("referencePrice", crop.ReferencePrice); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, crop); err != nil {
		return nil, err
	}
	return crop, nil
}

func (s *cropService) Get(ctx context.Context, id uint64) (*model.Crop, error) {
	crop, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return crop, nil
}

func (s *cropService) List(ctx context.Context, limit, offset int, category string) ([]model.Crop, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset, strings.TrimSpace(category))
}
