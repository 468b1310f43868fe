package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"gorm.io/gorm"
)

type SampleService interface {
	Request(ctx context.Context, cropID uint64, wholesalerUID, message string) (*model.SampleRequest, error)
	Accept(ctx context.Context, sampleID uint64, farmerUID string) (*model.SampleRequest, *model.ChatThread, error)
	Reject(ctx context.Context, sampleID uint64, farmerUID string) (*model.SampleRequest, error)
	ListMine(ctx context.Context, uid string, role model.Role) ([]model.SampleRequest, error)
}

type sampleService struct {
	repos  repository.Repositories
	uow    repository.UnitOfWork
	notify NotificationService
	now    func() time.Time
	log    zerolog.Logger
}

func NewSampleService(repos repository.Repositories, uow repository.UnitOfWork, notify NotificationService, log zerolog.Logger) SampleService {
	return &sampleService{
		repos:  repos,
		uow:    uow,
		notify: notify,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

func (s *sampleService) Request(ctx context.Context, cropID uint64, wholesalerUID, message string) (*model.SampleRequest, error) {
	if wholesalerUID == "" {
		return nil, ErrForbidden
	}
	message, err := validateText("message", message, false)
	if err != nil {
		return nil, err
	}
	crop, err := s.repos.Crops.FindByID(ctx, cropID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if crop.FarmerUID == wholesalerUID {
		return nil, validationError("cannot request a sample of your own crop")
	}
	now := s.now()
	sr := &model.SampleRequest{
		CropID:        crop.ID,
		FarmerUID:     crop.FarmerUID,
		WholesalerUID: wholesalerUID,
		Status:        model.SamplePending,
		Message:       message,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Samples.Create(ctx, sr); err != nil {
			return err
		}
		return r.Crops.IncrementSampleRequests(ctx, crop.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("request sample of crop %d: %w", crop.ID, err)
	}
	s.notify.Notify(ctx, crop.FarmerUID, NotifySampleRequested, "Sample requested",
		fmt.Sprintf("A wholesaler asked for a sample of %s", crop.Name), NotificationRefs{})
	return sr, nil
}

// Accept opens a chat thread between the two parties, seeded with a system message.
func (s *sampleService) Accept(ctx context.Context, sampleID uint64, farmerUID string) (*model.SampleRequest, *model.ChatThread, error) {
	sr, err := s.pending(ctx, sampleID, farmerUID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	thread := &model.ChatThread{
		SampleRequestID: uint64Ptr(sr.ID),
		CropID:          sr.CropID,
		FarmerUID:       sr.FarmerUID,
		WholesalerUID:   sr.WholesalerUID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Chats.CreateThread(ctx, thread); err != nil {
			return err
		}
		if err := r.Chats.AppendMessage(ctx, &model.ChatMessage{
			ThreadID:    thread.ID,
			SenderUID:   farmerUID,
			SenderRole:  model.RoleFarmer,
			Content:     "Sample request accepted",
			MessageType: model.MessageSystem,
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		sr.Status = model.SampleAccepted
		sr.ThreadID = uint64Ptr(thread.ID)
		sr.UpdatedAt = now
		return r.Samples.Update(ctx, sr)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("accept sample request %d: %w", sr.ID, err)
	}
	s.notify.Notify(ctx, sr.WholesalerUID, NotifySampleAnswered, "Sample request accepted",
		"The farmer accepted your sample request", NotificationRefs{ThreadID: uint64Ptr(thread.ID)})
	return sr, thread, nil
}

func (s *sampleService) Reject(ctx context.Context, sampleID uint64, farmerUID string) (*model.SampleRequest, error) {
	sr, err := s.pending(ctx, sampleID, farmerUID)
	if err != nil {
		return nil, err
	}
	sr.Status = model.SampleRejected
	sr.UpdatedAt = s.now()
	if err := s.repos.Samples.Update(ctx, sr); err != nil {
		return nil, err
	}
	s.notify.Notify(ctx, sr.WholesalerUID, NotifySampleAnswered, "Sample request declined",
		"The farmer declined your sample request", NotificationRefs{})
	return sr, nil
}

func (s *sampleService) ListMine(ctx context.Context, uid string, role model.Role) ([]model.SampleRequest, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, validationError("role must be farmer or wholesaler")
	}
	return s.repos.Samples.ListByParticipant(ctx, uid, role)
}

func (s *sampleService) pending(ctx context.Context, sampleID uint64, farmerUID string) (*model.SampleRequest, error) {
	sr, err := s.repos.Samples.FindByID(ctx, sampleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if sr.FarmerUID != farmerUID {
		return nil, ErrForbidden
	}
	if sr.Status != model.SamplePending {
		return nil, fmt.Errorf("%w: sample request is %s", ErrInvalidState, sr.Status)
	}
	return sr, nil
}
