package service

import (
	"context"

	"github.com/shinyyama/agri-market-backend/internal/ai"
	"github.com/shinyyama/agri-market-backend/internal/reqctx"
)

// PriceAdvisor proposes a counter-offer price. *ai.PriceAdvisor implements it.
type PriceAdvisor interface {
	Suggest(ctx context.Context, in ai.SuggestionInput) (*ai.Suggestion, error)
}

type AdvisorService interface {
	Suggest(ctx context.Context, negotiationID uint64, uid string) (*ai.Suggestion, error)
}

type advisorService struct {
	negotiations NegotiationService
	crops        CropService
	advisor      PriceAdvisor
}

func NewAdvisorService(negotiations NegotiationService, crops CropService, advisor PriceAdvisor) AdvisorService {
	return &advisorService{negotiations: negotiations, crops: crops, advisor: advisor}
}

// Suggest advises the calling party of an ongoing negotiation.
func (s *advisorService) Suggest(ctx context.Context, negotiationID uint64, uid string) (*ai.Suggestion, error) {
	if s.advisor == nil {
		return nil, ai.ErrNotConfigured
	}
	n, err := s.negotiations.Get(ctx, negotiationID, uid)
	if err != nil {
		return nil, err
	}
	if n.Status.Terminal() {
		return nil, ErrNotActive
	}
	crop, err := s.crops.Get(ctx, n.CropID)
	if err != nil {
		return nil, err
	}
	role, _ := n.RoleOf(uid)
	ctx = reqctx.WithNegotiationID(ctx, n.ID)
	return s.advisor.Suggest(ctx, ai.SuggestionInput{
		CropName:       crop.Name,
		Category:       crop.Category,
		Unit:           crop.Unit,
		ReferencePrice: crop.ReferencePrice,
		Quantity:       n.AgreedQuantity,
		For:            role,
		Offers:         n.Offers,
	})
}
