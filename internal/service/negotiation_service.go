package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/metrics"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"gorm.io/gorm"
)

const (
	maxWriteAttempts  = 3
	maxIdempotencyKey = 64
	expiryBatchSize   = 100
)

type NegotiationService interface {
	Start(ctx context.Context, in StartNegotiationInput) (*model.Negotiation, error)
	MakeOffer(ctx context.Context, in MakeOfferInput) (*model.Negotiation, error)
	Accept(ctx context.Context, negotiationID uint64, uid string) (*model.Negotiation, error)
	Reject(ctx context.Context, negotiationID uint64, uid, reason string) (*model.Negotiation, error)
	Cancel(ctx context.Context, negotiationID uint64, uid string) (*model.Negotiation, error)
	Get(ctx context.Context, negotiationID uint64, uid string) (*model.Negotiation, error)
	ListForUser(ctx context.Context, uid string, role model.Role) ([]model.Negotiation, error)
	ExpireOverdue(ctx context.Context) (int, error)
}

type StartNegotiationInput struct {
	CropID        uint64
	WholesalerUID string
	// InitialPrice falls back to the crop's reference price when nil.
	InitialPrice *float64
	Quantity     model.Quantity
	Message      string
}

type MakeOfferInput struct {
	NegotiationID uint64
	UID           string
	Amount        float64
	// Quantity replaces the quantity under negotiation when set.
	Quantity       *model.Quantity
	Message        string
	IdempotencyKey string
}

type NegotiationOptions struct {
	TTL         time.Duration
	StrictTurns bool
	Now         func() time.Time
}

type negotiationService struct {
	repos  repository.Repositories
	uow    repository.UnitOfWork
	relay  EventRelay
	notify NotificationService
	opts   NegotiationOptions
	log    zerolog.Logger
}

func NewNegotiationService(repos repository.Repositories, uow repository.UnitOfWork, relay EventRelay, notify NotificationService, opts NegotiationOptions, log zerolog.Logger) NegotiationService {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	return &negotiationService{repos: repos, uow: uow, relay: relay, notify: notify, opts: opts, log: log}
}

// change is what one state transition adds beside the negotiation row itself.
type change struct {
	op       string
	offer    *model.Offer
	msgType  model.MessageType
	content  string
	message  *model.ChatMessage
	notifyTo string
	notify   string
	title    string
}

func (s *negotiationService) Start(ctx context.Context, in StartNegotiationInput) (*model.Negotiation, error) {
	if in.WholesalerUID == "" {
		return nil, ErrForbidden
	}
	if err := validateAmount("quantity", in.Quantity.Value); err != nil {
		return nil, err
	}
	if in.InitialPrice != nil {
		if err := validateAmount("initialPrice", *in.InitialPrice); err != nil {
			return nil, err
		}
	}
	message, err := validateText("message", in.Message, false)
	if err != nil {
		return nil, err
	}

	crop, err := s.repos.Crops.FindByID(ctx, in.CropID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if crop.FarmerUID == in.WholesalerUID {
		return nil, validationError("cannot negotiate on your own crop")
	}
	amount := crop.ReferencePrice
	if in.InitialPrice != nil {
		amount = *in.InitialPrice
	}
	if err := validateAmount("initialPrice", amount); err != nil {
		return nil, err
	}
	qty := in.Quantity
	qty.Unit = strings.TrimSpace(qty.Unit)
	if qty.Unit == "" {
		qty.Unit = crop.Unit
	}

	now := s.opts.Now()
	n := &model.Negotiation{
		CropID:             crop.ID,
		FarmerUID:          crop.FarmerUID,
		WholesalerUID:      in.WholesalerUID,
		InitialPrice:       amount,
		CurrentOfferAmount: amount,
		CurrentOfferBy:     model.RoleWholesaler,
		AgreedQuantity:     qty,
		Status:             model.NegotiationOngoing,
		ExpiresAt:          now.Add(s.opts.TTL),
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	offer := model.Offer{
		Seq:       1,
		OfferedBy: model.RoleWholesaler,
		Amount:    amount,
		Quantity:  qty,
		Message:   message,
		CreatedAt: now,
	}
	content := fmt.Sprintf("Started a negotiation for %s %s of %s at %s", formatAmount(qty.Value), qty.Unit, crop.Name, formatAmount(amount))
	if message != "" {
		content += ". " + message
	}

	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Negotiations.Create(ctx, n); err != nil {
			return err
		}
		offer.NegotiationID = n.ID
		if err := r.Negotiations.AppendOffer(ctx, &offer); err != nil {
			return err
		}
		thread := &model.ChatThread{
			NegotiationID: uint64Ptr(n.ID),
			CropID:        crop.ID,
			FarmerUID:     n.FarmerUID,
			WholesalerUID: n.WholesalerUID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.Chats.CreateThread(ctx, thread); err != nil {
			return err
		}
		if _, err := appendNegotiationMessage(ctx, r, n.ID, n.WholesalerUID, model.RoleWholesaler, model.MessageSystem, content, now); err != nil {
			return err
		}
		return enqueueOfferUpdated(ctx, r, n, &offer)
	})
	if err != nil {
		return nil, fmt.Errorf("start negotiation on crop %d: %w", in.CropID, err)
	}
	n.Offers = []model.Offer{offer}

	metrics.NegotiationsStarted.Inc()
	metrics.OffersMade.WithLabelValues(string(model.RoleWholesaler)).Inc()
	s.log.Info().Uint64("negotiation_id", n.ID).Uint64("crop_id", crop.ID).Str("wholesaler_uid", n.WholesalerUID).Msg("negotiation started")
	s.flush(ctx)
	s.notify.Notify(ctx, n.FarmerUID, NotifyNegotiationStarted, "New negotiation", content, NotificationRefs{NegotiationID: uint64Ptr(n.ID)})
	return n, nil
}

func (s *negotiationService) MakeOffer(ctx context.Context, in MakeOfferInput) (*model.Negotiation, error) {
	if err := validateAmount("amount", in.Amount); err != nil {
		return nil, err
	}
	if in.Quantity != nil {
		if err := validateAmount("quantity", in.Quantity.Value); err != nil {
			return nil, err
		}
	}
	message, err := validateText("message", in.Message, false)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > maxIdempotencyKey {
		return nil, validationError(fmt.Sprintf("idempotency key must be at most %d bytes", maxIdempotencyKey))
	}

	replay := func(ctx context.Context, n *model.Negotiation, role model.Role) (bool, error) {
		if key == "" {
			return false, nil
		}
		prior, err := s.repos.Negotiations.FindOfferByClientKey(ctx, n.ID, role, key)
		if err != nil {
			return false, err
		}
		return prior != nil, nil
	}

	apply := func(n *model.Negotiation, role model.Role, now time.Time) (*change, error) {
		if s.opts.StrictTurns && n.CurrentOfferBy == role {
			return nil, ErrNotYourTurn
		}
		offer := &model.Offer{
			NegotiationID: n.ID,
			Seq:           len(n.Offers) + 1,
			OfferedBy:     role,
			Amount:        in.Amount,
			Quantity:      n.AgreedQuantity,
			Message:       message,
			CreatedAt:     now,
		}
		if in.Quantity != nil {
			offer.Quantity.Value = in.Quantity.Value
			if unit := strings.TrimSpace(in.Quantity.Unit); unit != "" {
				offer.Quantity.Unit = unit
			}
			n.AgreedQuantity = offer.Quantity
		}
		if key != "" {
			offer.ClientKey = &key
		}
		n.CurrentOfferAmount = in.Amount
		n.CurrentOfferBy = role

		content := message
		if content == "" {
			content = fmt.Sprintf("Made an offer of %s", formatAmount(in.Amount))
		}
		return &change{
			op:       "offer",
			offer:    offer,
			msgType:  model.MessageOffer,
			content:  content,
			notifyTo: n.UIDOf(counterRole(role)),
			notify:   NotifyOfferReceived,
			title:    "New offer",
		}, nil
	}

	return s.mutate(ctx, in.NegotiationID, in.UID, true, replay, apply)
}

func (s *negotiationService) Accept(ctx context.Context, negotiationID uint64, uid string) (*model.Negotiation, error) {
	return s.mutate(ctx, negotiationID, uid, false, nil, func(n *model.Negotiation, role model.Role, now time.Time) (*change, error) {
		if s.opts.StrictTurns && n.CurrentOfferBy == role {
			return nil, ErrNotYourTurn
		}
		if n.AgreedQuantity.Value <= 0 {
			return nil, fmt.Errorf("%w: no quantity under negotiation", ErrInvalidState)
		}
		price := n.CurrentOfferAmount
		total := price * n.AgreedQuantity.Value
		n.Status = model.NegotiationAccepted
		n.FinalAgreedPrice = &price
		n.TotalAmount = &total
		n.AcceptedBy = &role
		n.AcceptedAt = &now
		n.ClosedBy = &role
		n.ClosedAt = &now
		return &change{
			op:       "accept",
			msgType:  model.MessageSystem,
			content:  fmt.Sprintf("Accepted the offer of %s", formatAmount(price)),
			notifyTo: n.UIDOf(counterRole(role)),
			notify:   NotifyOfferAccepted,
			title:    "Offer accepted",
		}, nil
	})
}

func (s *negotiationService) Reject(ctx context.Context, negotiationID uint64, uid, reason string) (*model.Negotiation, error) {
	reason, err := validateText("reason", reason, false)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, negotiationID, uid, true, nil, func(n *model.Negotiation, role model.Role, now time.Time) (*change, error) {
		n.Status = model.NegotiationRejected
		n.ClosedBy = &role
		n.CloseReason = reason
		n.ClosedAt = &now
		content := reason
		if content == "" {
			content = fmt.Sprintf("Rejected the offer of %s", formatAmount(n.CurrentOfferAmount))
		}
		return &change{
			op:       "reject",
			msgType:  model.MessageSystem,
			content:  content,
			notifyTo: n.UIDOf(counterRole(role)),
			notify:   NotifyNegotiationClosed,
			title:    "Negotiation rejected",
		}, nil
	})
}

// Cancel lets the wholesaler who opened the negotiation withdraw it.
func (s *negotiationService) Cancel(ctx context.Context, negotiationID uint64, uid string) (*model.Negotiation, error) {
	return s.mutate(ctx, negotiationID, uid, true, nil, func(n *model.Negotiation, role model.Role, now time.Time) (*change, error) {
		if role != model.RoleWholesaler {
			return nil, ErrForbidden
		}
		n.Status = model.NegotiationCancelled
		n.ClosedBy = &role
		n.ClosedAt = &now
		return &change{
			op:       "cancel",
			msgType:  model.MessageSystem,
			content:  "Negotiation cancelled",
			notifyTo: n.FarmerUID,
			notify:   NotifyNegotiationClosed,
			title:    "Negotiation cancelled",
		}, nil
	})
}

func (s *negotiationService) Get(ctx context.Context, negotiationID uint64, uid string) (*model.Negotiation, error) {
	n, err := s.load(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if _, ok := n.RoleOf(uid); !ok {
		return nil, ErrForbidden
	}
	return n, nil
}

func (s *negotiationService) ListForUser(ctx context.Context, uid string, role model.Role) ([]model.Negotiation, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, validationError("role must be farmer or wholesaler")
	}
	return s.repos.Negotiations.ListByParticipant(ctx, uid, role)
}

// ExpireOverdue moves ongoing negotiations past their deadline to expired.
func (s *negotiationService) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.opts.Now()
	overdue, err := s.repos.Negotiations.ListOverdue(ctx, now, expiryBatchSize)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range overdue {
		ok, err := s.expire(ctx, &overdue[i], now)
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		s.flush(ctx)
	}
	return expired, nil
}

// replayFunc reports whether role already made this exact request.
type replayFunc func(ctx context.Context, n *model.Negotiation, role model.Role) (bool, error)

type applyFunc func(n *model.Negotiation, role model.Role, now time.Time) (*change, error)

// mutate runs one guarded transition. With retry set, a lost version race
// reloads and re-applies; without it the caller learns the state moved.
func (s *negotiationService) mutate(ctx context.Context, negotiationID uint64, uid string, retry bool, replay replayFunc, apply applyFunc) (*model.Negotiation, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		n, err := s.load(ctx, negotiationID)
		if err != nil {
			return nil, err
		}
		role, ok := n.RoleOf(uid)
		if !ok {
			return nil, ErrForbidden
		}
		if replay != nil {
			seen, err := replay(ctx, n, role)
			if err != nil {
				return nil, err
			}
			if seen {
				return n, nil
			}
		}
		now := s.opts.Now()
		if n.PastDeadline(now) {
			if _, err := s.expire(ctx, n, now); err != nil {
				return nil, err
			}
			s.flush(ctx)
			return nil, ErrNotActive
		}
		if n.Status.Terminal() {
			return nil, ErrNotActive
		}

		expected := n.Version
		ch, err := apply(n, role, now)
		if err != nil {
			return nil, err
		}
		n.UpdatedAt = now
		err = s.persist(ctx, n, expected, uid, role, ch, now)
		if errors.Is(err, repository.ErrVersionConflict) {
			metrics.VersionConflicts.WithLabelValues(ch.op).Inc()
			s.log.Debug().Uint64("negotiation_id", negotiationID).Str("op", ch.op).Int("attempt", attempt).Msg("version conflict")
			if retry {
				continue
			}
			fresh, ferr := s.load(ctx, negotiationID)
			if ferr != nil {
				return nil, ferr
			}
			if fresh.Status.Terminal() {
				return nil, ErrNotActive
			}
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("%s negotiation %d: %w", ch.op, negotiationID, err)
		}

		if ch.offer != nil {
			n.Offers = append(n.Offers, *ch.offer)
		}
		s.afterCommit(ctx, n, role, ch)
		return n, nil
	}
	return nil, ErrConflict
}

func (s *negotiationService) persist(ctx context.Context, n *model.Negotiation, expected uint64, uid string, role model.Role, ch *change, now time.Time) error {
	return s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Negotiations.Update(ctx, n, expected); err != nil {
			return err
		}
		if ch.offer != nil {
			if err := r.Negotiations.AppendOffer(ctx, ch.offer); err != nil {
				return err
			}
		}
		msg, err := appendNegotiationMessage(ctx, r, n.ID, uid, role, ch.msgType, ch.content, now)
		if err != nil {
			return err
		}
		ch.message = msg
		return enqueueOfferUpdated(ctx, r, n, ch.offer)
	})
}

func (s *negotiationService) afterCommit(ctx context.Context, n *model.Negotiation, role model.Role, ch *change) {
	switch ch.op {
	case "offer":
		metrics.OffersMade.WithLabelValues(string(role)).Inc()
	default:
		metrics.NegotiationsClosed.WithLabelValues(string(n.Status)).Inc()
	}
	s.log.Info().
		Uint64("negotiation_id", n.ID).
		Str("op", ch.op).
		Str("role", string(role)).
		Str("status", string(n.Status)).
		Uint64("version", n.Version).
		Msg("negotiation updated")
	s.flush(ctx)
	if ch.notifyTo != "" {
		s.notify.Notify(ctx, ch.notifyTo, ch.notify, ch.title, ch.content, NotificationRefs{
			NegotiationID: uint64Ptr(n.ID),
			ThreadID:      uint64Ptr(ch.message.ThreadID),
		})
	}
}

// expire closes n as expired. It reports false when another writer got there first.
func (s *negotiationService) expire(ctx context.Context, n *model.Negotiation, now time.Time) (bool, error) {
	expected := n.Version
	n.Status = model.NegotiationExpired
	n.ClosedAt = &now
	n.UpdatedAt = now
	ch := &change{op: "expire", msgType: model.MessageSystem, content: "Negotiation expired"}
	err := s.persist(ctx, n, expected, n.WholesalerUID, model.RoleWholesaler, ch, now)
	if errors.Is(err, repository.ErrVersionConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("expire negotiation %d: %w", n.ID, err)
	}
	metrics.NegotiationsClosed.WithLabelValues(string(model.NegotiationExpired)).Inc()
	s.log.Info().Uint64("negotiation_id", n.ID).Time("expires_at", n.ExpiresAt).Msg("negotiation expired")
	return true, nil
}

func (s *negotiationService) load(ctx context.Context, id uint64) (*model.Negotiation, error) {
	n, err := s.repos.Negotiations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

// flush pushes committed events out right away; the relay worker retries whatever fails here.
func (s *negotiationService) flush(ctx context.Context) {
	if s.relay == nil {
		return
	}
	if _, err := s.relay.Flush(ctx); err != nil {
		s.log.Warn().Err(err).Msg("event flush failed, relay worker will retry")
	}
}

func counterRole(r model.Role) model.Role {
	if r == model.RoleFarmer {
		return model.RoleWholesaler
	}
	return model.RoleFarmer
}
