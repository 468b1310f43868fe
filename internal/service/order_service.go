package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/metrics"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/repository"
	"gorm.io/gorm"
)

// AgreementArchiver renders and stores the signed-off terms of an order and
// returns where they can be downloaded.
type AgreementArchiver interface {
	Archive(ctx context.Context, order *model.Order, crop *model.Crop) (string, error)
}

type OrderService interface {
	CreateFromNegotiation(ctx context.Context, negotiationID uint64, uid string) (*model.Order, error)
	Get(ctx context.Context, orderID uint64, uid string) (*model.Order, error)
	MarkShipped(ctx context.Context, orderID uint64, farmerUID string) (*model.Order, error)
	MarkDelivered(ctx context.Context, orderID uint64, wholesalerUID string) (*model.Order, error)
	Cancel(ctx context.Context, orderID uint64, wholesalerUID string) (*model.Order, error)
	ListMine(ctx context.Context, uid string, role model.Role) ([]model.Order, error)
}

type orderService struct {
	repos    repository.Repositories
	uow      repository.UnitOfWork
	relay    EventRelay
	notify   NotificationService
	archiver AgreementArchiver
	now      func() time.Time
	log      zerolog.Logger
}

// NewOrderService wires the order lifecycle. archiver may be nil, in which
// case orders carry no agreement document.
func NewOrderService(repos repository.Repositories, uow repository.UnitOfWork, relay EventRelay, notify NotificationService, archiver AgreementArchiver, log zerolog.Logger) OrderService {
	return &orderService{
		repos:    repos,
		uow:      uow,
		relay:    relay,
		notify:   notify,
		archiver: archiver,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

func (s *orderService) CreateFromNegotiation(ctx context.Context, negotiationID uint64, uid string) (*model.Order, error) {
	n, err := s.repos.Negotiations.FindByID(ctx, negotiationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	role, ok := n.RoleOf(uid)
	if !ok || role != model.RoleWholesaler {
		return nil, ErrForbidden
	}
	if n.Status != model.NegotiationAccepted {
		return nil, fmt.Errorf("%w: negotiation is %s, not accepted", ErrInvalidState, n.Status)
	}
	if n.FinalAgreedPrice == nil || n.TotalAmount == nil {
		return nil, fmt.Errorf("accepted negotiation %d has no agreed price", n.ID)
	}
	if existing, err := s.repos.Orders.FindByNegotiation(ctx, n.ID); err == nil && existing != nil {
		return existing, ErrAlreadyOrdered
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := s.now()
	o := &model.Order{
		NegotiationID: n.ID,
		CropID:        n.CropID,
		FarmerUID:     n.FarmerUID,
		WholesalerUID: n.WholesalerUID,
		PricePerUnit:  *n.FinalAgreedPrice,
		Quantity:      n.AgreedQuantity,
		TotalAmount:   *n.TotalAmount,
		Status:        model.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	content := fmt.Sprintf("Placed an order for %s %s at %s (total %s)",
		formatAmount(o.Quantity.Value), o.Quantity.Unit, formatAmount(o.PricePerUnit), formatAmount(o.TotalAmount))
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Orders.Create(ctx, o); err != nil {
			return err
		}
		_, err := appendNegotiationMessage(ctx, r, n.ID, uid, role, model.MessageSystem, content, now)
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrAlreadyOrdered
	}
	if err != nil {
		return nil, fmt.Errorf("create order for negotiation %d: %w", n.ID, err)
	}

	metrics.OrdersCreated.Inc()
	s.log.Info().Uint64("order_id", o.ID).Uint64("negotiation_id", n.ID).Float64("total_amount", o.TotalAmount).Msg("order created")
	s.archive(ctx, o)
	s.afterCommit(ctx, o, n.FarmerUID, NotifyOrderPlaced, "New order", content)
	return o, nil
}

// archive attaches the agreement document. A failure leaves the order without
// one; it never fails order creation.
func (s *orderService) archive(ctx context.Context, o *model.Order) {
	if s.archiver == nil {
		return
	}
	crop, err := s.repos.Crops.FindByID(ctx, o.CropID)
	if err != nil {
		s.log.Warn().Err(err).Uint64("order_id", o.ID).Msg("agreement skipped: crop lookup failed")
		return
	}
	url, err := s.archiver.Archive(ctx, o, crop)
	if err != nil {
		s.log.Warn().Err(err).Uint64("order_id", o.ID).Msg("agreement upload failed")
		return
	}
	if err := s.repos.Orders.SetAgreementURL(ctx, o.ID, url); err != nil {
		s.log.Warn().Err(err).Uint64("order_id", o.ID).Msg("agreement url not stored")
		return
	}
	o.AgreementURL = url
}

func (s *orderService) Get(ctx context.Context, orderID uint64, uid string) (*model.Order, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if uid != o.FarmerUID && uid != o.WholesalerUID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *orderService) MarkShipped(ctx context.Context, orderID uint64, farmerUID string) (*model.Order, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.FarmerUID != farmerUID {
		return nil, ErrForbidden
	}
	if o.Status == model.OrderStatusShipped {
		return o, nil
	}
	if o.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, o.Status)
	}
	now := s.now()
	o.Status = model.OrderStatusShipped
	o.ShippedAt = &now
	const content = "Marked the order as shipped"
	if err := s.save(ctx, o, farmerUID, model.RoleFarmer, content, now); err != nil {
		return nil, err
	}
	s.afterCommit(ctx, o, o.WholesalerUID, NotifyOrderUpdated, "Order shipped", content)
	return o, nil
}

func (s *orderService) MarkDelivered(ctx context.Context, orderID uint64, wholesalerUID string) (*model.Order, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.WholesalerUID != wholesalerUID {
		return nil, ErrForbidden
	}
	if o.Status == model.OrderStatusDelivered {
		return o, nil
	}
	if o.Status != model.OrderStatusShipped {
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, o.Status)
	}
	now := s.now()
	const content = "Confirmed the order was received"
	err = s.uow.Do(ctx, func(r repository.Repositories) error {
		rows, err := r.Orders.MarkDeliveredIfShipped(ctx, o.ID, wholesalerUID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return repository.ErrVersionConflict
		}
		_, err = appendNegotiationMessage(ctx, r, o.NegotiationID, wholesalerUID, model.RoleWholesaler, model.MessageSystem, content, now)
		return err
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		fresh, ferr := s.find(ctx, orderID)
		if ferr != nil {
			return nil, ferr
		}
		if fresh.Status == model.OrderStatusDelivered {
			return fresh, nil
		}
		return nil, fmt.Errorf("%w: order is %s", ErrInvalidState, fresh.Status)
	}
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatusDelivered
	o.DeliveredAt = &now
	s.afterCommit(ctx, o, o.FarmerUID, NotifyOrderUpdated, "Order received", content)
	return o, nil
}

func (s *orderService) Cancel(ctx context.Context, orderID uint64, wholesalerUID string) (*model.Order, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.WholesalerUID != wholesalerUID {
		return nil, ErrForbidden
	}
	if o.Status == model.OrderStatusCancelled {
		return o, nil
	}
	if o.Status != model.OrderStatusPending {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidState)
	}
	now := s.now()
	o.Status = model.OrderStatusCancelled
	o.CancelledAt = &now
	const content = "Cancelled the order"
	if err := s.save(ctx, o, wholesalerUID, model.RoleWholesaler, content, now); err != nil {
		return nil, err
	}
	s.afterCommit(ctx, o, o.FarmerUID, NotifyOrderUpdated, "Order cancelled", content)
	return o, nil
}

func (s *orderService) ListMine(ctx context.Context, uid string, role model.Role) ([]model.Order, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, validationError("role must be farmer or wholesaler")
	}
	return s.repos.Orders.ListByParticipant(ctx, uid, role)
}

func (s *orderService) save(ctx context.Context, o *model.Order, uid string, role model.Role, content string, now time.Time) error {
	o.UpdatedAt = now
	return s.uow.Do(ctx, func(r repository.Repositories) error {
		if err := r.Orders.Update(ctx, o); err != nil {
			return err
		}
		_, err := appendNegotiationMessage(ctx, r, o.NegotiationID, uid, role, model.MessageSystem, content, now)
		return err
	})
}

func (s *orderService) afterCommit(ctx context.Context, o *model.Order, notifyTo, typ, title, body string) {
	if s.relay != nil {
		if _, err := s.relay.Flush(ctx); err != nil {
			s.log.Warn().Err(err).Uint64("order_id", o.ID).Msg("event flush failed, relay worker will retry")
		}
	}
	s.notify.Notify(ctx, notifyTo, typ, title, body, NotificationRefs{
		NegotiationID: uint64Ptr(o.NegotiationID),
		OrderID:       uint64Ptr(o.ID),
	})
}

func (s *orderService) find(ctx context.Context, id uint64) (*model.Order, error) {
	o, err := s.repos.Orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}
