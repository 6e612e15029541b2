package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/pkg/db"
	"github.com/atmosfood/storefront-backend/pkg/db/models"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/pagination"
	"github.com/atmosfood/storefront-backend/pkg/pubsub"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReadyToDoorETA is added to the ready time of delivery orders.
const ReadyToDoorETA = 35 * time.Minute

type eventPublisher interface {
	Publish(ctx context.Context, evt pubsub.OrderEvent) (string, error)
}

// Service exposes order history.
type Service interface {
	Get(ctx context.Context, idOrReference string) (*OrderDTO, error)
	ListByEmail(ctx context.Context, email string, params pagination.Params) (*OrderList, error)
	Stats(ctx context.Context, email string) (*Stats, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	Refresh(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
}

// ServiceParams wires the order service. Upstream and Events are optional.
type ServiceParams struct {
	Repo     Repository
	Upstream Submitter
	Events   eventPublisher
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	upstream Submitter
	events   eventPublisher
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order history service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		upstream: params.Upstream,
		events:   params.Events,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Get accepts either the order uuid or its public reference.
func (s *service) Get(ctx context.Context, idOrReference string) (*OrderDTO, error) {
	key := strings.TrimSpace(idOrReference)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) lookup(ctx context.Context, key string) (*models.Order, error) {
	if id, err := uuid.Parse(key); err == nil {
		order, err := s.repo.FindByID(ctx, id)
		if err == nil {
			return order, nil
		}
		if !db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
	}
	order, err := s.repo.FindByReference(ctx, key)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListByEmail(ctx context.Context, email string, params pagination.Params) (*OrderList, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.ListByEmail(ctx, email, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: make([]OrderDTO, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, o := range page.Items {
		out.Orders = append(out.Orders, ToDTO(o))
	}
	return out, nil
}

// Stats counts orders per status. An empty email summarizes every order.
func (s *service) Stats(ctx context.Context, email string) (*Stats, error) {
	totals, err := s.repo.Stats(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order stats")
	}
	stats := &Stats{}
	for _, t := range totals {
		stats.Total += t.Count
		stats.TotalSpent += t.Amount
		switch t.Status {
		case enums.OrderStatusPreparing:
			stats.Preparing += t.Count
		case enums.OrderStatusReady:
			stats.Ready += t.Count
		case enums.OrderStatusOutForDelivery:
			stats.OutForDelivery += t.Count
		case enums.OrderStatusCompleted:
			stats.Completed += t.Count
		case enums.OrderStatusCancelled:
			stats.Cancelled += t.Count
		}
	}
	if stats.Total > 0 {
		stats.AverageOrder = decimal.NewFromInt(stats.TotalSpent).
			Div(decimal.NewFromInt(stats.Total)).
			Round(0).
			IntPart()
	}
	return stats, nil
}

// UpdateStatus moves an order along its lifecycle. Completed and cancelled
// orders are final. A delivery order turning ready gets an ETA.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", status)
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status == status {
		dto := ToDTO(*order)
		return &dto, nil
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", order.Status).
			WithDetails(map[string]any{"status": order.Status})
	}

	var eta *time.Time
	if status == enums.OrderStatusReady && order.DeliveryMethod == enums.DeliveryMethodDelivery {
		at := s.now().UTC().Add(ReadyToDoorETA)
		eta = &at
	}
	if err := s.repo.UpdateStatus(ctx, id, status, eta); err != nil {
		switch {
		case errors.Is(err, ErrOrderFinal):
			return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order reached a final status").
				WithDetails(map[string]any{"requested": status})
		case db.IsNotFound(err):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = status
	if eta != nil {
		order.EstimatedDeliveryAt = eta
	}

	ctx = s.logg.WithOrderID(ctx, id.String())
	s.logg.Info(s.logg.WithField(ctx, "status", status), "order status updated")
	s.publishStatus(ctx, *order)

	dto := ToDTO(*order)
	return &dto, nil
}

// Refresh pulls the latest status from the order API.
func (s *service) Refresh(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if s.upstream == nil || order.UpstreamOrderID == "" {
		dto := ToDTO(*order)
		return &dto, nil
	}
	remote, err := s.upstream.Fetch(ctx, order.UpstreamOrderID)
	if err != nil {
		return nil, err
	}
	status, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(remote.Status)))
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "remote_status", remote.Status), "order api returned unknown status")
		dto := ToDTO(*order)
		return &dto, nil
	}
	return s.UpdateStatus(ctx, id, status)
}

func (s *service) publishStatus(ctx context.Context, order models.Order) {
	if s.events == nil {
		return
	}
	_, err := s.events.Publish(ctx, pubsub.OrderEvent{
		EventType:      pubsub.EventOrderStatus,
		OrderReference: order.OrderReference,
		OrderID:        order.ID.String(),
		SessionID:      order.SessionID,
		DeliveryMethod: order.DeliveryMethod.String(),
		PaymentMethod:  order.PaymentMethod.String(),
		TotalAmount:    order.TotalAmount,
		ItemCount:      order.Items.ItemCount(),
		Status:         order.Status.String(),
		OccurredAt:     s.now().UTC(),
	})
	if err != nil {
		s.logg.Error(ctx, "publish order status event", err)
	}
}
