package bulkflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/google/uuid"
)

type lineAdder interface {
	AddLines(ctx context.Context, sessionID string, item catalog.MenuItem, specs []cart.LineSpec) (*cart.AddResult, error)
}

// ConfirmResult is what a confirmed flow produced.
type ConfirmResult struct {
	Flow  State      `json:"flow"`
	Cart  cart.Cart  `json:"cart"`
	Nudge cart.Nudge `json:"nudge"`
}

// Service drives bulk customization flows for a session.
type Service interface {
	Start(ctx context.Context, sessionID, itemID string) (State, error)
	Get(ctx context.Context, sessionID, flowID string) (State, error)
	Dispatch(ctx context.Context, sessionID, flowID string, action Action) (State, error)
	Confirm(ctx context.Context, sessionID, flowID string) (*ConfirmResult, error)
	Cancel(ctx context.Context, sessionID, flowID string) error
}

type service struct {
	store   Store
	catalog catalog.Service
	cart    lineAdder
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the flow store to the catalog and cart.
func NewService(store Store, cat catalog.Service, carts lineAdder, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("flow store required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, catalog: cat, cart: carts, logg: logg, now: time.Now}, nil
}

// Start opens a flow. Only grains go through the bulk flow.
func (s *service) Start(ctx context.Context, sessionID, itemID string) (State, error) {
	if strings.TrimSpace(sessionID) == "" {
		return State{}, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	item, err := s.catalog.Item(strings.TrimSpace(itemID))
	if err != nil {
		return State{}, err
	}
	if item.Category != enums.CategoryGrains {
		return State{}, pkgerrors.New(pkgerrors.CodeValidation, "only grains can be customized in bulk").
			WithDetails(map[string]any{"itemId": item.ID, "category": item.Category})
	}

	flowID := uuid.NewString()
	state := NewState(flowID, sessionID, item, s.now())
	saved, err := s.store.Mutate(ctx, flowID, func(State, bool) (State, error) {
		return state, nil
	})
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save flow")
	}
	s.logg.Info(s.logg.WithFlowID(ctx, flowID), "bulk flow started")
	return saved, nil
}

func (s *service) Get(ctx context.Context, sessionID, flowID string) (State, error) {
	state, found, err := s.store.Get(ctx, flowID)
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load flow")
	}
	if !found || state.SessionID != sessionID {
		return State{}, errFlowNotFound(flowID)
	}
	return state, nil
}

func (s *service) Dispatch(ctx context.Context, sessionID, flowID string, action Action) (State, error) {
	if action.Type == ActionToggleProtein {
		if _, err := s.catalog.ResolveProteins([]string{strings.TrimSpace(action.ProteinID)}); err != nil {
			return State{}, err
		}
	}
	return s.mutateOwned(ctx, sessionID, flowID, func(current State) (State, error) {
		return Reduce(current, action)
	})
}

// Confirm marks the flow confirmed before the cart is touched. A second
// confirm fails with a state conflict.
func (s *service) Confirm(ctx context.Context, sessionID, flowID string) (*ConfirmResult, error) {
	var (
		before State
		lines  []cart.LineSpec
	)
	confirmed, err := s.mutateOwned(ctx, sessionID, flowID, func(latest State) (State, error) {
		plates, next, err := Confirm(latest)
		if err != nil {
			return State{}, err
		}
		resolved := make([]cart.LineSpec, 0, len(plates))
		for _, plate := range plates {
			proteins, err := s.catalog.ResolveProteins(plate.ProteinIDs)
			if err != nil {
				return State{}, err
			}
			resolved = append(resolved, cart.LineSpec{Quantity: plate.Quantity, Proteins: proteins})
		}
		before, lines = latest, resolved
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFlowID(ctx, flowID)
	added, err := s.cart.AddLines(ctx, sessionID, before.Item, lines)
	if err != nil {
		if _, rbErr := s.store.Mutate(ctx, flowID, func(State, bool) (State, error) {
			return before, nil
		}); rbErr != nil {
			s.logg.Error(ctx, "failed to reopen flow after cart error", rbErr)
		}
		return nil, err
	}
	s.logg.Info(ctx, "bulk flow confirmed")
	return &ConfirmResult{Flow: confirmed, Cart: added.Cart, Nudge: added.Nudge}, nil
}

func (s *service) Cancel(ctx context.Context, sessionID, flowID string) error {
	if _, err := s.Get(ctx, sessionID, flowID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, flowID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete flow")
	}
	return nil
}

func (s *service) mutateOwned(ctx context.Context, sessionID, flowID string, fn func(State) (State, error)) (State, error) {
	next, err := s.store.Mutate(ctx, flowID, func(current State, found bool) (State, error) {
		if !found || current.SessionID != sessionID {
			return State{}, errFlowNotFound(flowID)
		}
		return fn(current)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return State{}, err
		}
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update flow")
	}
	return next, nil
}

func errFlowNotFound(flowID string) error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "flow %q not found", flowID)
}
