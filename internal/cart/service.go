package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
)

const maxLineQuantity = 99

type mutationCounter interface {
	IncCartMutation(op string)
}

// AddItemInput is the plain add-to-cart request.
type AddItemInput struct {
	ItemID     string   `json:"itemId" validate:"required"`
	ProteinIDs []string `json:"proteinIds"`
	Quantity   int      `json:"quantity" validate:"omitempty,min=1,max=99"`
}

// AddResult is the cart after an add plus the nudge to display.
type AddResult struct {
	Cart  Cart  `json:"cart"`
	Nudge Nudge `json:"nudge"`
}

// Service exposes the session cart and its staging sets.
type Service interface {
	Get(ctx context.Context, sessionID string) (Cart, error)
	AddItem(ctx context.Context, sessionID string, input AddItemInput) (*AddResult, error)
	AddLines(ctx context.Context, sessionID string, item catalog.MenuItem, specs []LineSpec) (*AddResult, error)
	UpdateQuantity(ctx context.Context, sessionID, lineID string, delta int) (Cart, error)
	RemoveLine(ctx context.Context, sessionID, lineID string) (Cart, error)
	Clear(ctx context.Context, sessionID string) error

	OpenStaging(ctx context.Context, sessionID string, category enums.Category) (Staging, error)
	GetStaging(ctx context.Context, sessionID string, category enums.Category) (Staging, error)
	StageItem(ctx context.Context, sessionID string, category enums.Category, itemID string, quantity int) (Staging, error)
	AdjustStaged(ctx context.Context, sessionID string, category enums.Category, lineID string, delta int) (Staging, error)
	ConfirmStaging(ctx context.Context, sessionID string, category enums.Category) (Cart, error)
	DiscardStaging(ctx context.Context, sessionID string, category enums.Category) error
}

type service struct {
	store   Store
	catalog catalog.Service
	nudges  config.NudgeConfig
	logg    *logger.Logger
	metrics mutationCounter
}

// NewService builds a cart service backed by store and the loaded catalog.
func NewService(store Store, cat catalog.Service, nudges config.NudgeConfig, logg *logger.Logger, metrics mutationCounter) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{store: store, catalog: cat, nudges: nudges, logg: logg, metrics: metrics}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (Cart, error) {
	if err := requireSession(sessionID); err != nil {
		return Cart{}, err
	}
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, sessionID string, input AddItemInput) (*AddResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	item, err := s.catalog.Item(strings.TrimSpace(input.ItemID))
	if err != nil {
		return nil, err
	}
	if item.Category == enums.CategoryDrinks && len(input.ProteinIDs) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drinks do not take proteins")
	}
	proteins, err := s.catalog.ResolveProteins(input.ProteinIDs)
	if err != nil {
		return nil, err
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 || quantity > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 99")
	}
	return s.AddLines(ctx, sessionID, item, []LineSpec{{Quantity: quantity, Proteins: proteins}})
}

// AddLines merges every line spec through AddLine in a single store mutation.
func (s *service) AddLines(ctx context.Context, sessionID string, item catalog.MenuItem, specs []LineSpec) (*AddResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	c, err := s.store.Mutate(ctx, sessionID, func(current Cart) (Cart, error) {
		return AddLines(current, item, specs), nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add to cart")
	}
	s.count("add")
	return &AddResult{Cart: c, Nudge: NudgeFor(item, s.nudges)}, nil
}

func (s *service) UpdateQuantity(ctx context.Context, sessionID, lineID string, delta int) (Cart, error) {
	if err := requireSession(sessionID); err != nil {
		return Cart{}, err
	}
	c, err := s.store.Mutate(ctx, sessionID, func(current Cart) (Cart, error) {
		return UpdateQuantity(current, lineID, delta), nil
	})
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart quantity")
	}
	s.count("update_quantity")
	return c, nil
}

func (s *service) RemoveLine(ctx context.Context, sessionID, lineID string) (Cart, error) {
	if err := requireSession(sessionID); err != nil {
		return Cart{}, err
	}
	c, err := s.store.Mutate(ctx, sessionID, func(current Cart) (Cart, error) {
		return RemoveLine(current, lineID), nil
	})
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line")
	}
	s.count("remove")
	return c, nil
}

func (s *service) Clear(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	s.count("clear")
	return nil
}

// OpenStaging reseeds the staging set from the cart, dropping any earlier
// unconfirmed edits.
func (s *service) OpenStaging(ctx context.Context, sessionID string, category enums.Category) (Staging, error) {
	if err := requireStagingScope(sessionID, category); err != nil {
		return Staging{}, err
	}
	c, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Staging{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	st, err := s.store.MutateStaging(ctx, sessionID, category, func(Staging, bool) (Staging, error) {
		return NewStaging(c, category), nil
	})
	if err != nil {
		return Staging{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open staging")
	}
	return st, nil
}

func (s *service) GetStaging(ctx context.Context, sessionID string, category enums.Category) (Staging, error) {
	if err := requireStagingScope(sessionID, category); err != nil {
		return Staging{}, err
	}
	st, found, err := s.store.LoadStaging(ctx, sessionID, category)
	if err != nil {
		return Staging{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load staging")
	}
	if !found {
		return Staging{}, errStagingClosed(category)
	}
	return st, nil
}

func (s *service) StageItem(ctx context.Context, sessionID string, category enums.Category, itemID string, quantity int) (Staging, error) {
	if err := requireStagingScope(sessionID, category); err != nil {
		return Staging{}, err
	}
	item, err := s.catalog.Item(strings.TrimSpace(itemID))
	if err != nil {
		return Staging{}, err
	}
	if item.Category != category {
		return Staging{}, pkgerrors.Newf(pkgerrors.CodeValidation, "item is not in %s", category).
			WithDetails(map[string]any{"itemId": item.ID, "category": item.Category})
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 || quantity > maxLineQuantity {
		return Staging{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be between 1 and 99")
	}
	return s.mutateOpenStaging(ctx, sessionID, category, func(st Staging) Staging {
		return st.Add(item, quantity)
	})
}

func (s *service) AdjustStaged(ctx context.Context, sessionID string, category enums.Category, lineID string, delta int) (Staging, error) {
	if err := requireStagingScope(sessionID, category); err != nil {
		return Staging{}, err
	}
	return s.mutateOpenStaging(ctx, sessionID, category, func(st Staging) Staging {
		return st.Adjust(lineID, delta)
	})
}

// ConfirmStaging reconciles the staging set into the cart and closes it.
func (s *service) ConfirmStaging(ctx context.Context, sessionID string, category enums.Category) (Cart, error) {
	st, err := s.GetStaging(ctx, sessionID, category)
	if err != nil {
		return Cart{}, err
	}
	c, err := s.store.Mutate(ctx, sessionID, func(current Cart) (Cart, error) {
		return Reconcile(current, st), nil
	})
	if err != nil {
		return Cart{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reconcile staging")
	}
	if err := s.store.ClearStaging(ctx, sessionID, category); err != nil {
		s.logg.Error(ctx, "failed to close staging after confirm", err)
	}
	s.count("reconcile")
	return c, nil
}

func (s *service) DiscardStaging(ctx context.Context, sessionID string, category enums.Category) error {
	if err := requireStagingScope(sessionID, category); err != nil {
		return err
	}
	if err := s.store.ClearStaging(ctx, sessionID, category); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "discard staging")
	}
	return nil
}

func (s *service) mutateOpenStaging(ctx context.Context, sessionID string, category enums.Category, fn func(Staging) Staging) (Staging, error) {
	st, err := s.store.MutateStaging(ctx, sessionID, category, func(current Staging, found bool) (Staging, error) {
		if !found {
			return Staging{}, errStagingClosed(category)
		}
		return fn(current), nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Staging{}, err
		}
		return Staging{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update staging")
	}
	return st, nil
}

func (s *service) count(op string) {
	if s.metrics != nil {
		s.metrics.IncCartMutation(op)
	}
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return nil
}

func requireStagingScope(sessionID string, category enums.Category) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if !category.IsValid() || category == enums.CategoryAll {
		return pkgerrors.New(pkgerrors.CodeValidation, "staging requires a concrete category")
	}
	return nil
}

func errStagingClosed(category enums.Category) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "%s selection is not open", strings.ToLower(category.String()))
}
