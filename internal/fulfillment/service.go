package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/internal/address"
	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	pkgredis "github.com/atmosfood/storefront-backend/pkg/redis"
)

// Store persists one Config per session.
type Store interface {
	Load(ctx context.Context, sessionID string) (Config, error)
	Mutate(ctx context.Context, sessionID string, fn func(Config) (Config, error)) (Config, error)
	Delete(ctx context.Context, sessionID string) error
}

type redisStore struct {
	client *pkgredis.Client
	ttl    time.Duration
}

// NewRedisStore keeps configs under the session's fulfillment key.
func NewRedisStore(client *pkgredis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func (r *redisStore) Load(ctx context.Context, sessionID string) (Config, error) {
	cfg, found, err := pkgredis.GetJSON[Config](ctx, r.client, r.client.FulfillmentKey(sessionID))
	if err != nil {
		return Config{}, err
	}
	if !found {
		return New(), nil
	}
	return cfg, nil
}

func (r *redisStore) Mutate(ctx context.Context, sessionID string, fn func(Config) (Config, error)) (Config, error) {
	return pkgredis.UpdateJSON(ctx, r.client, r.client.FulfillmentKey(sessionID), r.ttl, func(current Config, found bool) (Config, bool, error) {
		if !found {
			current = New()
		}
		next, err := fn(current)
		return next, err == nil, err
	})
}

func (r *redisStore) Delete(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, r.client.FulfillmentKey(sessionID))
}

// DetailsInput updates contact fields and the address text. Nil fields are
// left alone.
type DetailsInput struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Address *string `json:"address"`
}

// View is a config plus its submit gate.
type View struct {
	Config    Config   `json:"fulfillment"`
	Missing   []string `json:"missing"`
	CanSubmit bool     `json:"canSubmit"`
}

type Service interface {
	Get(ctx context.Context, sessionID string) (View, error)
	SetMethod(ctx context.Context, sessionID string, method enums.DeliveryMethod) (View, error)
	SelectArea(ctx context.Context, sessionID, areaID string) (View, error)
	ResolveAddress(ctx context.Context, sessionID, text string) (View, error)
	UpdateDetails(ctx context.Context, sessionID string, input DetailsInput) (View, error)
	Reset(ctx context.Context, sessionID string) error
	ViewOf(cfg Config) View
}

// ServiceParams bundles fulfillment dependencies.
type ServiceParams struct {
	Store        Store
	Areas        *areas.Table
	Resolver     address.Service
	RequireEmail bool
	Logger       *logger.Logger
}

type service struct {
	store        Store
	areas        *areas.Table
	resolver     address.Service
	requireEmail bool
	logg         *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("fulfillment store is required")
	}
	if params.Areas == nil {
		return nil, fmt.Errorf("area table is required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("address resolver is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		store:        params.Store,
		areas:        params.Areas,
		resolver:     params.Resolver,
		requireEmail: params.RequireEmail,
		logg:         params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (View, error) {
	if err := requireSession(sessionID); err != nil {
		return View{}, err
	}
	cfg, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load fulfillment")
	}
	return s.ViewOf(cfg), nil
}

func (s *service) SetMethod(ctx context.Context, sessionID string, method enums.DeliveryMethod) (View, error) {
	if !method.IsValid() {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "method must be delivery or pickup")
	}
	return s.mutate(ctx, sessionID, func(cfg Config) (Config, error) {
		return cfg.WithMethod(method), nil
	})
}

func (s *service) SelectArea(ctx context.Context, sessionID, areaID string) (View, error) {
	area, ok := s.areas.Area(areaID)
	if !ok {
		return View{}, pkgerrors.Newf(pkgerrors.CodeNotFound, "unknown delivery area %q", areaID)
	}
	return s.mutate(ctx, sessionID, func(cfg Config) (Config, error) {
		if cfg.Method != enums.DeliveryMethodDelivery {
			return cfg, errPickupHasNoArea()
		}
		return cfg.WithArea(area), nil
	})
}

// ResolveAddress locates text and stores the result. On failure the stored
// config keeps the address text so the customer can switch to the area
// picker without retyping.
func (s *service) ResolveAddress(ctx context.Context, sessionID, text string) (View, error) {
	if err := requireSession(sessionID); err != nil {
		return View{}, err
	}
	current, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return View{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load fulfillment")
	}
	if current.Method != enums.DeliveryMethodDelivery {
		return View{}, errPickupHasNoArea()
	}

	res, resolveErr := s.resolver.Resolve(ctx, address.ResolveRequest{Query: text, Scope: sessionID})
	if resolveErr != nil {
		if pkgerrors.IsCode(resolveErr, pkgerrors.CodeValidation) || pkgerrors.IsCode(resolveErr, pkgerrors.CodeRateLimit) {
			return View{}, resolveErr
		}
		s.logg.Warn(s.logg.WithField(ctx, "address", strings.TrimSpace(text)), "address resolution failed")
		if _, err := s.mutate(ctx, sessionID, func(cfg Config) (Config, error) {
			return cfg.WithAddress(text), nil
		}); err != nil {
			s.logg.Error(ctx, "failed to keep address text", err)
		}
		return View{}, resolveErr
	}

	return s.mutate(ctx, sessionID, func(cfg Config) (Config, error) {
		if cfg.Method != enums.DeliveryMethodDelivery {
			return cfg, errPickupHasNoArea()
		}
		return cfg.WithResolution(res), nil
	})
}

func (s *service) UpdateDetails(ctx context.Context, sessionID string, input DetailsInput) (View, error) {
	if input.Email != nil {
		if email := strings.TrimSpace(*input.Email); email != "" && validate.Var(email, "email") != nil {
			return View{}, pkgerrors.New(pkgerrors.CodeValidation, "email is not valid").
				WithDetails(map[string]string{FieldEmail: "must be a valid email"})
		}
	}
	return s.mutate(ctx, sessionID, func(cfg Config) (Config, error) {
		if input.Name != nil {
			cfg.Contact.Name = strings.TrimSpace(*input.Name)
		}
		if input.Phone != nil {
			cfg.Contact.Phone = strings.TrimSpace(*input.Phone)
		}
		if input.Email != nil {
			cfg.Contact.Email = strings.ToLower(strings.TrimSpace(*input.Email))
		}
		if input.Address != nil {
			cfg = cfg.WithAddress(*input.Address)
		}
		return cfg, nil
	})
}

func (s *service) Reset(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset fulfillment")
	}
	return nil
}

func (s *service) ViewOf(cfg Config) View {
	missing := Missing(cfg, s.requireEmail)
	return View{Config: cfg, Missing: missing, CanSubmit: len(missing) == 0}
}

func (s *service) mutate(ctx context.Context, sessionID string, fn func(Config) (Config, error)) (View, error) {
	if err := requireSession(sessionID); err != nil {
		return View{}, err
	}
	cfg, err := s.store.Mutate(ctx, sessionID, fn)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return View{}, err
		}
		return View{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update fulfillment")
	}
	return s.ViewOf(cfg), nil
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	return nil
}

func errPickupHasNoArea() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "switch to delivery before choosing a location")
}
