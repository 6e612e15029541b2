package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// ErrUnresolved means delivery was chosen but the fee inputs are missing.
var ErrUnresolved = errors.New("delivery location not resolved")

// FeeInput carries the fulfillment facts the fee depends on.
type FeeInput struct {
	Method     enums.DeliveryMethod
	AreaID     string
	Location   *types.GeoPoint
	DistanceKm *float64
}

// AreaResolver looks up static per-area surcharges.
type AreaResolver interface {
	Surcharge(areaID string) (int64, error)
}

// Policy computes a delivery fee from local data only.
type Policy interface {
	Name() string
	Applies(in FeeInput) bool
	Fee(in FeeInput) (int64, error)
}

// AreaTier charges the base fee plus the area (or LGA default) surcharge.
type AreaTier struct {
	BaseFee int64
	Areas   AreaResolver
}

func (AreaTier) Name() string { return config.DeliveryPolicyArea }

func (AreaTier) Applies(in FeeInput) bool {
	return strings.TrimSpace(in.AreaID) != ""
}

func (p AreaTier) Fee(in FeeInput) (int64, error) {
	if !p.Applies(in) {
		return 0, ErrUnresolved
	}
	surcharge, err := p.Areas.Surcharge(in.AreaID)
	if err != nil {
		return 0, err
	}
	return nonNegative(p.BaseFee + surcharge), nil
}

// DistanceTier charges a floor fee up to FloorKm and PerKm for every started
// kilometre beyond it.
type DistanceTier struct {
	FloorKm  float64
	FloorFee int64
	PerKm    int64
	Origin   types.GeoPoint
}

func (DistanceTier) Name() string { return config.DeliveryPolicyDistance }

func (DistanceTier) Applies(in FeeInput) bool {
	return in.DistanceKm != nil || in.Location != nil
}

func (p DistanceTier) Fee(in FeeInput) (int64, error) {
	km, ok := p.distance(in)
	if !ok {
		return 0, ErrUnresolved
	}
	if km <= p.FloorKm {
		return nonNegative(p.FloorFee), nil
	}
	extra := decimal.NewFromFloat(km).Sub(decimal.NewFromFloat(p.FloorKm)).Ceil()
	fee := decimal.NewFromInt(p.FloorFee).Add(extra.Mul(decimal.NewFromInt(p.PerKm)))
	return nonNegative(fee.IntPart()), nil
}

func (p DistanceTier) distance(in FeeInput) (float64, bool) {
	if in.DistanceKm != nil {
		return *in.DistanceKm, true
	}
	if in.Location != nil {
		return p.Origin.DistanceKm(*in.Location), true
	}
	return 0, false
}

// Engine applies the configured policy, falling back to the other one when
// the primary has nothing to work with.
type Engine struct {
	primary  Policy
	fallback Policy
}

// NewEngine selects the primary policy from cfg.
func NewEngine(cfg config.DeliveryConfig, areas AreaResolver) (*Engine, error) {
	if areas == nil {
		return nil, fmt.Errorf("area resolver required")
	}
	area := AreaTier{BaseFee: cfg.BaseFee, Areas: areas}
	distance := DistanceTier{
		FloorKm:  cfg.DistanceFloorKm,
		FloorFee: cfg.DistanceFloorFee,
		PerKm:    cfg.PerKmRate,
		Origin:   types.GeoPoint{Lat: cfg.KitchenLat, Lng: cfg.KitchenLng},
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Policy)) {
	case config.DeliveryPolicyArea, "":
		return &Engine{primary: area, fallback: distance}, nil
	case config.DeliveryPolicyDistance:
		return &Engine{primary: distance, fallback: area}, nil
	default:
		return nil, fmt.Errorf("unknown delivery policy %q", cfg.Policy)
	}
}

// NewEngineWith pins explicit policies.
func NewEngineWith(primary, fallback Policy) *Engine {
	return &Engine{primary: primary, fallback: fallback}
}

// DeliveryFee returns the fee and the name of the policy that produced it.
// Pickup is always free.
func (e *Engine) DeliveryFee(in FeeInput) (int64, string, error) {
	if in.Method == enums.DeliveryMethodPickup {
		return 0, "", nil
	}
	for _, p := range []Policy{e.primary, e.fallback} {
		if p == nil || !p.Applies(in) {
			continue
		}
		fee, err := p.Fee(in)
		if err != nil {
			return 0, "", err
		}
		return fee, p.Name(), nil
	}
	return 0, "", ErrUnresolved
}

// Quote prices the cart and adds the delivery fee. An unresolved location
// is reported through FeeResolved rather than as an error.
func (e *Engine) Quote(c cart.Cart, in FeeInput) (PricedCart, error) {
	out := Price(c)
	fee, policy, err := e.DeliveryFee(in)
	switch {
	case errors.Is(err, ErrUnresolved):
		return out, nil
	case err != nil:
		return PricedCart{}, err
	}
	out.DeliveryFee = fee
	out.FeePolicy = policy
	out.FeeResolved = true
	out.Total = out.Subtotal + fee
	return out, nil
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
