package pricing

import (
	"strings"
	"testing"

	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/internal/cart"
	"github.com/atmosfood/storefront-backend/internal/catalog"
	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/stretchr/testify/require"
)

const fixtureTable = `
kitchen: hub
lgas:
  - name: Central
    surcharge: 100
    areas:
      - id: hub
        name: Hub
        lat: 8.5
        lng: 4.5
      - id: market
        name: Market
        lat: 8.51
        lng: 4.51
        surcharge: 250
      - id: school
        name: School
        lat: 8.52
        lng: 4.52
`

var (
	jollof  = catalog.MenuItem{ID: "jollof", Name: "Jollof Rice", Price: 4500, Category: enums.CategoryGrains}
	chicken = catalog.Protein{ID: "chicken", Name: "Grilled Chicken", Price: 3500}
	beef    = catalog.Protein{ID: "beef", Name: "Beef", Price: 4000}
)

func fixtureAreas(t *testing.T) *areas.Table {
	t.Helper()
	table, err := areas.Load(strings.NewReader(fixtureTable))
	require.NoError(t, err)
	return table
}

func deliveryConfig(policy string) config.DeliveryConfig {
	return config.DeliveryConfig{
		Policy:           policy,
		BaseFee:          400,
		DistanceFloorKm:  2,
		DistanceFloorFee: 500,
		PerKmRate:        200,
		KitchenLat:       8.5,
		KitchenLng:       4.5,
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestSubtotalWithProteins(t *testing.T) {
	c := cart.AddLine(cart.Cart{}, jollof, []catalog.Protein{chicken, beef}, 2)

	require.Equal(t, int64(24000), LineTotal(c.Lines[0]))
	require.Equal(t, int64(24000), Subtotal(c))
	require.Zero(t, Subtotal(cart.Cart{}))
}

func TestPickupIsAlwaysFree(t *testing.T) {
	engine, err := NewEngine(deliveryConfig(config.DeliveryPolicyArea), fixtureAreas(t))
	require.NoError(t, err)

	inputs := []FeeInput{
		{Method: enums.DeliveryMethodPickup},
		{Method: enums.DeliveryMethodPickup, AreaID: "market"},
		{Method: enums.DeliveryMethodPickup, DistanceKm: floatPtr(40)},
	}
	for _, in := range inputs {
		fee, _, err := engine.DeliveryFee(in)
		require.NoError(t, err)
		require.Zero(t, fee)
	}
}

func TestAreaTierFees(t *testing.T) {
	engine, err := NewEngine(deliveryConfig(config.DeliveryPolicyArea), fixtureAreas(t))
	require.NoError(t, err)

	cases := []struct {
		area string
		want int64
	}{
		{area: "hub", want: 400},
		{area: "market", want: 650},
		{area: "school", want: 500},
	}
	for _, tc := range cases {
		t.Run(tc.area, func(t *testing.T) {
			fee, policy, err := engine.DeliveryFee(FeeInput{Method: enums.DeliveryMethodDelivery, AreaID: tc.area})
			require.NoError(t, err)
			require.Equal(t, tc.want, fee)
			require.Equal(t, config.DeliveryPolicyArea, policy)
		})
	}

	_, _, err = engine.DeliveryFee(FeeInput{Method: enums.DeliveryMethodDelivery, AreaID: "nowhere"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDistanceTierFees(t *testing.T) {
	tier := DistanceTier{FloorKm: 2, FloorFee: 500, PerKm: 200}

	cases := []struct {
		km   float64
		want int64
	}{
		{km: 0, want: 500},
		{km: 2, want: 500},
		{km: 2.1, want: 700},
		{km: 3.2, want: 900},
		{km: 5, want: 1100},
	}
	for _, tc := range cases {
		fee, err := tier.Fee(FeeInput{DistanceKm: floatPtr(tc.km)})
		require.NoError(t, err)
		require.Equal(t, tc.want, fee, "distance %v", tc.km)
	}
}

func TestDistanceTierUsesHaversineFromOrigin(t *testing.T) {
	tier := DistanceTier{FloorKm: 2, FloorFee: 500, PerKm: 200, Origin: types.GeoPoint{Lat: 8.5, Lng: 4.5}}

	fee, err := tier.Fee(FeeInput{Location: &types.GeoPoint{Lat: 8.5, Lng: 4.5}})
	require.NoError(t, err)
	require.Equal(t, int64(500), fee)

	// roughly 5.56 km due north
	fee, err = tier.Fee(FeeInput{Location: &types.GeoPoint{Lat: 8.55, Lng: 4.5}})
	require.NoError(t, err)
	require.Equal(t, int64(1300), fee)
}

func TestEngineFallsBackToDistanceWithoutArea(t *testing.T) {
	engine, err := NewEngine(deliveryConfig(config.DeliveryPolicyArea), fixtureAreas(t))
	require.NoError(t, err)

	fee, policy, err := engine.DeliveryFee(FeeInput{Method: enums.DeliveryMethodDelivery, DistanceKm: floatPtr(3)})
	require.NoError(t, err)
	require.Equal(t, int64(700), fee)
	require.Equal(t, config.DeliveryPolicyDistance, policy)

	_, _, err = engine.DeliveryFee(FeeInput{Method: enums.DeliveryMethodDelivery})
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestDistancePolicyIsSelectable(t *testing.T) {
	engine, err := NewEngine(deliveryConfig(config.DeliveryPolicyDistance), fixtureAreas(t))
	require.NoError(t, err)

	fee, policy, err := engine.DeliveryFee(FeeInput{
		Method:     enums.DeliveryMethodDelivery,
		AreaID:     "market",
		DistanceKm: floatPtr(1),
	})
	require.NoError(t, err)
	require.Equal(t, int64(500), fee)
	require.Equal(t, config.DeliveryPolicyDistance, policy)

	_, err = NewEngine(deliveryConfig("flat"), fixtureAreas(t))
	require.Error(t, err)
}

func TestFeeNeverNegative(t *testing.T) {
	tier := AreaTier{BaseFee: -1000, Areas: fixtureAreas(t)}
	fee, err := tier.Fee(FeeInput{AreaID: "market"})
	require.NoError(t, err)
	require.Zero(t, fee)
}

func TestQuoteBulkDiffScenarioWithPickup(t *testing.T) {
	engine, err := NewEngine(deliveryConfig(config.DeliveryPolicyArea), fixtureAreas(t))
	require.NoError(t, err)

	c := cart.AddLines(cart.Cart{}, jollof, []cart.LineSpec{
		{Quantity: 1, Proteins: []catalog.Protein{chicken}},
		{Quantity: 1},
	})
	quote, err := engine.Quote(c, FeeInput{Method: enums.DeliveryMethodPickup})
	require.NoError(t, err)

	require.Len(t, quote.Lines, 2)
	require.Equal(t, int64(8000), quote.Lines[0].LineTotal)
	require.Equal(t, int64(4500), quote.Lines[1].LineTotal)
	require.Equal(t, int64(12500), quote.Subtotal)
	require.Equal(t, int64(12500), quote.Total)
	require.True(t, quote.FeeResolved)
}

func TestQuoteUnresolvedDelivery(t *testing.T) {
	engine, err := NewEngine(deliveryConfig(config.DeliveryPolicyArea), fixtureAreas(t))
	require.NoError(t, err)

	c := cart.AddLine(cart.Cart{}, jollof, nil, 1)
	quote, err := engine.Quote(c, FeeInput{Method: enums.DeliveryMethodDelivery})
	require.NoError(t, err)
	require.False(t, quote.FeeResolved)
	require.Equal(t, quote.Subtotal, quote.Total)

	quote, err = engine.Quote(c, FeeInput{Method: enums.DeliveryMethodDelivery, AreaID: "market"})
	require.NoError(t, err)
	require.Equal(t, int64(4500+650), quote.Total)
}
