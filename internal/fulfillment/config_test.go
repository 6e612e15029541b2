package fulfillment

import (
	"testing"

	"github.com/atmosfood/storefront-backend/internal/address"
	"github.com/atmosfood/storefront-backend/internal/areas"
	"github.com/atmosfood/storefront-backend/pkg/enums"
	"github.com/atmosfood/storefront-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var market = areas.Area{ID: "market", Name: "Market Square", LGA: "Central", Surcharge: 250}

func TestSwitchingMethodDiscardsResolution(t *testing.T) {
	cfg := New().WithArea(market)
	cfg.Address = "12 Market Road"
	require.True(t, cfg.Resolved())

	cfg = cfg.WithMethod(enums.DeliveryMethodPickup)
	assert.Empty(t, cfg.AreaID)
	assert.True(t, cfg.Resolved(), "pickup needs no location")

	cfg = cfg.WithMethod(enums.DeliveryMethodDelivery)
	assert.False(t, cfg.Resolved())
	assert.Empty(t, cfg.AreaID)
	assert.Nil(t, cfg.Location)
	assert.Equal(t, "12 Market Road", cfg.Address)
}

func TestSameMethodKeepsResolution(t *testing.T) {
	cfg := New().WithArea(market).WithMethod(enums.DeliveryMethodDelivery)
	assert.Equal(t, "market", cfg.AreaID)
}

func TestWithResolutionSetsFeeInputs(t *testing.T) {
	area := market
	cfg := New().WithResolution(address.Resolution{
		Query:       "12 Oja Road",
		DisplayName: "Oja Road, Ilorin",
		Point:       types.GeoPoint{Lat: 8.45, Lng: 4.6},
		DistanceKm:  3.5,
		Area:        &area,
		Source:      "nominatim",
	})

	in := cfg.FeeInput()
	assert.Equal(t, enums.DeliveryMethodDelivery, in.Method)
	assert.Equal(t, "market", in.AreaID)
	require.NotNil(t, in.DistanceKm)
	assert.InDelta(t, 3.5, *in.DistanceKm, 1e-9)
	assert.Equal(t, "12 Oja Road", cfg.Address)
}

func TestEditingGeocodedAddressDropsLocation(t *testing.T) {
	cfg := New().WithResolution(address.Resolution{Query: "old street", Point: types.GeoPoint{Lat: 8.5, Lng: 4.5}, Source: "google"})
	cfg = cfg.WithAddress("new street")
	assert.Nil(t, cfg.Location)
	assert.Equal(t, "new street", cfg.Address)

	picked := New().WithArea(market).WithAddress("house 4")
	assert.Equal(t, "market", picked.AreaID)
}

func TestMissingFields(t *testing.T) {
	cfg := New()
	assert.Equal(t, []string{FieldName, FieldPhone, FieldAddress, FieldLocation}, Missing(cfg, false))
	assert.Equal(t, []string{FieldName, FieldPhone, FieldEmail, FieldAddress, FieldLocation}, Missing(cfg, true))

	cfg.Contact = Contact{Name: "Ada", Phone: "08030000000"}
	cfg = cfg.WithMethod(enums.DeliveryMethodPickup)
	assert.Empty(t, Missing(cfg, false))
	assert.True(t, CanSubmit(cfg, false))
	assert.Equal(t, []string{FieldEmail}, Missing(cfg, true))

	cfg.Contact.Email = "not-an-email"
	assert.Equal(t, []string{FieldEmail}, Missing(cfg, false))

	cfg.Contact.Email = "ada@example.com"
	cfg = cfg.WithMethod(enums.DeliveryMethodDelivery).WithArea(market).WithAddress("4 Unity Road")
	assert.Empty(t, Missing(cfg, true))
}
