package main

import (
	"context"
	"net/http"

	"gorm.io/gorm"

	"github.com/atmosfood/storefront-backend/pkg/config"
	"github.com/atmosfood/storefront-backend/pkg/logger"
	"github.com/atmosfood/storefront-backend/pkg/maps"
	"github.com/atmosfood/storefront-backend/pkg/outbox"
	"github.com/atmosfood/storefront-backend/pkg/pubsub"
)

// newGeocoder puts Google Maps ahead of Nominatim when an API key is set.
func newGeocoder(cfg *config.Config) (maps.Geocoder, error) {
	nominatim := maps.NewNominatimClient(
		maps.WithNominatimHTTPClient(&http.Client{Timeout: cfg.Geocoding.Timeout}),
		maps.WithNominatimBaseURL(cfg.Geocoding.NominatimURL),
		maps.WithUserAgent(cfg.Geocoding.UserAgent),
		maps.WithCountryCode(cfg.Geocoding.CountryCode),
		maps.WithCitySuffix(cfg.Geocoding.CitySuffix),
	)
	if cfg.GoogleMaps.APIKey == "" {
		return nominatim, nil
	}

	opts := []maps.Option{
		maps.WithHTTPClient(&http.Client{Timeout: cfg.Geocoding.Timeout}),
		maps.WithRegion(cfg.Geocoding.CountryCode),
	}
	if cfg.GoogleMaps.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.GoogleMaps.BaseURL))
	}
	google, err := maps.NewClient(cfg.GoogleMaps.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	return maps.Chain{google, nominatim}, nil
}

type orderEventPublisher interface {
	Publish(ctx context.Context, evt pubsub.OrderEvent) (string, error)
}

// newOrderEvents queues order events in the outbox when they are switched on.
// The cron worker relays them to Pub/Sub.
func newOrderEvents(cfg *config.Config, conn *gorm.DB, logg *logger.Logger) orderEventPublisher {
	if !cfg.FeatureFlags.OrderEvents {
		return nil
	}
	return outbox.NewService(outbox.NewRepository(conn), conn, logg)
}
