package address

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atmosfood/storefront-backend/internal/areas"
	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
	"github.com/atmosfood/storefront-backend/pkg/maps"
	"github.com/atmosfood/storefront-backend/pkg/types"
)

const (
	SourceGazetteer = "gazetteer"

	defaultTimeout      = 10 * time.Second
	defaultSuggestLimit = 5
	fallbackArea        = "area"
)

type rateLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type lookupCounter interface {
	IncGeocodeLookup(source, result string)
}

type Service interface {
	Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error)
	Resolve(ctx context.Context, req ResolveRequest) (Resolution, error)
}

// ServiceParams bundles the dependencies of the address resolver. Geocoder,
// Limiter and Metrics are optional.
type ServiceParams struct {
	Areas     *areas.Table
	Geocoder  maps.Geocoder
	Kitchen   types.GeoPoint
	Timeout   time.Duration
	Limiter   rateLimiter
	RateLimit int64
	Window    time.Duration
	Metrics   lookupCounter
}

type service struct {
	areas     *areas.Table
	geocoder  maps.Geocoder
	kitchen   types.GeoPoint
	timeout   time.Duration
	limiter   rateLimiter
	rateLimit int64
	window    time.Duration
	metrics   lookupCounter
}

func NewService(params ServiceParams) (Service, error) {
	if params.Areas == nil {
		return nil, fmt.Errorf("area table is required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &service{
		areas:     params.Areas,
		geocoder:  params.Geocoder,
		kitchen:   params.Kitchen,
		timeout:   timeout,
		limiter:   params.Limiter,
		rateLimit: params.RateLimit,
		window:    params.Window,
		metrics:   params.Metrics,
	}, nil
}

// Suggest lists areas matching the typed text. It never calls out.
func (s *service) Suggest(_ context.Context, req SuggestRequest) ([]Suggestion, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	matches := s.areas.Search(req.Query, limit)
	out := make([]Suggestion, 0, len(matches))
	for _, a := range matches {
		out = append(out, Suggestion{AreaID: a.ID, Name: a.Name, LGA: a.LGA})
	}
	return out, nil
}

// Resolve turns free text into a point inside the delivery bounds. Known
// area names are matched locally first; anything else goes to the
// geocoder. Failures carry a "fallback" detail pointing at the area picker.
func (s *service) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}
	if err := s.allow(ctx, req.Scope); err != nil {
		return Resolution{}, err
	}

	if area, ok := s.areas.Locate(query); ok {
		s.count(SourceGazetteer, "hit")
		return s.fromArea(query, area), nil
	}
	if s.geocoder == nil {
		s.count(SourceGazetteer, "miss")
		return Resolution{}, withFallback(pkgerrors.New(pkgerrors.CodeNotFound, "address not recognised; pick your area instead"))
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.geocoder.Geocode(lookupCtx, query)
	if err != nil {
		switch {
		case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			s.count("geocoder", "miss")
			return Resolution{}, withFallback(pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "address not found; pick your area instead"))
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded):
			s.count("geocoder", "timeout")
			return Resolution{}, withFallback(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "address lookup timed out; pick your area instead"))
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
			return Resolution{}, err
		default:
			s.count("geocoder", "error")
			return Resolution{}, withFallback(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "address lookup failed; pick your area instead"))
		}
	}

	point := types.GeoPoint{Lat: res.Lat, Lng: res.Lng}
	if !s.areas.Bounds().Contains(point) {
		s.count(res.Source, "out_of_bounds")
		return Resolution{}, withFallback(pkgerrors.New(pkgerrors.CodeNotFound, "address is outside our delivery zone"))
	}
	s.count(res.Source, "hit")

	out := Resolution{
		Query:       query,
		DisplayName: res.DisplayName,
		Point:       point,
		DistanceKm:  s.kitchen.DistanceKm(point),
		Source:      res.Source,
	}
	if area, _, within := s.areas.Nearest(point); within {
		out.Area = &area
	}
	return out, nil
}

func (s *service) fromArea(query string, area areas.Area) Resolution {
	a := area
	return Resolution{
		Query:       query,
		DisplayName: area.Name,
		Point:       area.Point,
		DistanceKm:  s.kitchen.DistanceKm(area.Point),
		Area:        &a,
		Source:      SourceGazetteer,
	}
}

func (s *service) allow(ctx context.Context, scope string) error {
	if s.limiter == nil || s.rateLimit <= 0 || strings.TrimSpace(scope) == "" {
		return nil
	}
	ok, _, err := s.limiter.FixedWindowAllow(ctx, "geocode:"+scope, s.rateLimit, s.window)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check failed")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many address lookups; try again shortly")
	}
	return nil
}

func (s *service) count(source, result string) {
	if s.metrics != nil {
		s.metrics.IncGeocodeLookup(source, result)
	}
}

func withFallback(err *pkgerrors.Error) error {
	return err.WithDetails(map[string]string{"fallback": fallbackArea})
}

type SuggestRequest struct {
	Query string
	Limit int
}

// ResolveRequest is scoped per session for rate limiting.
type ResolveRequest struct {
	Query string
	Scope string
}

type Suggestion struct {
	AreaID string `json:"areaId"`
	Name   string `json:"name"`
	LGA    string `json:"lga"`
}

// Resolution is a located address. Area is set when the point falls
// within an area's radius or the text named one.
type Resolution struct {
	Query       string         `json:"query"`
	DisplayName string         `json:"displayName"`
	Point       types.GeoPoint `json:"location"`
	DistanceKm  float64        `json:"distanceKm"`
	Area        *areas.Area    `json:"area,omitempty"`
	Source      string         `json:"source"`
}
