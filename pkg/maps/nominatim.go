package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultUserAgent    = "AtmosFood App"
	nominatimLimit      = 5

	sourceNominatim = "nominatim"
)

// NominatimClient queries the OpenStreetMap search API. Queries are suffixed
// with the city so short local addresses resolve inside the delivery zone.
type NominatimClient struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	countryCode string
	citySuffix  string
}

// NominatimOption configures the Nominatim client.
type NominatimOption func(*NominatimClient)

// WithNominatimHTTPClient overrides the default HTTP client.
func WithNominatimHTTPClient(client *http.Client) NominatimOption {
	return func(c *NominatimClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithNominatimBaseURL overrides the search host.
func WithNominatimBaseURL(baseURL string) NominatimOption {
	return func(c *NominatimClient) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithUserAgent sets the identifying User-Agent the usage policy requires.
func WithUserAgent(ua string) NominatimOption {
	return func(c *NominatimClient) {
		if trimmed := strings.TrimSpace(ua); trimmed != "" {
			c.userAgent = trimmed
		}
	}
}

// WithCountryCode restricts matches to a country.
func WithCountryCode(code string) NominatimOption {
	return func(c *NominatimClient) {
		c.countryCode = strings.ToLower(strings.TrimSpace(code))
	}
}

// WithCitySuffix appends ", <suffix>" to every query.
func WithCitySuffix(suffix string) NominatimOption {
	return func(c *NominatimClient) {
		c.citySuffix = strings.TrimSpace(suffix)
	}
}

// NewNominatimClient builds a Nominatim client.
func NewNominatimClient(opts ...NominatimOption) *NominatimClient {
	client := &NominatimClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultNominatimURL,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Geocode returns the best match for address.
func (c *NominatimClient) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "nominatim client not configured")
	}
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	query := trimmed
	if c.citySuffix != "" && !strings.Contains(strings.ToLower(trimmed), strings.ToLower(c.citySuffix)) {
		query = fmt.Sprintf("%s, %s", trimmed, c.citySuffix)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(nominatimLimit))
	if c.countryCode != "" {
		q.Set("countrycodes", c.countryCode)
	}
	endpoint := fmt.Sprintf("%s/search?%s", trimBase(c.baseURL), q.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build nominatim request")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute nominatim request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, "nominatim")
	}

	var results []struct {
		PlaceID     json.Number `json:"place_id"`
		Lat         string      `json:"lat"`
		Lon         string      `json:"lon"`
		DisplayName string      `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode nominatim response")
	}
	if len(results) == 0 {
		return nil, notFound(sourceNominatim, trimmed)
	}

	first := results[0]
	lat, err := strconv.ParseFloat(first.Lat, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse nominatim latitude")
	}
	lng, err := strconv.ParseFloat(first.Lon, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse nominatim longitude")
	}

	return &GeocodeResult{
		Lat:         lat,
		Lng:         lng,
		DisplayName: first.DisplayName,
		PlaceID:     first.PlaceID.String(),
		Source:      sourceNominatim,
	}, nil
}

// Chain tries each geocoder in order. A NotFound from one falls through to the
// next; any other error is remembered and returned if nobody matches.
type Chain []Geocoder

// Geocode implements Geocoder.
func (c Chain) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	var lastErr error
	for _, g := range c {
		if g == nil {
			continue
		}
		res, err := g.Geocode(ctx, address)
		if err == nil {
			return res, nil
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			return nil, err
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			lastErr = err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, notFound("geocoder", strings.TrimSpace(address))
}
