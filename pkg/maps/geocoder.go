package maps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	pkgerrors "github.com/atmosfood/storefront-backend/pkg/errors"
)

const requestBodyReadLimit int64 = 1024

// ErrNoMatch is wrapped into the NotFound error returned when a geocoder has
// no result for the address.
var ErrNoMatch = errors.New("no geocoding match")

// GeocodeResult is a resolved address.
type GeocodeResult struct {
	Lat         float64
	Lng         float64
	DisplayName string
	PlaceID     string
	Source      string
}

// Geocoder resolves free-text addresses into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodeResult, error)
}

func notFound(source, address string) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrNoMatch, fmt.Sprintf("%s found no match for %q", source, address))
}

func statusError(resp *http.Response, op string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
	return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed")
}

func trimBase(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
