package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsCountsByRouteAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.ObserveRequest("GET", "/api/v1/cart", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "/api/v1/cart", 200, 7*time.Millisecond)
	m.ObserveRequest("POST", "/api/v1/checkout", 503, time.Second)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "atmos_http_requests_total", "status", "503")
	require.NoError(t, err)
	require.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "atmos_http_request_duration_seconds", "route", "/api/v1/checkout")
	require.NoError(t, err)
	require.InDelta(t, 1.0, sum, 0.001)
}

func TestHTTPMetricsNilSafe(t *testing.T) {
	var m *HTTPMetrics
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
	NewHTTPMetrics(nil).ObserveRequest("GET", "/", 200, time.Millisecond)
}
