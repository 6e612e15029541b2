package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StorefrontMetrics tracks the request-path behavior of the storefront API.
type StorefrontMetrics struct {
	cartMutations    *prometheus.CounterVec
	checkoutOutcomes *prometheus.CounterVec
	geocodeLookups   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// NewStorefrontMetrics registers the storefront metrics on reg. A nil
// registerer yields a no-op recorder.
func NewStorefrontMetrics(reg prometheus.Registerer) *StorefrontMetrics {
	if reg == nil {
		return &StorefrontMetrics{}
	}
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "mutations_total",
		Help:      "Cart mutations by operation.",
	}, []string{"op"})
	checkoutOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "outcomes_total",
		Help:      "Checkout submissions and confirmations by outcome.",
	}, []string{"outcome"})
	geocodeLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "geocode",
		Name:      "lookups_total",
		Help:      "Address resolutions by source and result.",
	}, []string{"source", "result"})
	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Latency of calls to the remote product and order API.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"service", "op"})
	reg.MustRegister(cartMutations, checkoutOutcomes, geocodeLookups, upstreamDuration)
	return &StorefrontMetrics{
		cartMutations:    cartMutations,
		checkoutOutcomes: checkoutOutcomes,
		geocodeLookups:   geocodeLookups,
		upstreamDuration: upstreamDuration,
	}
}

// IncCartMutation counts one cart operation such as "add" or "reconcile".
func (m *StorefrontMetrics) IncCartMutation(op string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncCheckoutOutcome counts a checkout result.
func (m *StorefrontMetrics) IncCheckoutOutcome(outcome string) {
	if m == nil || m.checkoutOutcomes == nil {
		return
	}
	m.checkoutOutcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncGeocodeLookup counts an address resolution attempt.
func (m *StorefrontMetrics) IncGeocodeLookup(source, result string) {
	if m == nil || m.geocodeLookups == nil {
		return
	}
	m.geocodeLookups.WithLabelValues(normalizeLabel(source), normalizeLabel(result)).Inc()
}

// ObserveUpstream records how long an upstream call took.
func (m *StorefrontMetrics) ObserveUpstream(service, op string, d time.Duration) {
	if m == nil || m.upstreamDuration == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(normalizeLabel(service), normalizeLabel(op)).Observe(d.Seconds())
}
