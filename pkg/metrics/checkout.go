package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout failure reasons.
const (
	ReasonUnauthorized = "unauthorized"
	ReasonEmptyCart    = "empty_cart"
	ReasonUnresolved   = "unresolved_items"
	ReasonPersistence  = "persistence"
)

// CheckoutMetrics tracks order placement.
type CheckoutMetrics struct {
	placed   prometheus.Counter
	failures *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	placed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Orders committed by checkout.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_checkout_failures_total",
		Help: "Checkout submissions rejected or failed, by reason.",
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_checkout_duration_seconds",
		Help:    "Latency of checkout submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(placed, failures, duration)
	return &CheckoutMetrics{placed: placed, failures: failures, duration: duration}
}

// IncPlaced counts a committed order.
func (c *CheckoutMetrics) IncPlaced() {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.Inc()
}

// IncFailure counts a failed submission.
func (c *CheckoutMetrics) IncFailure(reason string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveDuration records how long a submission took.
func (c *CheckoutMetrics) ObserveDuration(d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.Observe(d.Seconds())
}
