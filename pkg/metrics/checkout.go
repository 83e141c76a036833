package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records intent synchronization and confirmation activity.
type CheckoutMetrics struct {
	syncDuration *prometheus.HistogramVec
	syncs        *prometheus.CounterVec
	fallbacks    prometheus.Counter
	confirms     *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intent_sync_duration_seconds",
		Help:    "Duration of payment intent synchronizations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	syncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intent_syncs_total",
		Help: "Payment intent synchronizations by outcome.",
	}, []string{"outcome"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "intent_create_fallbacks_total",
		Help: "Intent updates that fell back to creating a replacement intent.",
	})
	confirms := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_confirms_total",
		Help: "Checkout confirmation attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(syncDuration, syncs, fallbacks, confirms)
	return &CheckoutMetrics{
		syncDuration: syncDuration,
		syncs:        syncs,
		fallbacks:    fallbacks,
		confirms:     confirms,
	}
}

// ObserveSync records one synchronization attempt and its duration.
func (c *CheckoutMetrics) ObserveSync(outcome string, duration time.Duration) {
	if c == nil || c.syncs == nil {
		return
	}
	label := normalizeLabel(outcome)
	c.syncs.WithLabelValues(label).Inc()
	c.syncDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncFallback increments the update-to-create fallback counter.
func (c *CheckoutMetrics) IncFallback() {
	if c == nil || c.fallbacks == nil {
		return
	}
	c.fallbacks.Inc()
}

// IncConfirm increments the confirmation counter for the given outcome.
func (c *CheckoutMetrics) IncConfirm(outcome string) {
	if c == nil || c.confirms == nil {
		return
	}
	c.confirms.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
