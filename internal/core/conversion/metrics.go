package conversion

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolution tiers, used as the "tier" label.
const (
	TierIdentity   = "identity"
	TierConversion = "conversion_cache"
	TierEmbedded   = "embedded"
	TierRateCache  = "rate_cache"
	TierFallback   = "fallback"
)

// Fetch outcomes, used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeDiscarded = "discarded"
)

// Metrics is shared by every resolver in the process. A nil *Metrics records nothing.
type Metrics struct {
	ResolutionsTotal *prometheus.CounterVec
	FetchesTotal     *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	FetchesInFlight  prometheus.Gauge
}

// NewMetrics registers the conversion metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_conversion_resolutions_total",
				Help: "Row conversions served, by the tier that answered",
			},
			[]string{"tier"},
		),
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_conversion_rate_fetches_total",
				Help: "Background rate lookups, by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_conversion_rate_fetch_duration_seconds",
				Help:    "Latency of background rate lookups",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		FetchesInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ledger_conversion_rate_fetches_in_flight",
				Help: "Background rate lookups currently running",
			},
		),
	}
}

func (m *Metrics) recordResolution(tier string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(tier).Inc()
}

func (m *Metrics) fetchStarted() {
	if m == nil {
		return
	}
	m.FetchesInFlight.Inc()
}

func (m *Metrics) fetchFinished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.FetchesInFlight.Dec()
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.Observe(took.Seconds())
}
