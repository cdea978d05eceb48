package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for profile loading and provisioning.
type Metrics struct {
	Loads        *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	Coalesced    prometheus.Counter
	Provisioned  *prometheus.CounterVec
	TouchFailed  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Loads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peoplehub_profile_loads_total",
			Help: "Profile loads by result (ok, not_found, disabled, transient)",
		}, []string{"result"}),
		LoadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "peoplehub_profile_load_duration_seconds",
			Help:    "Duration of profile loads including enrichment",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		Coalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_profile_loads_coalesced_total",
			Help: "Profile loads answered by another in-flight load for the same profile",
		}),
		Provisioned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peoplehub_profiles_provisioned_total",
			Help: "Provisioning attempts by outcome (created, raced)",
		}, []string{"outcome"}),
		TouchFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_profile_last_login_failures_total",
			Help: "Failed last-login stamps",
		}),
	}
}

// ObserveLoad records a finished load. Call with time.Now() at the start.
func (m *Metrics) ObserveLoad(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(result).Inc()
	m.LoadDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncCoalesced() {
	if m != nil {
		m.Coalesced.Inc()
	}
}

func (m *Metrics) IncProvisioned(outcome string) {
	if m != nil {
		m.Provisioned.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncTouchFailed() {
	if m != nil {
		m.TouchFailed.Inc()
	}
}
