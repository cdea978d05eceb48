package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for email link bookkeeping.
type Metrics struct {
	Resolutions   *prometheus.CounterVec
	LinkMutations *prometheus.CounterVec
	Repairs       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peoplehub_identity_resolutions_total",
			Help: "Identity to profile resolutions by path (linked, fallback)",
		}, []string{"path"}),
		LinkMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peoplehub_email_link_mutations_total",
			Help: "Email link mutations by operation and result",
		}, []string{"operation", "result"}),
		Repairs: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_email_link_repairs_total",
			Help: "Profiles whose primary email bookkeeping was corrected",
		}),
	}
}

func (m *Metrics) IncResolution(path string) {
	if m != nil {
		m.Resolutions.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) IncMutation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LinkMutations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) AddRepairs(n int) {
	if m != nil && n > 0 {
		m.Repairs.Add(float64(n))
	}
}
