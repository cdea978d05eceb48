package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the Kafka audit sink.
type Metrics struct {
	Published           prometheus.Counter
	PublishFailures     prometheus.Counter
	CircuitDropped      prometheus.Counter
	CircuitBreakerState prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_audit_kafka_published_total",
			Help: "Total number of audit events published to Kafka",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_audit_kafka_publish_failures_total",
			Help: "Total number of audit events Kafka rejected or timed out",
		}),
		CircuitDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_audit_kafka_circuit_dropped_total",
			Help: "Total number of audit events dropped while the circuit was open",
		}),
		CircuitBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "peoplehub_audit_kafka_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) incPublished() {
	if m != nil {
		m.Published.Inc()
	}
}

func (m *Metrics) incFailures() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.CircuitDropped.Inc()
	}
}

func (m *Metrics) setBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}
