package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the session state machine and the keeper.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	Refreshes       *prometheus.CounterVec
	ForcedSignOuts  *prometheus.CounterVec
	LoadRetries     prometheus.Counter
	DroppedSignals  prometheus.Counter
	SignOutTimeouts prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peoplehub_session_transitions_total",
			Help: "Session state transitions by source and target state",
		}, []string{"from", "to"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peoplehub_session_refreshes_total",
			Help: "Session refresh attempts reaching the auth backend by trigger and result",
		}, []string{"trigger", "result"}),
		ForcedSignOuts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peoplehub_session_forced_sign_outs_total",
			Help: "Sign-outs forced by the session core, by error code",
		}, []string{"reason"}),
		LoadRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_session_profile_load_retries_total",
			Help: "Retries of transient profile load failures",
		}),
		DroppedSignals: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_session_keeper_dropped_signals_total",
			Help: "Keeper signals dropped because the signal queue was full",
		}),
		SignOutTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "peoplehub_session_sign_out_timeouts_total",
			Help: "Backend sign-out calls abandoned after the sign-out timeout",
		}),
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncRefresh(trigger string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Refreshes.WithLabelValues(trigger, result).Inc()
}

func (m *Metrics) IncForcedSignOut(reason string) {
	if m != nil {
		m.ForcedSignOuts.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncLoadRetry() {
	if m != nil {
		m.LoadRetries.Inc()
	}
}

func (m *Metrics) IncDroppedSignal() {
	if m != nil {
		m.DroppedSignals.Inc()
	}
}

func (m *Metrics) IncSignOutTimeout() {
	if m != nil {
		m.SignOutTimeouts.Inc()
	}
}
