package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for reminder workflow activity.
// A nil *Metrics is valid and records nothing.
//
//   - reminderdesk_transitions_total{op}
//   - reminderdesk_alerts_emitted_total
//   - reminderdesk_alert_evaluations_total
//   - reminderdesk_store_errors_total{op}
//   - reminderdesk_notify_failures_total{sink}
type Metrics struct {
	Transitions    *prometheus.CounterVec
	AlertsEmitted  prometheus.Counter
	Evaluations    prometheus.Counter
	StoreErrors    *prometheus.CounterVec
	NotifyFailures *prometheus.CounterVec
}

// New creates the collectors and registers them on reg (skipped when reg is nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminderdesk_transitions_total",
			Help: "Lifecycle operations applied, by operation.",
		}, []string{"op"}),
		AlertsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminderdesk_alerts_emitted_total",
			Help: "Alerts emitted by the evaluator.",
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminderdesk_alert_evaluations_total",
			Help: "Alert evaluation passes.",
		}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminderdesk_store_errors_total",
			Help: "Store failures, by operation.",
		}, []string{"op"}),
		NotifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminderdesk_notify_failures_total",
			Help: "Alert deliveries that failed, by sink.",
		}, []string{"sink"}),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.AlertsEmitted, m.Evaluations, m.StoreErrors, m.NotifyFailures)
	}
	return m
}

func (m *Metrics) Transition(op string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(op).Inc()
}

func (m *Metrics) Evaluated(emitted int) {
	if m == nil {
		return
	}
	m.Evaluations.Inc()
	m.AlertsEmitted.Add(float64(emitted))
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) NotifyFailure(sink string) {
	if m == nil {
		return
	}
	m.NotifyFailures.WithLabelValues(sink).Inc()
}
