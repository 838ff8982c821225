package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Operations     *prometheus.CounterVec
	Adjustments    *prometheus.CounterVec
	NotifyFailures prometheus.Counter
	NotifyDropped  prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_operations_total",
			Help:      "Total number of plan engine operations by outcome",
		}, []string{"operation", "result"}),
		Adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_usage_adjustments_total",
			Help:      "Total number of applied quota adjustments",
		}, []string{"resource", "direction"}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_notify_failures_total",
			Help:      "Total number of sync notifications that failed to deliver",
		}),
		NotifyDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_notify_dropped_total",
			Help:      "Total number of sync notifications dropped because the outbox was full",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Adjustments, m.NotifyFailures, m.NotifyDropped)
	}
	return m
}

func (m *Metrics) operation(op string, kind Kind) {
	if m == nil {
		return
	}
	result := string(kind)
	if kind == KindNone {
		result = "ok"
	}
	m.Operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) adjustment(res Resource, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	direction := "consume"
	if delta < 0 {
		direction = "release"
	}
	m.Adjustments.WithLabelValues(string(res), direction).Inc()
}

func (m *Metrics) notifyFailed() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}

func (m *Metrics) notifyDropped() {
	if m == nil {
		return
	}
	m.NotifyDropped.Inc()
}
