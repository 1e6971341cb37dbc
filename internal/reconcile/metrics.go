package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records reconciliation telemetry. A nil *Metrics records nothing.
type Metrics struct {
	cycles     *prometheus.CounterVec
	operations *prometheus.CounterVec
	violations *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics registers the reconciler metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "servicegraph_reconcile_cycles_total",
			Help: "Reconciliation cycles by result",
		}, []string{"result"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "servicegraph_reconcile_operations_total",
			Help: "Renderer operations issued by the reconciler",
		}, []string{"op"}),
		violations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "servicegraph_reconcile_invariant_violations_total",
			Help: "Aborted cycles by violated invariant",
		}, []string{"invariant"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "servicegraph_reconcile_duration_seconds",
			Help:    "Reconciliation cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
}

func (m *Metrics) cycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) ops(o Operations) {
	if m == nil {
		return
	}
	for op, n := range o.byName() {
		if n > 0 {
			m.operations.WithLabelValues(op).Add(float64(n))
		}
	}
}

func (m *Metrics) violation(invariant string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(invariant).Inc()
}
