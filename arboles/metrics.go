package arboles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeNotFound = "not_found"
	outcomeFailed   = "failed"
)

// Metrics counts inventory mutations by operation and outcome and times the
// store calls behind them.
type Metrics struct {
	mutations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catastro",
			Name:      "tree_mutations_total",
			Help:      "Tree create, update and delete requests by outcome.",
		}, []string{"op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "catastro",
			Name:      "tree_mutation_duration_seconds",
			Help:      "Time spent in the record store per mutation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

// observe is a no-op on a nil receiver so handlers work without metrics.
func (m *Metrics) observe(op, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, outcome).Inc()
}

// time starts a store call timer; call the result when the call returns.
func (m *Metrics) time(op string) func() {
	if m == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(m.duration.WithLabelValues(op))
	return func() { timer.ObserveDuration() }
}
