package proposal

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeApplied    = "applied"
	outcomeRejected   = "rejected"
	outcomeInvalid    = "invalid"
	outcomeOverridden = "overridden"
)

// Metrics counts what happened to proposals at save time.
type Metrics struct {
	proposals *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proposepress",
			Name:      "proposals_total",
			Help:      "Proposed publish dates seen at save time, by outcome.",
		}, []string{"outcome"}),
	}
	for _, o := range []string{outcomeApplied, outcomeRejected, outcomeInvalid, outcomeOverridden} {
		m.proposals.WithLabelValues(o)
	}
	if reg != nil {
		reg.MustRegister(m.proposals)
	}
	return m
}

// Collector exposes the counters, mainly for tests.
func (m *Metrics) Collector() *prometheus.CounterVec {
	return m.proposals
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(outcome).Inc()
}
