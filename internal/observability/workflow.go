package observability

import "github.com/prometheus/client_golang/prometheus"

// Workflow counts proposal lifecycle events. A nil *Workflow is a no-op.
type Workflow struct {
	created  prometheus.Counter
	resolved *prometheus.CounterVec
	stale    prometheus.Counter
}

// NewWorkflow registers the workflow counters with registerer.
func NewWorkflow(registerer prometheus.Registerer) *Workflow {
	w := &Workflow{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billtrack_proposals_created_total",
			Help: "Stage-change proposals filed.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "billtrack_proposals_resolved_total",
			Help: "Proposals resolved by outcome.",
		}, []string{"outcome"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "billtrack_proposals_stale_total",
			Help: "Approvals refused because the bill moved after the proposal was filed.",
		}),
	}
	registerer.MustRegister(w.created, w.resolved, w.stale)
	return w
}

// ProposalCreated counts a new pending proposal.
func (w *Workflow) ProposalCreated() {
	if w == nil {
		return
	}
	w.created.Inc()
}

// ProposalResolved counts a committed resolution.
func (w *Workflow) ProposalResolved(outcome string) {
	if w == nil {
		return
	}
	w.resolved.WithLabelValues(outcome).Inc()
}

// ProposalStale counts a stale approval attempt.
func (w *Workflow) ProposalStale() {
	if w == nil {
		return
	}
	w.stale.Inc()
}
