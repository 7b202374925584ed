package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TransitionsApplied   *prometheus.CounterVec
	TransitionsRejected  prometheus.Counter
	DuplicateSubmissions prometheus.Counter
	VersionConflicts     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dealdesk_pipeline_transitions_applied_total",
			Help: "Stage transitions committed, labeled by target stage",
		}, []string{"to_stage"}),
		TransitionsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealdesk_pipeline_transitions_rejected_total",
			Help: "Transition requests refused by the stage machine",
		}),
		DuplicateSubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealdesk_pipeline_duplicate_submissions_total",
			Help: "Retried calls detected and absorbed without a duplicate audit entry",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealdesk_pipeline_version_conflicts_total",
			Help: "Optimistic lock conflicts observed during transitions",
		}),
	}
}

func (m *Metrics) IncrementApplied(toStage string) {
	m.TransitionsApplied.WithLabelValues(toStage).Inc()
}

func (m *Metrics) IncrementRejected()  { m.TransitionsRejected.Inc() }
func (m *Metrics) IncrementDuplicate() { m.DuplicateSubmissions.Inc() }
func (m *Metrics) IncrementConflict()  { m.VersionConflicts.Inc() }
