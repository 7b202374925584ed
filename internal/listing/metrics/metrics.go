package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Reevaluations      prometheus.Counter
	QualificationFlips prometheus.Counter
	StatusChanges      *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Reevaluations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealdesk_listing_reevaluations_total",
			Help: "Listing qualification recomputations",
		}),
		QualificationFlips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealdesk_listing_qualification_flips_total",
			Help: "Recomputations that changed is_qualified",
		}),
		StatusChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dealdesk_listing_status_changes_total",
			Help: "Lifecycle status changes, labeled by target status",
		}, []string{"to_status"}),
	}
}

func (m *Metrics) IncrementReevaluation()       { m.Reevaluations.Inc() }
func (m *Metrics) IncrementFlip()               { m.QualificationFlips.Inc() }
func (m *Metrics) IncrementStatus(to string)    { m.StatusChanges.WithLabelValues(to).Inc() }
