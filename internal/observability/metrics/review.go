package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ReviewMetrics counts review lifecycle actions.
type ReviewMetrics struct {
	actionsTotal *prometheus.CounterVec
}

// NewReviewMetrics creates and registers review metrics.
func NewReviewMetrics(registry *prometheus.Registry) (*ReviewMetrics, error) {
	m := &ReviewMetrics{
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campusfit_review_actions_total",
				Help: "Total number of review actions by outcome",
			},
			[]string{"action", "outcome"},
		),
	}
	if err := registry.Register(m.actionsTotal); err != nil {
		return nil, fmt.Errorf("failed to register review metrics: %w", err)
	}
	return m, nil
}

// ObserveReview records one review action.
func (m *ReviewMetrics) ObserveReview(action, outcome string) {
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
}
