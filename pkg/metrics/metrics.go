// Package metrics exposes Prometheus counters for the CRM core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide counters. Register once and inject
// into services; a nil *Metrics disables instrumentation.
type Metrics struct {
	StageTransitions *prometheus.CounterVec
	SearchQueries    *prometheus.CounterVec
	BoardQueries     prometheus.Counter
	ReportQueries    prometheus.Counter
}

// New registers the CRM counters with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_stage_transitions_total",
			Help: "Deal stage transitions, labelled by target stage and outcome.",
		}, []string{"to_stage", "outcome"}),
		SearchQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_search_queries_total",
			Help: "Search queries, labelled by ranking strategy.",
		}, []string{"strategy"}),
		BoardQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_pipeline_board_queries_total",
			Help: "Pipeline board computations.",
		}),
		ReportQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "crm_pipeline_report_queries_total",
			Help: "Pipeline report computations.",
		}),
	}
}

// ObserveTransition records a stage transition attempt.
// outcome is "moved", "noop" or "error".
func (m *Metrics) ObserveTransition(toStage, outcome string) {
	if m == nil {
		return
	}
	m.StageTransitions.WithLabelValues(toStage, outcome).Inc()
}

// ObserveSearch records a search query by strategy ("token" or "fuzzy").
func (m *Metrics) ObserveSearch(strategy string) {
	if m == nil {
		return
	}
	m.SearchQueries.WithLabelValues(strategy).Inc()
}

// ObserveBoard records a board computation.
func (m *Metrics) ObserveBoard() {
	if m == nil {
		return
	}
	m.BoardQueries.Inc()
}

// ObserveReport records a report computation.
func (m *Metrics) ObserveReport() {
	if m == nil {
		return
	}
	m.ReportQueries.Inc()
}
