// Package metrics holds the Prometheus collectors shared by the pipeline stages.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is private to the process so tests and repeated runs never collide
// with the global default registerer.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	DiffRecords = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "reqevo_diff_records_total",
		Help: "Change records produced by the differ",
	}, []string{"strategy"})

	Classifications = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "reqevo_classifications_total",
		Help: "Classification attempts by resulting status",
	}, []string{"status"})

	ClassifyDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "reqevo_classify_duration_seconds",
		Help:    "Wall time of a single change classification",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	GateDecisions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "reqevo_gate_decisions_total",
		Help: "Reviewer decisions received by the feedback gate",
	}, []string{"action"})

	StageTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "reqevo_stage_transitions_total",
		Help: "Workflow stages entered",
	}, []string{"stage"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
