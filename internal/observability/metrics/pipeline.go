package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

type PipelineMetrics struct {
	service string

	stepTotal     *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	jobTotal      *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	graphWrites   *prometheus.CounterVec
	graphEntities *prometheus.CounterVec
}

// NewPipelineMetrics registers pipeline collectors on reg, usually the
// registry served by the HTTP metrics handler.
func NewPipelineMetrics(service string, reg prometheus.Registerer) *PipelineMetrics {
	stepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kg",
			Subsystem: "pipeline",
			Name:      "step_transitions_total",
			Help:      "Terminal step transitions by job kind, step and status.",
		},
		[]string{"service", "kind", "step", "status"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kg",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Step duration in seconds from in_progress to terminal status.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "kind", "step"},
	)
	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kg",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Finished ingestion jobs by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kg",
			Subsystem: "pipeline",
			Name:      "job_duration_seconds",
			Help:      "Ingestion job duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "kind"},
	)
	graphWrites := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kg",
			Subsystem: "graph",
			Name:      "statements_total",
			Help:      "Graph statements committed.",
		},
		[]string{"service", "kind"},
	)
	graphEntities := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kg",
			Subsystem: "graph",
			Name:      "created_total",
			Help:      "Nodes and relationships created by graph writes.",
		},
		[]string{"service", "kind", "object"},
	)

	reg.MustRegister(stepTotal, stepDuration, jobTotal, jobDuration, graphWrites, graphEntities)

	return &PipelineMetrics{
		service:       service,
		stepTotal:     stepTotal,
		stepDuration:  stepDuration,
		jobTotal:      jobTotal,
		jobDuration:   jobDuration,
		graphWrites:   graphWrites,
		graphEntities: graphEntities,
	}
}

func (m *PipelineMetrics) ObserveStep(kind domain.JobKind, step domain.StepName, status domain.StepStatus, duration time.Duration) {
	m.stepTotal.WithLabelValues(m.service, string(kind), string(step), string(status)).Inc()
	if duration > 0 {
		m.stepDuration.WithLabelValues(m.service, string(kind), string(step)).Observe(duration.Seconds())
	}
}

func (m *PipelineMetrics) ObserveGraphWrite(kind domain.JobKind, statements int, total domain.QueryExecutionResult) {
	m.graphWrites.WithLabelValues(m.service, string(kind)).Add(float64(statements))
	m.graphEntities.WithLabelValues(m.service, string(kind), "node").Add(float64(total.NodesCreated))
	m.graphEntities.WithLabelValues(m.service, string(kind), "relationship").Add(float64(total.RelationshipsCreated))
}

func (m *PipelineMetrics) ObserveJob(kind domain.JobKind, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.jobTotal.WithLabelValues(m.service, string(kind), status).Inc()
	m.jobDuration.WithLabelValues(m.service, string(kind)).Observe(duration.Seconds())
}
