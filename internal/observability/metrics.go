// Package observability provides Prometheus metrics for report runs.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace is used when NewMetrics receives an empty namespace.
const DefaultNamespace = "biobank_report"

// Metrics holds all Prometheus metrics for one process.
// Each instance owns its registry so tests and repeated runs do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	// Input metrics
	RowsLoaded prometheus.Counter

	// Aggregation metrics
	StrataComputed   prometheus.Counter
	StrataSuppressed prometheus.Counter
	EmptyStrata      prometheus.Counter

	// Output metrics
	ArtifactsWritten *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered
// on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		RowsLoaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "input",
			Name:      "rows_loaded_total",
			Help:      "Total number of measurement rows loaded",
		}),

		StrataComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "strata_computed_total",
			Help:      "Total number of summary rows computed",
		}),
		StrataSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "strata_suppressed_total",
			Help:      "Total number of summary rows replaced by the suppression sentinel",
		}),
		EmptyStrata: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "empty_strata_total",
			Help:      "Total number of strata without any non-missing value",
		}),

		ArtifactsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "artifacts_written_total",
			Help:      "Total number of artifacts written by kind",
		}, []string{"kind"}),

		PipelineRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"stage"}),

		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// RecordRowsLoaded adds n to the loaded rows counter.
func (m *Metrics) RecordRowsLoaded(n int) {
	m.RowsLoaded.Add(float64(n))
}

// RecordStrata records the outcome of one aggregation pass.
func (m *Metrics) RecordStrata(computed, suppressed, empty int) {
	m.StrataComputed.Add(float64(computed))
	m.StrataSuppressed.Add(float64(suppressed))
	m.EmptyStrata.Add(float64(empty))
}

// RecordArtifact increments the artifacts counter for kind.
func (m *Metrics) RecordArtifact(kind string) {
	m.ArtifactsWritten.WithLabelValues(kind).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordPipelineRun records a finished run. finishedAt is only used on success.
func (m *Metrics) RecordPipelineRun(status string, finishedAt time.Time) {
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	if status == StatusSuccess {
		m.LastSuccessfulRun.Set(float64(finishedAt.Unix()))
	}
}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
