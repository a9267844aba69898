// Package metrics exposes Prometheus collectors for migration and
// validation runs. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	registry        *prometheus.Registry
	rowsMigrated    *prometheus.CounterVec
	rowsFailed      *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	tableChecks     *prometheus.CounterVec
	validationScore prometheus.Gauge
	checkpointScore prometheus.Gauge
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rowsMigrated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbshift",
			Name:      "rows_migrated_total",
			Help:      "Rows written to the target database.",
		}, []string{"table"}),
		rowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbshift",
			Name:      "rows_failed_total",
			Help:      "Rows that could not be written to the target database.",
		}, []string{"table"}),
		batchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dbshift",
			Name:      "batch_duration_seconds",
			Help:      "Time spent writing one import batch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
		tableChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbshift",
			Name:      "validation_checks_total",
			Help:      "Validation checks by outcome.",
		}, []string{"check", "outcome"}),
		validationScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbshift",
			Name:      "validation_score",
			Help:      "Score of the last migration validation.",
		}),
		checkpointScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbshift",
			Name:      "checkpoint_score",
			Help:      "Overall score of the last checkpoint.",
		}),
	}
	r.registry.MustRegister(r.rowsMigrated, r.rowsFailed, r.batchDuration, r.tableChecks, r.validationScore, r.checkpointScore)
	return r
}

func (r *Recorder) Batch(table string, migrated, failed int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.rowsMigrated.WithLabelValues(table).Add(float64(migrated))
	r.rowsFailed.WithLabelValues(table).Add(float64(failed))
	r.batchDuration.WithLabelValues(table).Observe(elapsed.Seconds())
}

func (r *Recorder) Check(check string, passed bool) {
	if r == nil {
		return
	}
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	r.tableChecks.WithLabelValues(check, outcome).Inc()
}

func (r *Recorder) ValidationScore(score float64) {
	if r == nil {
		return
	}
	r.validationScore.Set(score)
}

func (r *Recorder) CheckpointScore(score float64) {
	if r == nil {
		return
	}
	r.checkpointScore.Set(score)
}

// Registry exposes the underlying registry, e.g. for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps every collector in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
