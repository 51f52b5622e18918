package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
)

const MetricPrefix = "ingestq_"

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// DispatcherMetrics records the lifecycle of scheduled units.
type DispatcherMetrics struct {
	enqueued         *prometheus.CounterVec
	admitted         *prometheus.CounterVec
	finished         *prometheus.CounterVec
	executionSeconds *prometheus.HistogramVec
}

func NewDispatcherMetrics(registerer prometheus.Registerer) *DispatcherMetrics {
	factory := promauto.With(registerer)
	return &DispatcherMetrics{
		enqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "units_enqueued_total",
				Help: "Number of sub-batches added to the dispatch queue",
			},
			[]string{"priority"},
		),
		admitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "units_admitted_total",
				Help: "Number of sub-batches admitted for execution",
			},
			[]string{"priority"},
		),
		finished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPrefix + "units_finished_total",
				Help: "Number of sub-batches that finished executing, by result",
			},
			[]string{"priority", "result"},
		),
		executionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricPrefix + "unit_execution_seconds",
				Help:    "Time taken to execute a sub-batch",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
			},
			[]string{"result"},
		),
	}
}

func (m *DispatcherMetrics) ReportEnqueued(priority ingestion.Priority, n int) {
	m.enqueued.WithLabelValues(priority.String()).Add(float64(n))
}

func (m *DispatcherMetrics) ReportAdmitted(priority ingestion.Priority) {
	m.admitted.WithLabelValues(priority.String()).Inc()
}

func (m *DispatcherMetrics) ReportFinished(priority ingestion.Priority, succeeded bool, duration time.Duration) {
	result := ResultSucceeded
	if !succeeded {
		result = ResultFailed
	}
	m.finished.WithLabelValues(priority.String(), result).Inc()
	m.executionSeconds.WithLabelValues(result).Observe(duration.Seconds())
}
