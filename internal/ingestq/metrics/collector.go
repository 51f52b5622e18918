package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
)

const collectTimeout = 5 * time.Second

type QueueDepthSource interface {
	Len(ctx context.Context) (int, error)
}

type StatusCountSource interface {
	CountByStatus() (map[ingestion.BatchStatus]int, error)
}

var queueDepthDesc = prometheus.NewDesc(
	MetricPrefix+"queue_depth",
	"Number of sub-batches waiting to be admitted",
	nil,
	nil,
)

var ingestionsDesc = prometheus.NewDesc(
	MetricPrefix+"ingestions",
	"Number of ingestions by aggregate status",
	[]string{"status"},
	nil,
)

// StateCollector reports queue depth and ingestion counts, computed when scraped.
type StateCollector struct {
	queue QueueDepthSource
	store StatusCountSource
}

func NewStateCollector(queue QueueDepthSource, store StatusCountSource) *StateCollector {
	return &StateCollector{
		queue: queue,
		store: store,
	}
}

func (c *StateCollector) Describe(desc chan<- *prometheus.Desc) {
	desc <- queueDepthDesc
	desc <- ingestionsDesc
}

func (c *StateCollector) Collect(metrics chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	depth, err := c.queue.Len(ctx)
	if err != nil {
		log.WithError(err).Warn("Error while getting queue depth metrics")
		metrics <- prometheus.NewInvalidMetric(queueDepthDesc, err)
	} else {
		metrics <- prometheus.MustNewConstMetric(queueDepthDesc, prometheus.GaugeValue, float64(depth))
	}

	counts, err := c.store.CountByStatus()
	if err != nil {
		log.WithError(err).Warn("Error while getting ingestion metrics")
		metrics <- prometheus.NewInvalidMetric(ingestionsDesc, err)
		return
	}
	for _, status := range ingestion.AllStatuses {
		metrics <- prometheus.MustNewConstMetric(ingestionsDesc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}
