package configuration

import (
	"time"

	"github.com/armadaproject/ingestq/internal/common/config"
)

const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

type Configuration struct {
	// Port on which POST /ingest and GET /status/{id} are served
	HttpPort uint16 `validate:"required"`
	// Port on which /health and /metrics are served
	MetricsPort uint16 `validate:"required"`
	Dispatcher  DispatcherConfig
	Queue       QueueConfig
}

type DispatcherConfig struct {
	// At most one sub-batch is started per interval. Defaults to 5s when unset.
	AdmissionInterval time.Duration `validate:"gte=0"`
	// Maximum number of ids in a sub-batch. Defaults to 3 when unset.
	MaxSubBatchSize int `validate:"gte=0"`
	// Bounds of the simulated time taken to process a single id
	MinProcessingTime time.Duration
	MaxProcessingTime time.Duration `validate:"gtefield=MinProcessingTime"`
	// Probability that processing a single id fails. Zero disables failure injection.
	FailureProbability float64 `validate:"gte=0,lte=1"`
	// How long to wait for executing sub-batches on shutdown
	ShutdownTimeout time.Duration `validate:"required"`
}

type QueueConfig struct {
	// Either memory or redis
	Backend string `validate:"required,oneof=memory redis"`
	// Only used by the redis backend
	Redis *config.RedisConfig `validate:"required_if=Backend redis"`
}

func (c Configuration) Validate() error {
	return config.Validate(c)
}
