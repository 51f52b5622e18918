package ingestq

import (
	"net/http"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/ingestq/internal/common"
	"github.com/armadaproject/ingestq/internal/common/app"
	"github.com/armadaproject/ingestq/internal/common/health"
	"github.com/armadaproject/ingestq/internal/common/logctx"
	"github.com/armadaproject/ingestq/internal/common/util"
	"github.com/armadaproject/ingestq/internal/ingestq/configuration"
	"github.com/armadaproject/ingestq/internal/ingestq/dispatcher"
	"github.com/armadaproject/ingestq/internal/ingestq/metrics"
	"github.com/armadaproject/ingestq/internal/ingestq/server"
	"github.com/armadaproject/ingestq/internal/ingestq/service"
	"github.com/armadaproject/ingestq/internal/ingestq/store"
)

// Run sets up and runs the ingestion service until SIGINT or SIGTERM is received.
func Run(config configuration.Configuration) error {
	ctx, cancel := app.CreateContextWithShutdown()
	defer cancel()

	// Health checks and metrics share a port
	startupCompleteCheck := health.NewStartupCompleteChecker()
	healthChecks := health.NewMultiChecker(startupCompleteCheck)
	mux := http.NewServeMux()
	health.SetupHttpMux(mux, healthChecks)
	shutdownMetricsServer := common.ServeMetricsFor(config.MetricsPort, mux)
	defer shutdownMetricsServer()

	realClock := clock.RealClock{}
	ingestionDb, err := store.NewIngestionDb(realClock)
	if err != nil {
		return err
	}
	queue, closeQueue, err := createQueue(config.Queue, healthChecks)
	if err != nil {
		return err
	}
	defer closeQueue()
	prometheus.MustRegister(metrics.NewStateCollector(queue, ingestionDb))

	processor := dispatcher.NewSimulatedProcessor(
		realClock,
		config.Dispatcher.MinProcessingTime,
		config.Dispatcher.MaxProcessingTime,
		config.Dispatcher.FailureProbability,
		time.Now().UnixNano(),
	)
	unitDispatcher := dispatcher.New(
		queue,
		ingestionDb,
		processor,
		realClock,
		config.Dispatcher.AdmissionInterval,
		metrics.NewDispatcherMetrics(prometheus.DefaultRegisterer),
	)
	ingestionService := service.NewIngestionService(config.Dispatcher.MaxSubBatchSize, ingestionDb, unitDispatcher)

	shutdownHttpServer := common.ServeHttp(config.HttpPort, server.NewServer(ingestionService).Handler())

	g, groupCtx := logctx.ErrGroup(ctx)
	g.Go(func() error {
		return unitDispatcher.Run(groupCtx)
	})
	startupCompleteCheck.MarkComplete()

	err = g.Wait()
	drain(shutdownHttpServer, unitDispatcher, config.Dispatcher.ShutdownTimeout)
	return err
}

type inFlightWaiter interface {
	WaitForInFlight(timeout time.Duration) bool
}

// drain stops accepting submissions, which could no longer be admitted, then waits for executing sub-batches.
func drain(stopAccepting func(), executing inFlightWaiter, timeout time.Duration) {
	stopAccepting()
	log.Infof("Waiting up to %s for executing sub-batches", timeout)
	if !executing.WaitForInFlight(timeout) {
		log.Warn("Sub-batches were still executing at shutdown; they will remain in_progress")
	}
}

func createQueue(
	config configuration.QueueConfig,
	healthChecks *health.MultiChecker,
) (dispatcher.UnitQueue, func(), error) {
	switch config.Backend {
	case configuration.QueueBackendMemory:
		queue, err := dispatcher.NewMemoryUnitQueue()
		return queue, func() {}, err
	case configuration.QueueBackendRedis:
		db := redis.NewUniversalClient(config.Redis.AsUniversalOptions())
		// Ingestions live in memory, so queued units are only meaningful to this process.
		namespace := util.NewULID()
		queue := dispatcher.NewRedisUnitQueue(db, namespace)
		healthChecks.Add(health.CheckerFunc(queue.Ping))
		log.Infof("Using redis queue at %v under namespace %s", config.Redis.Addrs, namespace)
		return queue, func() {
			if err := queue.Clear(); err != nil {
				log.WithError(err).Warnf("Failed to clear redis queue %s", namespace)
			}
			util.CloseResource("redis", db)
		}, nil
	default:
		return nil, nil, errors.Errorf("unknown queue backend %q", config.Backend)
	}
}
