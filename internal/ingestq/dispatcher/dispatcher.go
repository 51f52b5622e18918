package dispatcher

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
	"github.com/armadaproject/ingestq/internal/common/logctx"
	"github.com/armadaproject/ingestq/internal/common/logging"
	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
	"github.com/armadaproject/ingestq/internal/ingestq/metrics"
	"github.com/armadaproject/ingestq/internal/ingestq/store"
)

// DefaultAdmissionInterval is used when New is given a non-positive interval.
const DefaultAdmissionInterval = 5 * time.Second

// Dispatcher admits queued sub-batches for execution, at most one per admissionInterval, highest priority first
// and in enqueue order among equal priorities. Admitted units execute concurrently with each other and with
// further admissions; the interval bounds how often units start, not how long they run.
type Dispatcher struct {
	queue             UnitQueue
	store             store.IngestionStore
	processor         Processor
	clock             clock.WithTicker
	admissionInterval time.Duration
	metrics           *metrics.DispatcherMetrics
	inFlight          sync.WaitGroup
}

func New(
	queue UnitQueue,
	store store.IngestionStore,
	processor Processor,
	clock clock.WithTicker,
	admissionInterval time.Duration,
	metrics *metrics.DispatcherMetrics,
) *Dispatcher {
	if admissionInterval <= 0 {
		admissionInterval = DefaultAdmissionInterval
	}
	return &Dispatcher{
		queue:             queue,
		store:             store,
		processor:         processor,
		clock:             clock,
		admissionInterval: admissionInterval,
		metrics:           metrics,
	}
}

// Enqueue adds units to the queue without waiting for them to be admitted.
func (d *Dispatcher) Enqueue(ctx *logctx.Context, units []*ScheduledUnit) error {
	now := d.clock.Now()
	for _, unit := range units {
		if !unit.Priority.IsValid() {
			return &ingesterrors.ErrInvalidArgument{Name: "priority", Value: uint32(unit.Priority)}
		}
		if unit.EnqueuedAt.IsZero() {
			unit.EnqueuedAt = now
		}
	}
	if err := d.queue.EnqueueMany(ctx, units); err != nil {
		return err
	}
	for _, unit := range units {
		d.metrics.ReportEnqueued(unit.Priority, 1)
		ctx.Log.WithFields(unitFields(unit)).Debugf("Unit %s", UnitQueued)
	}
	return nil
}

// Run admits units until ctx is cancelled. Units that are executing when Run returns keep running;
// use WaitForInFlight to wait for them.
func (d *Dispatcher) Run(ctx *logctx.Context) error {
	ctx.Log.Infof("Dispatcher admitting one unit every %s", d.admissionInterval)
	ticker := d.clock.NewTicker(d.admissionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			ctx.Log.Info("Dispatcher stopped admitting units")
			return nil
		case <-ticker.C():
			d.admitNext(ctx)
		}
	}
}

// WaitForInFlight blocks until every admitted unit has finished or timeout elapses, and returns true in the
// former case. It must not be called concurrently with Run.
func (d *Dispatcher) WaitForInFlight(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-d.clock.After(timeout):
		return false
	}
}

func (d *Dispatcher) admitNext(ctx *logctx.Context) {
	unit, err := d.queue.Pop(ctx)
	if err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("Could not pop from queue; skipping this admission")
		return
	}
	if unit == nil {
		return
	}
	d.metrics.ReportAdmitted(unit.Priority)

	// Execution is not tied to the lifetime of the admission loop.
	unitCtx := logctx.WithLogFields(logctx.Detach(ctx), unitFields(unit))
	unitCtx.Log.Infof("Unit %s after %s in queue", UnitAdmitted, d.clock.Since(unit.EnqueuedAt))

	d.inFlight.Add(1)
	go func() {
		defer d.inFlight.Done()
		d.execute(unitCtx, unit)
	}()
}

func (d *Dispatcher) execute(ctx *logctx.Context, unit *ScheduledUnit) {
	start := d.clock.Now()
	aggregate, err := d.executeUnit(ctx, unit)
	duration := d.clock.Since(start)
	d.metrics.ReportFinished(unit.Priority, err == nil, duration)

	if err == nil {
		ctx.Log.Infof("Unit %s in %s; ingestion is %s", UnitCompleted, duration, aggregate)
		return
	}
	if ingesterrors.IsNotFound(err) {
		ctx.Log.WithError(err).Warnf("Unit %s: its ingestion is unknown to this process", UnitFailed)
		return
	}
	var invalidTransition *ingesterrors.ErrInvalidTransition
	if errors.As(err, &invalidTransition) {
		logging.WithStacktrace(ctx.Log, err).Errorf("Unit %s: sub-batch state machine violated", UnitFailed)
		return
	}
	logging.WithStacktrace(ctx.Log, err).Errorf("Unit %s after %s; sub-batch will not be retried", UnitFailed, duration)
}

func (d *Dispatcher) executeUnit(ctx *logctx.Context, unit *ScheduledUnit) (ingestion.BatchStatus, error) {
	snapshot, err := d.store.Get(unit.IngestionId)
	if err != nil {
		return "", err
	}
	_, batch := snapshot.SubBatchById(unit.SubBatchId)
	if batch == nil {
		return "", &ingesterrors.ErrNotFound{Type: "subBatch", Value: unit.SubBatchId}
	}

	if _, err := d.store.Transition(unit.IngestionId, unit.SubBatchId, ingestion.StatusInProgress); err != nil {
		return "", err
	}
	ctx.Log.Debugf("Unit %s %d ids", UnitExecuting, len(batch.Ids))

	g, groupCtx := logctx.ErrGroup(ctx)
	for _, id := range batch.Ids {
		id := id
		g.Go(func() error {
			return d.processor.Process(groupCtx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return "", errors.WithStack(&ingesterrors.ErrExecutionFailure{
			IngestionId: unit.IngestionId,
			SubBatchId:  unit.SubBatchId,
			Cause:       err,
		})
	}

	return d.store.Transition(unit.IngestionId, unit.SubBatchId, ingestion.StatusCompleted)
}

func unitFields(unit *ScheduledUnit) logrus.Fields {
	return logrus.Fields{
		"ingestionId": unit.IngestionId,
		"subBatchId":  unit.SubBatchId,
		"priority":    unit.Priority.String(),
		"sequence":    unit.Sequence,
	}
}
