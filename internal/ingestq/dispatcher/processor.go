package dispatcher

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/ingestq/internal/common/logctx"
	"github.com/armadaproject/ingestq/internal/common/util"
)

// Processor performs the work for a single identifier of a sub-batch.
type Processor interface {
	Process(ctx *logctx.Context, id int64) error
}

type ProcessorFunc func(ctx *logctx.Context, id int64) error

func (f ProcessorFunc) Process(ctx *logctx.Context, id int64) error {
	return f(ctx, id)
}

// SimulatedProcessor stands in for a downstream system: each id takes a random duration in
// [minDuration, maxDuration) and fails with probability failureProbability.
type SimulatedProcessor struct {
	clock              clock.Clock
	rand               *rand.Rand
	minDuration        time.Duration
	maxDuration        time.Duration
	failureProbability float64
}

func NewSimulatedProcessor(
	clock clock.Clock,
	minDuration time.Duration,
	maxDuration time.Duration,
	failureProbability float64,
	seed int64,
) *SimulatedProcessor {
	return &SimulatedProcessor{
		clock:              clock,
		rand:               util.NewThreadsafeRand(seed),
		minDuration:        minDuration,
		maxDuration:        maxDuration,
		failureProbability: failureProbability,
	}
}

func (p *SimulatedProcessor) Process(ctx *logctx.Context, id int64) error {
	duration := util.UniformDuration(p.rand, p.minDuration, p.maxDuration)
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}
	if duration > 0 {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-p.clock.After(duration):
		}
	}
	if p.failureProbability > 0 && p.rand.Float64() < p.failureProbability {
		return errors.Errorf("simulated failure processing id %d", id)
	}
	ctx.Log.Debugf("Processed id %d in %s", id, duration)
	return nil
}
