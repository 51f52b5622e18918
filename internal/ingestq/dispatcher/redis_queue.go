package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const (
	keyPrefix = "ingestq:"

	// Must exceed any sequence number so that priority always dominates the score.
	priorityScoreFactor = 1e13

	defaultPopAttempts = 25
	popRetryDelay      = time.Millisecond
)

// RedisUnitQueue is a UnitQueue stored in a Redis sorted set, so that queued units can be inspected
// with standard tooling. Units only make sense to the process holding their ingestions, so every queue
// keeps its keys under its own namespace: a restarted process, or another process on the same Redis,
// never pops units it has no record of.
type RedisUnitQueue struct {
	db          redis.UniversalClient
	unitsKey    string
	sequenceKey string
	popAttempts uint
}

func NewRedisUnitQueue(db redis.UniversalClient, namespace string) *RedisUnitQueue {
	return &RedisUnitQueue{
		db:          db,
		unitsKey:    keyPrefix + namespace + ":units",
		sequenceKey: keyPrefix + namespace + ":sequence",
		popAttempts: defaultPopAttempts,
	}
}

func (q *RedisUnitQueue) EnqueueMany(_ context.Context, units []*ScheduledUnit) error {
	if len(units) == 0 {
		return nil
	}
	last, err := q.db.IncrBy(q.sequenceKey, int64(len(units))).Result()
	if err != nil {
		return errors.WithStack(err)
	}
	first := uint64(last) - uint64(len(units)) + 1

	members := make([]redis.Z, len(units))
	sequences := make([]uint64, len(units))
	for i, unit := range units {
		stored := unit.DeepCopy()
		stored.Sequence = first + uint64(i)
		data, err := json.Marshal(stored)
		if err != nil {
			return errors.WithStack(err)
		}
		members[i] = redis.Z{Score: unitScore(stored), Member: string(data)}
		sequences[i] = stored.Sequence
	}

	// A single ZADD is atomic, so either every unit is queued or none is.
	if err := q.db.ZAdd(q.unitsKey, members...).Err(); err != nil {
		return errors.WithStack(err)
	}
	for i, unit := range units {
		unit.Sequence = sequences[i]
	}
	return nil
}

func (q *RedisUnitQueue) Pop(ctx context.Context) (*ScheduledUnit, error) {
	var popped *ScheduledUnit
	err := retry.Do(func() error {
		popped = nil
		return q.db.Watch(func(tx *redis.Tx) error {
			head, err := tx.ZRangeWithScores(q.unitsKey, 0, 0).Result()
			if err != nil {
				return err
			}
			if len(head) == 0 {
				return nil
			}
			member, ok := head[0].Member.(string)
			if !ok {
				return errors.Errorf("unexpected member type %T in %s", head[0].Member, q.unitsKey)
			}
			// Fails with TxFailedErr if another client changed the set since WATCH.
			var removed *redis.IntCmd
			_, err = tx.Pipelined(func(pipe redis.Pipeliner) error {
				removed = pipe.ZRem(q.unitsKey, member)
				return nil
			})
			if err != nil {
				return err
			}
			// Someone else popped this unit first.
			if removed.Val() != 1 {
				return redis.TxFailedErr
			}
			unit := &ScheduledUnit{}
			if err := json.Unmarshal([]byte(member), unit); err != nil {
				return errors.WithMessagef(err, "could not decode unit %s", member)
			}
			popped = unit
			return nil
		}, q.unitsKey)
	},
		retry.Context(ctx),
		retry.Attempts(q.popAttempts),
		retry.RetryIf(isTxFailed),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(popRetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return popped, nil
}

func (q *RedisUnitQueue) Len(_ context.Context) (int, error) {
	n, err := q.db.ZCard(q.unitsKey).Result()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(n), nil
}

// Clear deletes every queued unit and the sequence counter of this queue.
func (q *RedisUnitQueue) Clear() error {
	return errors.WithStack(q.db.Del(q.unitsKey, q.sequenceKey).Err())
}

// Ping reports whether Redis is reachable. Used as a health check.
func (q *RedisUnitQueue) Ping() error {
	return errors.WithStack(q.db.Ping().Err())
}

func isTxFailed(err error) bool {
	return err == redis.TxFailedErr
}

func unitScore(unit *ScheduledUnit) float64 {
	return float64(unit.Priority)*priorityScoreFactor + float64(unit.Sequence)
}
