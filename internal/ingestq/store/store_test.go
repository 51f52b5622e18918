package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "k8s.io/utils/clock/testing"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
)

var baseTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestDb(t *testing.T) (*IngestionDb, *clock.FakeClock) {
	testClock := clock.NewFakeClock(baseTime)
	db, err := NewIngestionDb(testClock)
	require.NoError(t, err)
	return db, testClock
}

func subBatches(sizes ...int) []*ingestion.SubBatch {
	result := make([]*ingestion.SubBatch, len(sizes))
	next := int64(1)
	for i, size := range sizes {
		ids := make([]int64, size)
		for j := range ids {
			ids[j] = next
			next++
		}
		result[i] = &ingestion.SubBatch{Id: fmt.Sprintf("batch-%d", i), Ids: ids, Status: ingestion.StatusPending}
	}
	return result
}

func TestCreate(t *testing.T) {
	db, _ := newTestDb(t)
	id, err := db.Create(ingestion.PriorityHigh, subBatches(3, 2))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stored, err := db.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, stored.Id)
	assert.Equal(t, ingestion.PriorityHigh, stored.Priority)
	assert.Equal(t, ingestion.StatusPending, stored.Status)
	assert.Equal(t, baseTime, stored.CreatedAt)
	require.Len(t, stored.SubBatches, 2)
	assert.Equal(t, []int64{1, 2, 3}, stored.SubBatches[0].Ids)
	assert.Equal(t, []int64{4, 5}, stored.SubBatches[1].Ids)
	for _, batch := range stored.SubBatches {
		assert.Equal(t, ingestion.StatusPending, batch.Status)
	}
}

func TestCreate_ForcesPending(t *testing.T) {
	db, _ := newTestDb(t)
	batches := subBatches(1)
	batches[0].Status = ingestion.StatusCompleted

	id, err := db.Create(ingestion.PriorityLow, batches)
	require.NoError(t, err)
	stored, err := db.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusPending, stored.SubBatches[0].Status)
	// the caller's slice is untouched
	assert.Equal(t, ingestion.StatusCompleted, batches[0].Status)
}

func TestCreate_UniqueIds(t *testing.T) {
	db, _ := newTestDb(t)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := db.Create(ingestion.PriorityMedium, subBatches(1))
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestCreate_Invalid(t *testing.T) {
	duplicate := subBatches(1, 1)
	duplicate[1].Id = duplicate[0].Id
	empty := subBatches(1)
	empty[0].Ids = nil

	tests := map[string]struct {
		priority   ingestion.Priority
		subBatches []*ingestion.SubBatch
	}{
		"no sub-batches":      {priority: ingestion.PriorityHigh, subBatches: nil},
		"unknown priority":    {priority: ingestion.Priority(7), subBatches: subBatches(1)},
		"duplicate batch ids": {priority: ingestion.PriorityHigh, subBatches: duplicate},
		"empty sub-batch":     {priority: ingestion.PriorityHigh, subBatches: empty},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			db, _ := newTestDb(t)
			_, err := db.Create(tc.priority, tc.subBatches)
			var invalidArg *ingesterrors.ErrInvalidArgument
			assert.True(t, errors.As(err, &invalidArg))
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	db, _ := newTestDb(t)
	_, err := db.Get("missing")
	var notFound *ingesterrors.ErrNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "ingestion", notFound.Type)
	assert.Equal(t, "missing", notFound.Value)
}

func TestGet_ReturnsCopy(t *testing.T) {
	db, _ := newTestDb(t)
	id, err := db.Create(ingestion.PriorityHigh, subBatches(3))
	require.NoError(t, err)

	first, err := db.Get(id)
	require.NoError(t, err)
	first.SubBatches[0].Status = ingestion.StatusCompleted
	first.SubBatches[0].Ids[0] = 1000
	first.Status = ingestion.StatusCompleted

	second, err := db.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusPending, second.Status)
	assert.Equal(t, ingestion.StatusPending, second.SubBatches[0].Status)
	assert.Equal(t, int64(1), second.SubBatches[0].Ids[0])
}

func TestTransition_Aggregate(t *testing.T) {
	db, testClock := newTestDb(t)
	id, err := db.Create(ingestion.PriorityHigh, subBatches(3, 2))
	require.NoError(t, err)

	steps := []struct {
		batch     string
		to        ingestion.BatchStatus
		aggregate ingestion.BatchStatus
	}{
		{batch: "batch-0", to: ingestion.StatusInProgress, aggregate: ingestion.StatusInProgress},
		{batch: "batch-0", to: ingestion.StatusCompleted, aggregate: ingestion.StatusInProgress},
		{batch: "batch-1", to: ingestion.StatusInProgress, aggregate: ingestion.StatusInProgress},
		{batch: "batch-1", to: ingestion.StatusCompleted, aggregate: ingestion.StatusCompleted},
	}
	for _, step := range steps {
		testClock.Step(time.Second)
		aggregate, err := db.Transition(id, step.batch, step.to)
		require.NoError(t, err)
		assert.Equal(t, step.aggregate, aggregate)

		stored, err := db.Get(id)
		require.NoError(t, err)
		assert.Equal(t, step.aggregate, stored.Status)
		assert.Equal(t, ingestion.AggregateStatus(stored.SubBatches), stored.Status)
		assert.Equal(t, testClock.Now(), stored.UpdatedAt)
		assert.Equal(t, baseTime, stored.CreatedAt)
	}
}

func TestTransition_CompletedAndPendingIsInProgress(t *testing.T) {
	db, _ := newTestDb(t)
	id, err := db.Create(ingestion.PriorityHigh, subBatches(3, 2))
	require.NoError(t, err)

	_, err = db.Transition(id, "batch-0", ingestion.StatusInProgress)
	require.NoError(t, err)
	_, err = db.Transition(id, "batch-0", ingestion.StatusCompleted)
	require.NoError(t, err)

	stored, err := db.Get(id)
	require.NoError(t, err)
	assert.Equal(t, ingestion.StatusCompleted, stored.SubBatches[0].Status)
	assert.Equal(t, ingestion.StatusPending, stored.SubBatches[1].Status)
	assert.Equal(t, ingestion.StatusInProgress, stored.Status)
}

func TestTransition_Invalid(t *testing.T) {
	tests := map[string]struct {
		setup []ingestion.BatchStatus
		to    ingestion.BatchStatus
	}{
		"skip in progress":      {to: ingestion.StatusCompleted},
		"pending to pending":    {to: ingestion.StatusPending},
		"backwards":             {setup: []ingestion.BatchStatus{ingestion.StatusInProgress}, to: ingestion.StatusPending},
		"repeat in progress":    {setup: []ingestion.BatchStatus{ingestion.StatusInProgress}, to: ingestion.StatusInProgress},
		"completed to pending":  {setup: []ingestion.BatchStatus{ingestion.StatusInProgress, ingestion.StatusCompleted}, to: ingestion.StatusPending},
		"completed is terminal": {setup: []ingestion.BatchStatus{ingestion.StatusInProgress, ingestion.StatusCompleted}, to: ingestion.StatusCompleted},
		"unknown target status": {to: ingestion.BatchStatus("failed")},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			db, _ := newTestDb(t)
			id, err := db.Create(ingestion.PriorityHigh, subBatches(1))
			require.NoError(t, err)
			for _, s := range tc.setup {
				_, err := db.Transition(id, "batch-0", s)
				require.NoError(t, err)
			}
			before, err := db.Get(id)
			require.NoError(t, err)

			_, err = db.Transition(id, "batch-0", tc.to)
			var invalidTransition *ingesterrors.ErrInvalidTransition
			assert.True(t, errors.As(err, &invalidTransition))

			after, err := db.Get(id)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestTransition_NotFound(t *testing.T) {
	db, _ := newTestDb(t)
	id, err := db.Create(ingestion.PriorityHigh, subBatches(1))
	require.NoError(t, err)

	var notFound *ingesterrors.ErrNotFound
	_, err = db.Transition("missing", "batch-0", ingestion.StatusInProgress)
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "ingestion", notFound.Type)

	_, err = db.Transition(id, "missing", ingestion.StatusInProgress)
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "subBatch", notFound.Type)
}

func TestTransition_ConcurrentSubBatches(t *testing.T) {
	const numBatches = 50
	db, _ := newTestDb(t)
	sizes := make([]int, numBatches)
	for i := range sizes {
		sizes[i] = 1
	}
	id, err := db.Create(ingestion.PriorityHigh, subBatches(sizes...))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < numBatches; i++ {
		wg.Add(1)
		go func(batchId string) {
			defer wg.Done()
			_, err := db.Transition(id, batchId, ingestion.StatusInProgress)
			assert.NoError(t, err)
			_, err = db.Transition(id, batchId, ingestion.StatusCompleted)
			assert.NoError(t, err)
		}(fmt.Sprintf("batch-%d", i))
	}
	wg.Wait()

	stored, err := db.Get(id)
	require.NoError(t, err)
	for _, batch := range stored.SubBatches {
		assert.Equal(t, ingestion.StatusCompleted, batch.Status)
	}
	assert.Equal(t, ingestion.StatusCompleted, stored.Status)
}

func TestTransition_ConcurrentSameSubBatch(t *testing.T) {
	const attempts = 20
	db, _ := newTestDb(t)
	id, err := db.Create(ingestion.PriorityHigh, subBatches(1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.Transition(id, "batch-0", ingestion.StatusInProgress); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestCountByStatus(t *testing.T) {
	db, _ := newTestDb(t)
	_, err := db.Create(ingestion.PriorityHigh, subBatches(1))
	require.NoError(t, err)
	inProgress, err := db.Create(ingestion.PriorityHigh, subBatches(1))
	require.NoError(t, err)
	completed, err := db.Create(ingestion.PriorityHigh, subBatches(1))
	require.NoError(t, err)

	_, err = db.Transition(inProgress, "batch-0", ingestion.StatusInProgress)
	require.NoError(t, err)
	_, err = db.Transition(completed, "batch-0", ingestion.StatusInProgress)
	require.NoError(t, err)
	_, err = db.Transition(completed, "batch-0", ingestion.StatusCompleted)
	require.NoError(t, err)

	counts, err := db.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, map[ingestion.BatchStatus]int{
		ingestion.StatusPending:    1,
		ingestion.StatusInProgress: 1,
		ingestion.StatusCompleted:  1,
	}, counts)
}
