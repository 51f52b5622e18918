package ingestion

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
)

func TestParsePriority(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected Priority
		valid    bool
	}{
		"high":         {input: "HIGH", expected: PriorityHigh, valid: true},
		"medium":       {input: "MEDIUM", expected: PriorityMedium, valid: true},
		"low":          {input: "LOW", expected: PriorityLow, valid: true},
		"lower case":   {input: "low", expected: PriorityLow, valid: true},
		"mixed case":   {input: " High ", expected: PriorityHigh, valid: true},
		"unknown":      {input: "URGENT", valid: false},
		"empty string": {input: "", valid: false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePriority(tc.input)
			if !tc.valid {
				var invalidArg *ingesterrors.ErrInvalidArgument
				assert.True(t, errors.As(err, &invalidArg))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, p)
		})
	}
}

func TestPriority_OrderIsSchedulingOrder(t *testing.T) {
	assert.Less(t, uint32(PriorityHigh), uint32(PriorityMedium))
	assert.Less(t, uint32(PriorityMedium), uint32(PriorityLow))
}

func TestPriority_Json(t *testing.T) {
	type wrapper struct {
		Priority Priority `json:"priority"`
	}
	b, err := json.Marshal(wrapper{Priority: PriorityMedium})
	require.NoError(t, err)
	assert.JSONEq(t, `{"priority":"MEDIUM"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"priority":"low"}`), &w))
	assert.Equal(t, PriorityLow, w.Priority)

	assert.Error(t, json.Unmarshal([]byte(`{"priority":"nope"}`), &w))
}

func TestBatchStatus_CanTransitionTo(t *testing.T) {
	allowed := map[BatchStatus]BatchStatus{
		StatusPending:    StatusInProgress,
		StatusInProgress: StatusCompleted,
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			assert.Equal(t, allowed[from] == to, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, BatchStatus("bogus").CanTransitionTo(StatusPending))
	assert.False(t, StatusPending.CanTransitionTo("bogus"))
}

func batches(statuses ...BatchStatus) []*SubBatch {
	result := make([]*SubBatch, len(statuses))
	for i, s := range statuses {
		result[i] = &SubBatch{Status: s}
	}
	return result
}

func TestAggregateStatus(t *testing.T) {
	tests := map[string]struct {
		batches  []*SubBatch
		expected BatchStatus
	}{
		"all pending":                  {batches: batches(StatusPending, StatusPending), expected: StatusPending},
		"one in progress":              {batches: batches(StatusInProgress, StatusPending), expected: StatusInProgress},
		"one completed one pending":    {batches: batches(StatusCompleted, StatusPending), expected: StatusInProgress},
		"completed and in progress":    {batches: batches(StatusCompleted, StatusInProgress), expected: StatusInProgress},
		"all completed":                {batches: batches(StatusCompleted, StatusCompleted), expected: StatusCompleted},
		"single completed":             {batches: batches(StatusCompleted), expected: StatusCompleted},
		"single pending":               {batches: batches(StatusPending), expected: StatusPending},
		"no batches counts as pending": {batches: nil, expected: StatusPending},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, AggregateStatus(tc.batches))
		})
	}
}

func TestIngestion_DeepCopy(t *testing.T) {
	now := time.Now()
	original := &Ingestion{
		Id:       "ingestion",
		Priority: PriorityLow,
		SubBatches: []*SubBatch{
			{Id: "a", Ids: []int64{1, 2, 3}, Status: StatusPending},
			{Id: "b", Ids: []int64{4}, Status: StatusPending},
		},
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	copied := original.DeepCopy()
	assert.Equal(t, original, copied)

	copied.SubBatches[0].Status = StatusCompleted
	copied.SubBatches[0].Ids[0] = 99
	copied.SubBatches = append(copied.SubBatches, &SubBatch{Id: "c"})

	assert.Equal(t, StatusPending, original.SubBatches[0].Status)
	assert.Equal(t, int64(1), original.SubBatches[0].Ids[0])
	assert.Len(t, original.SubBatches, 2)
	assert.Nil(t, (*Ingestion)(nil).DeepCopy())
}

func TestIngestion_SubBatchById(t *testing.T) {
	i := &Ingestion{SubBatches: []*SubBatch{{Id: "a"}, {Id: "b"}}}

	idx, batch := i.SubBatchById("b")
	assert.Equal(t, 1, idx)
	assert.Equal(t, "b", batch.Id)

	idx, batch = i.SubBatchById("missing")
	assert.Equal(t, -1, idx)
	assert.Nil(t, batch)
}
