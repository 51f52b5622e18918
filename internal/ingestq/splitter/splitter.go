package splitter

import (
	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
	"github.com/armadaproject/ingestq/internal/common/util"
	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
)

// DefaultMaxSubBatchSize is the largest number of identifiers placed in a single sub-batch unless configured otherwise.
const DefaultMaxSubBatchSize = 3

// Split partitions ids into consecutive sub-batches of at most maxSize identifiers, preserving order.
// Every sub-batch gets a fresh id and starts out pending.
func Split(ids []int64, maxSize int) ([]*ingestion.SubBatch, error) {
	if err := Validate(ids); err != nil {
		return nil, err
	}
	if maxSize < 1 {
		return nil, &ingesterrors.ErrInvalidArgument{
			Name:    "maxSubBatchSize",
			Value:   maxSize,
			Message: "must be at least 1",
		}
	}
	chunks := util.Batch(ids, maxSize)
	subBatches := make([]*ingestion.SubBatch, len(chunks))
	for i, chunk := range chunks {
		subBatches[i] = &ingestion.SubBatch{
			Id:     util.NewUUID(),
			Ids:    util.CopyList(chunk),
			Status: ingestion.StatusPending,
		}
	}
	return subBatches, nil
}

// Validate returns ErrInvalidArgument if ids is empty or contains an identifier outside
// [ingestion.MinIdentifier, ingestion.MaxIdentifier].
func Validate(ids []int64) error {
	if len(ids) == 0 {
		return &ingesterrors.ErrInvalidArgument{
			Name:    "ids",
			Value:   ids,
			Message: "at least one id is required",
		}
	}
	for _, id := range ids {
		if id < ingestion.MinIdentifier || id > ingestion.MaxIdentifier {
			return &ingesterrors.ErrInvalidArgument{
				Name:    "ids",
				Value:   id,
				Message: "ids must be between 1 and 1000000007",
			}
		}
	}
	return nil
}
