package ingestion

import (
	"time"

	"golang.org/x/exp/slices"

	"github.com/armadaproject/ingestq/internal/common/util"
)

// Bounds on the identifiers accepted for ingestion.
const (
	MinIdentifier int64 = 1
	MaxIdentifier int64 = 1_000_000_007
)

// SubBatch is a contiguous slice of the identifiers of an ingestion that is executed as a unit.
type SubBatch struct {
	Id     string
	Ids    []int64
	Status BatchStatus
}

func (b *SubBatch) DeepCopy() *SubBatch {
	if b == nil {
		return nil
	}
	return &SubBatch{
		Id:     b.Id,
		Ids:    util.CopyList(b.Ids),
		Status: b.Status,
	}
}

// Ingestion is a single ingestion request together with the sub-batches it was split into.
// Ingestions held by a store must not be modified in place; DeepCopy first.
type Ingestion struct {
	Id       string
	Priority Priority
	// Sub-batches in the order of the original identifier list.
	SubBatches []*SubBatch
	// Aggregate status. Always equal to AggregateStatus(SubBatches); maintained by the store and
	// kept as a field so it can be indexed.
	Status    BatchStatus
	CreatedAt time.Time
	// Time of the most recent sub-batch transition.
	UpdatedAt time.Time
}

func (i *Ingestion) DeepCopy() *Ingestion {
	if i == nil {
		return nil
	}
	return &Ingestion{
		Id:         i.Id,
		Priority:   i.Priority,
		SubBatches: util.DeepCopyList(i.SubBatches),
		Status:     i.Status,
		CreatedAt:  i.CreatedAt,
		UpdatedAt:  i.UpdatedAt,
	}
}

// SubBatchById returns the index and the sub-batch with the given id, or -1 and nil if there is none.
func (i *Ingestion) SubBatchById(id string) (int, *SubBatch) {
	idx := slices.IndexFunc(i.SubBatches, func(batch *SubBatch) bool { return batch.Id == id })
	if idx < 0 {
		return -1, nil
	}
	return idx, i.SubBatches[idx]
}
