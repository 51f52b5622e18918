package dispatcher

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
)

const (
	unitsTable = "units"
	idIndex    = "id"    // index for looking up units by sub-batch id
	orderIndex = "order" // index for iterating units in the order they should be admitted
)

// MemoryUnitQueue is a UnitQueue backed by go-memdb.
type MemoryUnitQueue struct {
	db *memdb.MemDB
	// Last sequence handed out. Only accessed while holding a write transaction.
	sequence uint64
}

func NewMemoryUnitQueue() (*MemoryUnitQueue, error) {
	db, err := memdb.NewMemDB(unitQueueSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &MemoryUnitQueue{db: db}, nil
}

func (q *MemoryUnitQueue) EnqueueMany(_ context.Context, units []*ScheduledUnit) error {
	txn := q.db.Txn(true)
	defer txn.Abort()

	sequence := q.sequence
	stored := make([]*ScheduledUnit, len(units))
	for i, unit := range units {
		existing, err := txn.First(unitsTable, idIndex, unit.SubBatchId)
		if err != nil {
			return errors.WithStack(err)
		}
		if existing != nil {
			return &ingesterrors.ErrInvalidArgument{
				Name:    "subBatchId",
				Value:   unit.SubBatchId,
				Message: "sub-batch is already queued",
			}
		}
		sequence++
		stored[i] = unit.DeepCopy()
		stored[i].Sequence = sequence
		if err := txn.Insert(unitsTable, stored[i]); err != nil {
			return errors.WithStack(err)
		}
	}
	q.sequence = sequence
	txn.Commit()

	for i, unit := range units {
		unit.Sequence = stored[i].Sequence
	}
	return nil
}

func (q *MemoryUnitQueue) Pop(_ context.Context) (*ScheduledUnit, error) {
	txn := q.db.Txn(true)
	defer txn.Abort()

	it, err := txn.LowerBound(unitsTable, orderIndex, uint32(0), uint64(0))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	obj := it.Next()
	if obj == nil {
		return nil, nil
	}
	unit, ok := obj.(*ScheduledUnit)
	if !ok {
		panic(fmt.Sprintf("expected *ScheduledUnit, but got %T", obj))
	}
	if err := txn.Delete(unitsTable, unit); err != nil {
		return nil, errors.WithStack(err)
	}
	txn.Commit()
	return unit.DeepCopy(), nil
}

func (q *MemoryUnitQueue) Len(_ context.Context) (int, error) {
	it, err := q.db.Txn(false).Get(unitsTable, idIndex)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		n++
	}
	return n, nil
}

func unitQueueSchema() *memdb.DBSchema {
	indexes := make(map[string]*memdb.IndexSchema)
	indexes[idIndex] = &memdb.IndexSchema{
		Name:    idIndex,
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: "SubBatchId"},
	}
	indexes[orderIndex] = &memdb.IndexSchema{
		Name:    orderIndex,
		Unique:  true,
		Indexer: &admissionOrderIndex{},
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			unitsTable: {
				Name:    unitsTable,
				Indexes: indexes,
			},
		},
	}
}
