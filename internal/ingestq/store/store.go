package store

import (
	"github.com/hashicorp/go-memdb"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
	"github.com/armadaproject/ingestq/internal/common/util"
	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
)

const (
	ingestionsTable = "ingestions"
	idIndex         = "id"     // index for looking up ingestions by id
	statusIndex     = "status" // index for counting ingestions by aggregate status
)

// IngestionStore is the authoritative record of every ingestion and the only place aggregate status is computed.
type IngestionStore interface {
	// Create stores a new ingestion made up of subBatches, all pending, and returns its id.
	Create(priority ingestion.Priority, subBatches []*ingestion.SubBatch) (string, error)
	// Transition moves one sub-batch to newStatus and returns the resulting aggregate status of its ingestion.
	Transition(ingestionId, subBatchId string, newStatus ingestion.BatchStatus) (ingestion.BatchStatus, error)
	// Get returns a copy of the ingestion with the given id.
	Get(ingestionId string) (*ingestion.Ingestion, error)
	// CountByStatus returns the number of ingestions in each aggregate status.
	CountByStatus() (map[ingestion.BatchStatus]int, error)
}

// IngestionDb is an IngestionStore built on https://github.com/hashicorp/go-memdb.
// Stored ingestions are never modified in place: Transition copies, updates and re-inserts inside a single write
// transaction. go-memdb admits only one write transaction at a time, so transitions of sub-batches of the same
// ingestion are serialized while readers work on consistent snapshots.
type IngestionDb struct {
	db    *memdb.MemDB
	clock clock.PassiveClock
	newId func() string
}

func NewIngestionDb(clock clock.PassiveClock) (*IngestionDb, error) {
	db, err := memdb.NewMemDB(ingestionDbSchema())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &IngestionDb{
		db:    db,
		clock: clock,
		newId: util.NewULID,
	}, nil
}

func (s *IngestionDb) Create(priority ingestion.Priority, subBatches []*ingestion.SubBatch) (string, error) {
	if !priority.IsValid() {
		return "", &ingesterrors.ErrInvalidArgument{Name: "priority", Value: uint32(priority)}
	}
	if len(subBatches) == 0 {
		return "", &ingesterrors.ErrInvalidArgument{
			Name:    "subBatches",
			Value:   0,
			Message: "an ingestion needs at least one sub-batch",
		}
	}
	stored := util.DeepCopyList(subBatches)
	seen := make(map[string]bool, len(stored))
	for _, batch := range stored {
		if len(batch.Ids) == 0 {
			return "", &ingesterrors.ErrInvalidArgument{
				Name:    "subBatches",
				Value:   batch.Id,
				Message: "sub-batch has no ids",
			}
		}
		if batch.Id == "" || seen[batch.Id] {
			return "", &ingesterrors.ErrInvalidArgument{
				Name:    "subBatches",
				Value:   batch.Id,
				Message: "sub-batch ids must be unique and non-empty",
			}
		}
		seen[batch.Id] = true
		batch.Status = ingestion.StatusPending
	}

	now := s.clock.Now()
	record := &ingestion.Ingestion{
		Id:         s.newId(),
		Priority:   priority,
		SubBatches: stored,
		Status:     ingestion.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(ingestionsTable, record); err != nil {
		return "", errors.WithStack(err)
	}
	txn.Commit()
	return record.Id, nil
}

func (s *IngestionDb) Transition(ingestionId, subBatchId string, newStatus ingestion.BatchStatus) (ingestion.BatchStatus, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := getById(txn, ingestionId)
	if err != nil {
		return "", err
	}
	idx, batch := existing.SubBatchById(subBatchId)
	if batch == nil {
		return "", &ingesterrors.ErrNotFound{
			Type:    "subBatch",
			Value:   subBatchId,
			Message: "ingestion " + ingestionId,
		}
	}
	if !batch.Status.CanTransitionTo(newStatus) {
		return "", errors.WithStack(&ingesterrors.ErrInvalidTransition{
			IngestionId: ingestionId,
			SubBatchId:  subBatchId,
			From:        string(batch.Status),
			To:          string(newStatus),
		})
	}

	updated := existing.DeepCopy()
	updated.SubBatches[idx].Status = newStatus
	updated.Status = ingestion.AggregateStatus(updated.SubBatches)
	updated.UpdatedAt = s.clock.Now()
	if err := txn.Insert(ingestionsTable, updated); err != nil {
		return "", errors.WithStack(err)
	}
	txn.Commit()
	return updated.Status, nil
}

func (s *IngestionDb) Get(ingestionId string) (*ingestion.Ingestion, error) {
	existing, err := getById(s.db.Txn(false), ingestionId)
	if err != nil {
		return nil, err
	}
	return existing.DeepCopy(), nil
}

func (s *IngestionDb) CountByStatus() (map[ingestion.BatchStatus]int, error) {
	txn := s.db.Txn(false)
	counts := make(map[ingestion.BatchStatus]int, len(ingestion.AllStatuses))
	for _, status := range ingestion.AllStatuses {
		iter, err := txn.Get(ingestionsTable, statusIndex, string(status))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		n := 0
		for obj := iter.Next(); obj != nil; obj = iter.Next() {
			n++
		}
		counts[status] = n
	}
	return counts, nil
}

// getById returns the stored ingestion, which must not be modified, or ErrNotFound.
func getById(txn *memdb.Txn, ingestionId string) (*ingestion.Ingestion, error) {
	obj, err := txn.First(ingestionsTable, idIndex, ingestionId)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if obj == nil {
		return nil, &ingesterrors.ErrNotFound{Type: "ingestion", Value: ingestionId}
	}
	return obj.(*ingestion.Ingestion), nil
}

func ingestionDbSchema() *memdb.DBSchema {
	indexes := make(map[string]*memdb.IndexSchema)
	indexes[idIndex] = &memdb.IndexSchema{
		Name:    idIndex,
		Unique:  true,
		Indexer: &memdb.StringFieldIndex{Field: "Id"},
	}
	indexes[statusIndex] = &memdb.IndexSchema{
		Name:    statusIndex,
		Unique:  false,
		Indexer: &memdb.StringFieldIndex{Field: "Status"},
	}
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			ingestionsTable: {
				Name:    ingestionsTable,
				Indexes: indexes,
			},
		},
	}
}
