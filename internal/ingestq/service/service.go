package service

import (
	"time"

	"github.com/pkg/errors"

	"github.com/armadaproject/ingestq/internal/common/logctx"
	"github.com/armadaproject/ingestq/internal/ingestq/dispatcher"
	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
	"github.com/armadaproject/ingestq/internal/ingestq/splitter"
	"github.com/armadaproject/ingestq/internal/ingestq/store"
)

// Enqueuer accepts sub-batches for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx *logctx.Context, units []*dispatcher.ScheduledUnit) error
}

type IngestionView struct {
	IngestionId string                `json:"ingestion_id"`
	Status      ingestion.BatchStatus `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	Batches     []BatchView           `json:"batches"`
}

type BatchView struct {
	BatchId string                `json:"batch_id"`
	Ids     []int64               `json:"ids"`
	Status  ingestion.BatchStatus `json:"status"`
}

// IngestionService splits incoming requests into sub-batches, records them and hands them to the dispatcher.
// Input is expected to have been validated by the caller.
type IngestionService struct {
	maxSubBatchSize int
	store           store.IngestionStore
	enqueuer        Enqueuer
}

// NewIngestionService returns a service splitting submissions into sub-batches of at most maxSubBatchSize ids,
// or splitter.DefaultMaxSubBatchSize if maxSubBatchSize is not positive.
func NewIngestionService(maxSubBatchSize int, store store.IngestionStore, enqueuer Enqueuer) *IngestionService {
	if maxSubBatchSize <= 0 {
		maxSubBatchSize = splitter.DefaultMaxSubBatchSize
	}
	return &IngestionService{
		maxSubBatchSize: maxSubBatchSize,
		store:           store,
		enqueuer:        enqueuer,
	}
}

// Submit returns the id of the new ingestion as soon as its sub-batches are queued.
func (s *IngestionService) Submit(ctx *logctx.Context, ids []int64, priority ingestion.Priority) (string, error) {
	subBatches, err := splitter.Split(ids, s.maxSubBatchSize)
	if err != nil {
		return "", err
	}
	ingestionId, err := s.store.Create(priority, subBatches)
	if err != nil {
		return "", err
	}

	units := make([]*dispatcher.ScheduledUnit, len(subBatches))
	for i, batch := range subBatches {
		units[i] = &dispatcher.ScheduledUnit{
			IngestionId: ingestionId,
			SubBatchId:  batch.Id,
			Priority:    priority,
			Index:       i,
		}
	}
	if err := s.enqueuer.Enqueue(ctx, units); err != nil {
		return "", errors.WithMessagef(err, "ingestion %s was recorded but could not be queued", ingestionId)
	}

	ctx.Log.WithField("ingestionId", ingestionId).Infof(
		"Accepted %d ids at priority %s as %d sub-batches", len(ids), priority, len(subBatches),
	)
	return ingestionId, nil
}

func (s *IngestionService) Status(_ *logctx.Context, ingestionId string) (*IngestionView, error) {
	record, err := s.store.Get(ingestionId)
	if err != nil {
		return nil, err
	}
	view := &IngestionView{
		IngestionId: record.Id,
		Status:      record.Status,
		CreatedAt:   record.CreatedAt,
		Batches:     make([]BatchView, len(record.SubBatches)),
	}
	for i, batch := range record.SubBatches {
		view.Batches[i] = BatchView{
			BatchId: batch.Id,
			Ids:     batch.Ids,
			Status:  batch.Status,
		}
	}
	return view, nil
}
