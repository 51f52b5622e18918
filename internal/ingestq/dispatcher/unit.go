package dispatcher

import (
	"time"

	"github.com/armadaproject/ingestq/internal/ingestq/ingestion"
)

// ScheduledUnit is a queue entry referring to one sub-batch held by the store.
type ScheduledUnit struct {
	IngestionId string             `json:"ingestionId"`
	SubBatchId  string             `json:"subBatchId"`
	Priority    ingestion.Priority `json:"priority"`
	// Position of the sub-batch within its ingestion.
	Index int `json:"index"`
	// Assigned by the queue on enqueue; strictly increasing and used to order units of equal priority.
	Sequence   uint64    `json:"sequence"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func (u *ScheduledUnit) DeepCopy() *ScheduledUnit {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UnitState is the lifecycle of a unit inside the dispatcher.
type UnitState int

const (
	UnitQueued UnitState = iota
	UnitAdmitted
	UnitExecuting
	UnitCompleted
	UnitFailed
)

func (s UnitState) String() string {
	switch s {
	case UnitQueued:
		return "queued"
	case UnitAdmitted:
		return "admitted"
	case UnitExecuting:
		return "executing"
	case UnitCompleted:
		return "completed"
	case UnitFailed:
		return "failed"
	default:
		return "unknown"
	}
}
