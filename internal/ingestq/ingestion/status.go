package ingestion

// BatchStatus is the state of a sub-batch, and also the aggregate state of an ingestion.
// States only ever move forward: pending -> in_progress -> completed.
type BatchStatus string

const (
	StatusPending    BatchStatus = "pending"
	StatusInProgress BatchStatus = "in_progress"
	StatusCompleted  BatchStatus = "completed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []BatchStatus{StatusPending, StatusInProgress, StatusCompleted}

func (s BatchStatus) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

func (s BatchStatus) IsValid() bool {
	return s.rank() >= 0
}

// CanTransitionTo returns true if next is exactly one step ahead of s.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	return s.IsValid() && next.IsValid() && next.rank() == s.rank()+1
}

// AggregateStatus derives the status of an ingestion from the statuses of its sub-batches:
// completed if all are completed, pending if all are pending and in_progress otherwise.
func AggregateStatus(batches []*SubBatch) BatchStatus {
	allCompleted := true
	allPending := true
	for _, batch := range batches {
		if batch.Status != StatusCompleted {
			allCompleted = false
		}
		if batch.Status != StatusPending {
			allPending = false
		}
	}
	switch {
	case len(batches) == 0 || allPending:
		return StatusPending
	case allCompleted:
		return StatusCompleted
	default:
		return StatusInProgress
	}
}
