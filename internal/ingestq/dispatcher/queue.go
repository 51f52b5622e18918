package dispatcher

import (
	"context"
)

// UnitQueue holds units waiting for admission, ordered by priority and then by sequence.
// Implementations must be safe for concurrent use.
type UnitQueue interface {
	// EnqueueMany adds all units or none of them. The Sequence of each unit is set on return.
	EnqueueMany(ctx context.Context, units []*ScheduledUnit) error
	// Pop removes and returns the first unit, or nil if the queue is empty.
	Pop(ctx context.Context) (*ScheduledUnit, error)
	Len(ctx context.Context) (int, error)
}
