package ingestion

import (
	"strings"

	"github.com/armadaproject/ingestq/internal/common/ingesterrors"
)

// Priority of an ingestion. Smaller values are scheduled first.
type Priority uint32

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// AllPriorities lists every priority in scheduling order.
var AllPriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

var priorityNames = map[Priority]string{
	PriorityHigh:   "HIGH",
	PriorityMedium: "MEDIUM",
	PriorityLow:    "LOW",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

func (p Priority) IsValid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority converts HIGH, MEDIUM or LOW (in any case) into a Priority.
func ParsePriority(s string) (Priority, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == upper {
			return p, nil
		}
	}
	return 0, &ingesterrors.ErrInvalidArgument{
		Name:    "priority",
		Value:   s,
		Message: "must be one of HIGH, MEDIUM or LOW",
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, &ingesterrors.ErrInvalidArgument{Name: "priority", Value: uint32(p)}
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
