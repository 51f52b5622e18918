package dispatcher

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// admissionOrderIndex is a go-memdb index over (Priority, Sequence) of a *ScheduledUnit.
// Keys are big-endian so that bytes.Compare(key(a), key(b)) agrees with admission order.
type admissionOrderIndex struct{}

func (idx *admissionOrderIndex) FromObject(obj interface{}) (bool, []byte, error) {
	unit, ok := obj.(*ScheduledUnit)
	if !ok {
		return false, nil, fmt.Errorf("expected type *ScheduledUnit but got %v", reflect.TypeOf(obj))
	}
	return true, encodeAdmissionOrder(uint32(unit.Priority), unit.Sequence), nil
}

// FromArgs takes a priority (uint32) and a sequence (uint64).
func (idx *admissionOrderIndex) FromArgs(args ...interface{}) ([]byte, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("must provide exactly two arguments")
	}
	priority, ok := args[0].(uint32)
	if !ok {
		return nil, fmt.Errorf("priority must be a uint32: %#v", args[0])
	}
	sequence, ok := args[1].(uint64)
	if !ok {
		return nil, fmt.Errorf("sequence must be a uint64: %#v", args[1])
	}
	return encodeAdmissionOrder(priority, sequence), nil
}

func encodeAdmissionOrder(priority uint32, sequence uint64) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint32(out[:4], priority)
	binary.BigEndian.PutUint64(out[4:], sequence)
	return out
}
