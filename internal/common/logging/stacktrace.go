package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stacktrace is the log field holding the stack of a failed request or sub-batch.
const Stacktrace = "stacktrace"

// Implemented by errors created or wrapped with pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}

// WithStacktrace adds err and, when one was recorded, the stack at which it was created to entry.
// Used wherever a failure is logged rather than returned: failed requests and failed sub-batches.
func WithStacktrace(entry *logrus.Entry, err error) *logrus.Entry {
	entry = entry.WithError(err)
	if stack := ExtractStack(err); stack != nil {
		entry = entry.WithField(Stacktrace, stack)
	}
	return entry
}

// ExtractStack follows Cause() until it reaches an error carrying a stack, returning nil if there is none.
func ExtractStack(err error) errors.StackTrace {
	for err != nil {
		if stackErr, ok := err.(stackTracer); ok {
			return stackErr.StackTrace()
		}
		causeErr, ok := err.(causer)
		if !ok {
			return nil
		}
		err = causeErr.Cause()
	}
	return nil
}
