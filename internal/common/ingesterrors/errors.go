// Package ingesterrors contains the typed errors returned by the ingestion core.
// The HTTP boundary looks for the error types defined in this file and sets the response status accordingly;
// callers should discriminate with errors.As rather than by comparing messages.
package ingesterrors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string // Resource type, e.g., "ingestion" or "subBatch"
	Value   string // Resource identifier
	Message string // An optional message to include in the error message
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrInvalidArgument is returned when a request is malformed, e.g. an empty id list or an unknown priority.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "priority"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrInvalidTransition signals an attempted backward or skipping sub-batch state change.
// It indicates a bug rather than a condition callers are expected to recover from.
type ErrInvalidTransition struct {
	IngestionId string
	SubBatchId  string
	From        string
	To          string
}

func (err *ErrInvalidTransition) Error() string {
	return fmt.Sprintf(
		"invalid transition of sub-batch %s of ingestion %s from %s to %s",
		err.SubBatchId, err.IngestionId, err.From, err.To,
	)
}

// ErrExecutionFailure wraps the cause of a failed sub-batch execution.
type ErrExecutionFailure struct {
	IngestionId string
	SubBatchId  string
	Cause       error
}

func (err *ErrExecutionFailure) Error() string {
	return fmt.Sprintf("execution of sub-batch %s of ingestion %s failed: %v", err.SubBatchId, err.IngestionId, err.Cause)
}

func (err *ErrExecutionFailure) Unwrap() error {
	return err.Cause
}

// HttpStatusFromError maps error types to HTTP status codes.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func HttpStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return http.StatusBadRequest
		}
	}
	{
		var e *ErrNotFound
		if errors.As(err, &e) {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

// IsNotFound returns true if err or any error it wraps is an *ErrNotFound.
func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}
