package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s %s", f.Field, f.Message)
}

// ValidationError lists every rejected field of a request or a price series.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func NewValidationError(field, message string) *ValidationError {
	verr := &ValidationError{}
	verr.Add(field, message)
	return verr
}

func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) Merge(other *ValidationError) {
	if other == nil {
		return
	}
	e.Fields = append(e.Fields, other.Fields...)
}

func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns nil when no field was rejected.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// DataUnavailableError means no usable series could be obtained upstream.
// Attempts lists the providers tried, as "name:outcome", in order.
type DataUnavailableError struct {
	Symbol   string
	Reason   string
	Err      error
	Attempts []string
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data unavailable for %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("data unavailable for %s: %s", e.Symbol, e.Reason)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// AnomalyWarning is a non-fatal inconsistency observed while advancing a position.
type AnomalyWarning struct {
	Date    string `json:"date"`
	Message string `json:"message"`
}

func (w AnomalyWarning) String() string {
	return fmt.Sprintf("%s: %s", w.Date, w.Message)
}

// ErrorType names the error class shown to users in failure notifications.
func ErrorType(err error) string {
	var verr *ValidationError
	var derr *DataUnavailableError
	switch {
	case errors.As(err, &verr):
		return "ValidationError"
	case errors.As(err, &derr):
		return "DataUnavailableError"
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	case errors.Is(err, context.Canceled):
		return "CancelledError"
	default:
		return "Error"
	}
}
