package backend

import (
	"fmt"

	"github.com/pms/billing/internal/domain/shared"
)

// RequestError is a failed backend call: a transport failure, a status other
// than 200/204, or a payload with success=false. It matches
// shared.ErrBackendUnavailable through errors.Is.
type RequestError struct {
	Operation  string
	Method     string
	Path       string
	StatusCode int    // 0 for transport failures
	Message    string // backend-supplied message, if any
	Body       []byte
	Err        error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("backend %s: %s %s: %v", e.Operation, e.Method, e.Path, e.Err)
	case e.Message != "":
		return fmt.Sprintf("backend %s: %s %s: HTTP %d: %s", e.Operation, e.Method, e.Path, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("backend %s: %s %s: HTTP %d", e.Operation, e.Method, e.Path, e.StatusCode)
	}
}

// Unwrap exposes the backend sentinel and the transport cause
func (e *RequestError) Unwrap() []error {
	errs := []error{shared.ErrBackendUnavailable}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// UserMessage is the text shown to the operator in the transient notification
func (e *RequestError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode == 0 {
		return "The billing backend could not be reached"
	}
	return fmt.Sprintf("The billing backend rejected the request (HTTP %d)", e.StatusCode)
}
