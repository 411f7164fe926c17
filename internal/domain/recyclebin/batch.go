package recyclebin

import (
	"fmt"
	"strings"
)

// ItemFailure attributes a batch failure to one entity
type ItemFailure struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
}

// BatchError reports a bulk operation in which at least one request failed.
// No entity of the batch is removed when it is returned.
type BatchError struct {
	Kind      Kind
	Action    Action
	Total     int
	Succeeded []string
	Failures  []ItemFailure
}

// Error implements the error interface
func (e *BatchError) Error() string {
	return fmt.Sprintf("bulk %s of %s failed for %d of %d item(s): %s",
		e.Action, e.Kind, len(e.Failures), e.Total, strings.Join(e.FailedIDs(), ", "))
}

// Unwrap exposes the per-item errors
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// FailedIDs returns the ids whose request failed
func (e *BatchError) FailedIDs() []string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.ID
	}
	return ids
}
