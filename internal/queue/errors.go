package queue

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// RunnerError attributes a batch failure to the runner that produced it.
type RunnerError struct {
	// Index is the runner's queue index.
	Index int

	// Err is the error returned by the runner.
	Err error
}

// Error implements the error interface.
func (e *RunnerError) Error() string {
	return fmt.Sprintf("runner %d: %v", e.Index, e.Err)
}

// Unwrap returns the runner's error.
func (e *RunnerError) Unwrap() error {
	return e.Err
}

// IsRunnerError returns true if err is or wraps a RunnerError.
func IsRunnerError(err error) bool {
	var re *RunnerError
	return errors.As(err, &re)
}

// FailedIndices returns the runner indices carried by a batch error, in the
// order they were aggregated. err is either a single RunnerError (fail-fast)
// or a multierror of them (all-settled).
func FailedIndices(err error) []int {
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if errors.As(err, &merr) {
		indices := make([]int, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			var re *RunnerError
			if errors.As(e, &re) {
				indices = append(indices, re.Index)
			}
		}
		return indices
	}

	var re *RunnerError
	if errors.As(err, &re) {
		return []int{re.Index}
	}
	return nil
}
