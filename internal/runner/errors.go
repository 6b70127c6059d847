package runner

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned by control operations on a disposed runner.
var ErrDisposed = errors.New("runner disposed")

// InvalidStateError reports a control operation attempted from a status
// that does not allow it.
type InvalidStateError struct {
	// Op is the rejected operation ("execute", "retry", "disable", "enable").
	Op string

	// Status is the runner's status when the operation was attempted.
	Status Status
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s runner in status %s", e.Op, e.Status)
}

// IsInvalidState reports whether err is an InvalidStateError.
// Uses errors.As to handle wrapped errors.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}
