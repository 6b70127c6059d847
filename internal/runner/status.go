package runner

import "fmt"

// Status is the lifecycle state of a runner. Exactly one status is active
// per runner at any instant.
type Status int

const (
	// StatusInitial means the runner has not been executed (or was cancelled).
	StatusInitial Status = iota
	// StatusPending means the runner's unit of work is in flight.
	StatusPending
	// StatusSuccess means the last unit of work completed without error.
	StatusSuccess
	// StatusError means the last unit of work failed.
	StatusError
	// StatusDisabled means the runner is excluded from execution.
	StatusDisabled
)

// StatusCount is the number of distinct statuses.
const StatusCount = int(StatusDisabled) + 1

var statusNames = [StatusCount]string{
	StatusInitial:  "initial",
	StatusPending:  "pending",
	StatusSuccess:  "success",
	StatusError:    "error",
	StatusDisabled: "disabled",
}

// Statuses returns every status in declaration order.
func Statuses() []Status {
	return []Status{StatusInitial, StatusPending, StatusSuccess, StatusError, StatusDisabled}
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return s >= StatusInitial && s <= StatusDisabled
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// ParseStatus parses the lowercase status name.
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Runner state transitions. Anything not listed is rejected by ActionRunner.
var validTransitions = map[Status]map[Status]bool{
	StatusInitial: {
		StatusPending:  true,
		StatusDisabled: true,
	},
	StatusPending: {
		StatusSuccess: true,
		StatusError:   true,
		StatusInitial: true, // cancel
	},
	StatusError: {
		StatusPending: true, // retry
	},
	StatusDisabled: {
		StatusInitial: true,
	},
}

// CanTransition reports whether a runner may move from one status to another.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}
