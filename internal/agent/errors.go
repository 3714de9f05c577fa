package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrDecisionUnavailable means the decision source returned nothing
	// usable: an error, a nil decision or malformed arguments.
	ErrDecisionUnavailable = errors.New("decision unavailable")

	// ErrUnknownToolKind means a tool call named a kind the dispatcher
	// does not handle.
	ErrUnknownToolKind = errors.New("unknown tool kind")

	// ErrIterationLimitExceeded means the loop reached its ceiling
	// without a terminal decision.
	ErrIterationLimitExceeded = errors.New("iteration limit exceeded")
)

// Failure is returned by Run for every unsuccessful interaction. The
// conversation context keeps the turns appended before it.
type Failure struct {
	Iteration int
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("agent failure at iteration %d: %v", f.Iteration, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// IsFailure reports whether err (or any error in its chain) is a Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
