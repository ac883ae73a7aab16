package executor

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates a step exceeded its configured timeout.
	ErrTimeout = errors.New("executor: step timed out")

	// ErrCancelled indicates the transaction's cancel token fired.
	ErrCancelled = errors.New("executor: transaction was cancelled")

	// ErrNoSteps indicates a transaction was run with zero steps.
	ErrNoSteps = errors.New("executor: transaction has no steps")
)

// StepError wraps a failure from a step's Execute function, carrying enough
// context for diagnostics.
type StepError struct {
	TransactionID string
	StepName      string
	Attempt       int
	Err           error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed on transaction %s (attempt %d): %v",
		e.StepName, e.TransactionID, e.Attempt, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// CompensationError wraps a failure from a step's Compensate function. It is
// reported on the step:rollback event but never aborts further rollback.
type CompensationError struct {
	TransactionID string
	StepName      string
	Err           error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation for step %q failed on transaction %s: %v",
		e.StepName, e.TransactionID, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }
