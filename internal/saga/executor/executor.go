// Package executor implements the Transaction Executor: the step loop with
// retry, timeout, cancellation and reverse-order compensation that gives
// saga transactions their atomicity guarantee. Compensation runs in strict
// reverse order of successful step completion, not by participant name.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/sagakit/internal/saga/eventbus"
	"github.com/atlanticdynamic/sagakit/internal/saga/finitestate"
	"github.com/atlanticdynamic/sagakit/internal/saga/state"
)

// Step is a single named unit of work within a Transaction.
type Step[S, P any] struct {
	Name string

	// Execute mutates the live state through stateRef. An error fails the
	// step and, once retries are exhausted, the transaction.
	Execute func(stateRef *S, payload P) error

	// Compensate semantically undoes Execute. Optional: for a step with no
	// Compensate, rollback still restores its pre-step snapshot and emits
	// step:rollback, and only the compensation call is skipped.
	Compensate func(stateRef *S, payload P) error

	// Retries is the number of additional attempts after the first failure
	// (default 0: execute exactly once).
	Retries uint32

	// Timeout bounds a single attempt's execution. Zero means no timeout.
	Timeout time.Duration

	// RetryDelay overrides the executor's default delay between retry
	// attempts. Zero uses the executor's configured default.
	RetryDelay time.Duration

	// Priority is advisory metadata only; the executor never reorders
	// steps based on it.
	Priority int
}

// Transaction is an ephemeral run request: an ordered list of steps and the
// payload they operate on.
type Transaction[S, P any] struct {
	Name    string
	ID      string
	Steps   []Step[S, P]
	Payload P
}

// Executor runs transactions against a shared state.Manager, emitting
// lifecycle events on bus and tracking each run's state through finitestate.
type Executor[S, P any] struct {
	manager          *state.Manager[S]
	bus              *eventbus.Bus
	logger           *slog.Logger
	defaultRetryWait time.Duration
	autoCommit       bool
}

// New creates an Executor bound to manager and bus, committing automatically
// on a successful run. Use NewWithAutoCommit to disable that behavior.
func New[S, P any](manager *state.Manager[S], bus *eventbus.Bus, defaultRetryDelay time.Duration, handler slog.Handler) *Executor[S, P] {
	return NewWithAutoCommit[S, P](manager, bus, defaultRetryDelay, true, handler)
}

// NewWithAutoCommit creates an Executor bound to manager and bus. When
// autoCommit is false, Run leaves a successful transaction's mutations in
// the manager's working state without committing them to history; the
// caller is responsible for an explicit state.Manager.Commit.
func NewWithAutoCommit[S, P any](manager *state.Manager[S], bus *eventbus.Bus, defaultRetryDelay time.Duration, autoCommit bool, handler slog.Handler) *Executor[S, P] {
	logger := slog.Default()
	if handler != nil {
		logger = slog.New(handler)
	}
	return &Executor[S, P]{
		manager:          manager,
		bus:              bus,
		logger:           logger.WithGroup("executor"),
		defaultRetryWait: defaultRetryDelay,
		autoCommit:       autoCommit,
	}
}

type rollbackEntry[S, P any] struct {
	step Step[S, P]
	name string
	pre  S
}

// Run executes tx's steps in order against the Executor's state manager.
func (e *Executor[S, P]) Run(ctx context.Context, tx Transaction[S, P], cancel *CancelToken) error {
	if cancel == nil {
		cancel = NewCancelToken()
	}

	if len(tx.Steps) == 0 {
		return ErrNoSteps
	}

	fsmMachine, err := finitestate.New(nil)
	if err != nil {
		return fmt.Errorf("executor: failed to create transaction state machine: %w", err)
	}

	start := time.Now()
	e.emit("transaction:start", map[string]any{
		"transactionName": tx.Name,
		"transactionId":   tx.ID,
		"payload":         tx.Payload,
	})

	if err := fsmMachine.Transition(finitestate.StateRunning); err != nil {
		return fmt.Errorf("executor: failed to begin run: %w", err)
	}

	s0, err := e.manager.Snapshot()
	if err != nil {
		return err
	}

	var succeeded []rollbackEntry[S, P]

	for _, step := range tx.Steps {
		if cancel.Cancelled() {
			return e.fail(ctx, fsmMachine, tx, start, succeeded, s0,
				fmt.Errorf("%w: %s", ErrCancelled, "cancelled before step "+step.Name))
		}

		pre, err := e.manager.Snapshot()
		if err != nil {
			return e.fail(ctx, fsmMachine, tx, start, succeeded, s0, err)
		}

		e.emit("step:start", map[string]any{
			"stepName":      step.Name,
			"transactionId": tx.ID,
			"attempt":       1,
		})

		stepStart := time.Now()
		attemptErr := e.runStepWithRetry(ctx, tx, step, pre, cancel)
		if attemptErr != nil {
			return e.fail(ctx, fsmMachine, tx, start, succeeded, s0, attemptErr)
		}

		e.emit("step:success", map[string]any{
			"stepName":      step.Name,
			"transactionId": tx.ID,
			"duration":      time.Since(stepStart),
		})
		succeeded = append(succeeded, rollbackEntry[S, P]{step: step, name: step.Name, pre: pre})
	}

	if e.autoCommit {
		if err := e.manager.Commit(); err != nil {
			return e.fail(ctx, fsmMachine, tx, start, succeeded, s0, err)
		}
	}

	if err := fsmMachine.Transition(finitestate.StateSucceeded); err != nil {
		e.logger.Error("failed to transition to succeeded", "error", err)
	}

	e.emit("transaction:success", map[string]any{
		"transactionName": tx.Name,
		"transactionId":   tx.ID,
	})
	e.emit("transaction:complete", map[string]any{
		"transactionName": tx.Name,
		"transactionId":   tx.ID,
		"duration":        time.Since(start),
		"outcome":         "success",
	})
	return nil
}

// runStepWithRetry runs a single step through its retry policy, restoring
// pre before each attempt after the first so every attempt observes a
// clean pre-step state.
func (e *Executor[S, P]) runStepWithRetry(ctx context.Context, tx Transaction[S, P], step Step[S, P], pre S, cancel *CancelToken) error {
	maxAttempts := int(step.Retries) + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.manager.Restore(pre); err != nil {
				return err
			}
		}

		err := e.runOneAttempt(ctx, step, tx.Payload, cancel)
		if err == nil {
			return nil
		}

		if attempt < maxAttempts {
			e.emit("step:retry", map[string]any{
				"stepName":      step.Name,
				"transactionId": tx.ID,
				"attempt":       attempt,
				"error":         err.Error(),
			})
			e.sleepRetryDelay(step, cancel)
			continue
		}

		return &StepError{TransactionID: tx.ID, StepName: step.Name, Attempt: attempt, Err: err}
	}
	return nil
}

func (e *Executor[S, P]) sleepRetryDelay(step Step[S, P], cancel *CancelToken) {
	delay := step.RetryDelay
	if delay == 0 {
		delay = e.defaultRetryWait
	}
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-cancel.Done():
	}
}

// runOneAttempt runs a single attempt of step.Execute, racing it against
// step.Timeout (if set) and the cancel token.
func (e *Executor[S, P]) runOneAttempt(ctx context.Context, step Step[S, P], payload P, cancel *CancelToken) error {
	stateRef, err := e.manager.GetStateRef()
	if err != nil {
		return err
	}

	resultCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- fmt.Errorf("step panicked: %v", r)
			}
		}()
		resultCh <- step.Execute(stateRef, payload)
	}()

	var timeoutCh <-chan time.Time
	if step.Timeout > 0 {
		timer := time.NewTimer(step.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case err := <-resultCh:
		return err
	case <-timeoutCh:
		return ErrTimeout
	case <-cancel.Done():
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail drives the rollback path: restores each succeeded step's pre-step
// snapshot in reverse order, runs its compensation, restores the overall
// pre-transaction snapshot as a safety net, and reports the original error.
func (e *Executor[S, P]) fail(
	ctx context.Context,
	fsmMachine *finitestate.TxFSM,
	tx Transaction[S, P],
	start time.Time,
	succeeded []rollbackEntry[S, P],
	s0 S,
	cause error,
) error {
	if err := fsmMachine.Transition(finitestate.StateFailed); err != nil {
		e.logger.Error("failed to transition to failed", "error", err)
	}

	e.emit("transaction:rollback", map[string]any{
		"transactionName": tx.Name,
		"transactionId":   tx.ID,
		"error":           cause.Error(),
	})

	if err := fsmMachine.Transition(finitestate.StateRollingBack); err != nil {
		e.logger.Error("failed to transition to rolling_back", "error", err)
	}

	for i := len(succeeded) - 1; i >= 0; i-- {
		entry := succeeded[i]

		if err := e.manager.Restore(entry.pre); err != nil {
			e.logger.Error("failed to restore pre-step snapshot during rollback",
				"step", entry.name, "error", err)
		}

		var compErr error
		if entry.step.Compensate != nil {
			stateRef, err := e.manager.GetStateRef()
			if err != nil {
				compErr = err
			} else {
				compErr = e.safeCompensate(entry.step, stateRef, tx.Payload)
			}
		}

		payload := map[string]any{
			"stepName":      entry.name,
			"transactionId": tx.ID,
		}
		if compErr != nil {
			ce := &CompensationError{TransactionID: tx.ID, StepName: entry.name, Err: compErr}
			payload["compensationError"] = ce.Error()
			e.logger.Error("compensation failed", "step", entry.name, "error", ce)
		}
		e.emit("step:rollback", payload)
	}

	if err := e.manager.Restore(s0); err != nil {
		e.logger.Error("failed to restore pre-transaction snapshot", "error", err)
	}

	if err := fsmMachine.Transition(finitestate.StateRolledBack); err != nil {
		e.logger.Error("failed to transition to rolled_back", "error", err)
	}

	e.emit("transaction:fail", map[string]any{
		"transactionName": tx.Name,
		"transactionId":   tx.ID,
		"error":           cause.Error(),
		"duration":        time.Since(start),
	})
	e.emit("transaction:complete", map[string]any{
		"transactionName": tx.Name,
		"transactionId":   tx.ID,
		"duration":        time.Since(start),
		"outcome":         "fail",
	})

	return cause
}

func (e *Executor[S, P]) safeCompensate(step Step[S, P], stateRef *S, payload P) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compensation panicked: %v", r)
		}
	}()
	return step.Compensate(stateRef, payload)
}

func (e *Executor[S, P]) emit(name string, fields map[string]any) {
	if e.bus == nil {
		return
	}
	e.bus.Emit(name, fields)
}
