// Package finitestate tracks the lifecycle of a single transaction run:
// pending, running, terminal success or failure, then rollback.
//
// "cancelled" is not a distinct terminal state here: a cancelled run is
// reported as an outcome on top of the ordinary failed → rolling_back →
// rolled_back path, so every transaction always runs its compensations.
package finitestate

import (
	"context"
	"log/slog"
	"time"

	"github.com/robbyt/go-fsm"
)

// Transaction lifecycle states.
const (
	StatePending     = "pending"
	StateRunning     = "running"
	StateSucceeded   = "succeeded"
	StateFailed      = "failed"
	StateRollingBack = "rolling_back"
	StateRolledBack  = "rolled_back"
)

// ErrInvalidStateTransition is re-exported from go-fsm for callers that want
// to distinguish it with errors.Is without importing go-fsm directly.
var ErrInvalidStateTransition = fsm.ErrInvalidStateTransition

// TerminalStates lists the states from which no further transition is valid.
var TerminalStates = []string{StateSucceeded, StateRolledBack}

// Transitions defines the valid state graph for a transaction run.
var Transitions = map[string][]string{
	StatePending:     {StateRunning},
	StateRunning:     {StateSucceeded, StateFailed},
	StateSucceeded:   {},
	StateFailed:      {StateRollingBack},
	StateRollingBack: {StateRolledBack},
	StateRolledBack:  {},
}

// Machine is the interface the executor depends on, so it can be swapped
// or mocked in tests.
type Machine interface {
	Transition(state string) error
	GetState() string
	GetStateChan(ctx context.Context) <-chan string
}

// TxFSM wraps fsm.Machine, overriding GetStateChan to broadcast
// synchronously with a bounded timeout.
type TxFSM struct {
	*fsm.Machine
}

// GetStateChan returns a channel of state changes, broadcasting with a
// 5-second synchronous timeout so late subscribers still observe the final
// terminal transition during a fast-completing run.
func (m *TxFSM) GetStateChan(ctx context.Context) <-chan string {
	return m.GetStateChanWithOptions(ctx, fsm.WithSyncTimeout(5*time.Second))
}

// New creates a transaction lifecycle machine starting in StatePending.
func New(handler slog.Handler) (*TxFSM, error) {
	machine, err := fsm.New(handler, StatePending, Transitions)
	if err != nil {
		return nil, err
	}
	return &TxFSM{Machine: machine}, nil
}
