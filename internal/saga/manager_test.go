package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/atlanticdynamic/sagakit/internal/saga/eventbus"
	"github.com/atlanticdynamic/sagakit/internal/saga/middleware"
	"github.com/atlanticdynamic/sagakit/internal/saga/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	Balance int
	LastID  string
}

type xferPayload struct {
	Amount int
	ID     string
}

func TestSagaManager_SuccessfulTransferCommitsBothSteps(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1000})
	defer m.Dispose()

	var events []string
	m.OnAnyEvent(func(e eventbus.Event) { events = append(events, e.Type) })

	tx := m.CreateTransaction("xfer")
	tx.AddStep("deduct", func(s *account, p xferPayload) error {
		s.Balance -= p.Amount
		return nil
	}, nil)
	tx.AddStep("record", func(s *account, p xferPayload) error {
		s.LastID = p.ID
		return nil
	}, nil)

	require.NoError(t, tx.Run(context.Background(), xferPayload{Amount: 100, ID: "tx1"}, nil))

	got, err := m.GetState()
	require.NoError(t, err)
	assert.Equal(t, account{Balance: 900, LastID: "tx1"}, got)
	assert.Equal(t, []string{
		"transaction:start",
		"step:start", "step:success",
		"step:start", "step:success",
		"transaction:success", "transaction:complete",
	}, events)
}

func TestSagaManager_FailedStepRollsBackAllCompensations(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1000})
	defer m.Dispose()

	boom := errors.New("record failed")
	tx := m.CreateTransaction("xfer")
	tx.AddStep("deduct", func(s *account, p xferPayload) error {
		s.Balance -= p.Amount
		return nil
	}, func(s *account, p xferPayload) error {
		s.Balance += p.Amount
		return nil
	})
	tx.AddStep("record", func(s *account, p xferPayload) error {
		return boom
	}, nil)

	err := tx.Run(context.Background(), xferPayload{Amount: 100, ID: "tx1"}, nil)
	require.Error(t, err)

	got, gerr := m.GetState()
	require.NoError(t, gerr)
	assert.Equal(t, account{Balance: 1000}, got)
}

func TestSagaManager_UndoRedo(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1000})
	defer m.Dispose()

	tx := m.CreateTransaction("deduct")
	tx.AddVoidStep("deduct", func(s *account, p xferPayload) error {
		s.Balance -= p.Amount
		return nil
	})
	require.NoError(t, tx.Run(context.Background(), xferPayload{Amount: 100}, nil))

	got, _ := m.GetState()
	assert.Equal(t, 900, got.Balance)

	require.NoError(t, m.Undo())
	got, _ = m.GetState()
	assert.Equal(t, 1000, got.Balance)

	require.NoError(t, m.Redo())
	got, _ = m.GetState()
	assert.Equal(t, 900, got.Balance)
}

func TestSagaManager_Dispose_RejectsFurtherOperations(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1})
	m.Dispose()

	_, err := m.GetState()
	assert.ErrorIs(t, err, ErrDisposed)

	tx := m.CreateTransaction("x")
	tx.AddVoidStep("noop", func(s *account, p xferPayload) error { return nil })
	err = tx.Run(context.Background(), xferPayload{}, nil)
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestSagaManager_PolicyReject_ReturnsBusy(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1}, WithConcurrencyPolicy(PolicyReject))
	defer m.Dispose()

	// Hold the run mutex to simulate an in-flight transaction.
	m.runMu.Lock()
	defer m.runMu.Unlock()

	tx := m.CreateTransaction("x")
	tx.AddVoidStep("noop", func(s *account, p xferPayload) error { return nil })
	err := tx.Run(context.Background(), xferPayload{}, nil)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSagaManager_MiddlewareWrapsExecution(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1})
	defer m.Dispose()

	var order []string
	m.Use(func(ctx *middleware.Context, next func() error) error {
		order = append(order, "mw-in")
		err := next()
		order = append(order, "mw-out")
		return err
	})

	tx := m.CreateTransaction("x")
	tx.AddVoidStep("noop", func(s *account, p xferPayload) error {
		order = append(order, "step")
		return nil
	})
	require.NoError(t, tx.Run(context.Background(), xferPayload{}, nil))

	assert.Equal(t, []string{"mw-in", "step", "mw-out"}, order)
}

func TestSagaManager_Select_NotifiesOnRelevantChangeOnly(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1, LastID: "a"})
	defer m.Dispose()

	sel := Select(m, func(s account) int { return s.Balance })
	calls := 0
	sel.Subscribe(func(next, prev int) { calls++ })
	sel.Get()

	tx := m.CreateTransaction("touch-lastid")
	tx.AddVoidStep("touch", func(s *account, p xferPayload) error {
		s.LastID = "b"
		return nil
	})
	require.NoError(t, tx.Run(context.Background(), xferPayload{}, nil))

	assert.Equal(t, 0, calls)

	tx2 := m.CreateTransaction("touch-balance")
	tx2.AddVoidStep("touch", func(s *account, p xferPayload) error {
		s.Balance = 5
		return nil
	})
	require.NoError(t, tx2.Run(context.Background(), xferPayload{}, nil))

	assert.Equal(t, 1, calls)
}

func TestSagaManager_AutoSnapshotDisabled_LeavesRunUncommitted(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 1000}, WithAutoSnapshot(false))
	defer m.Dispose()

	tx := m.CreateTransaction("deduct")
	tx.AddVoidStep("deduct", func(s *account, p xferPayload) error {
		s.Balance -= p.Amount
		return nil
	})
	require.NoError(t, tx.Run(context.Background(), xferPayload{Amount: 100}, nil))

	got, err := m.GetState()
	require.NoError(t, err)
	assert.Equal(t, 900, got.Balance)

	// Undo is a no-op: the run's mutation was never committed to history.
	require.NoError(t, m.Undo())
	got, err = m.GetState()
	require.NoError(t, err)
	assert.Equal(t, 900, got.Balance)

	require.NoError(t, m.Commit())
	require.NoError(t, m.Undo())
	got, err = m.GetState()
	require.NoError(t, err)
	assert.Equal(t, 1000, got.Balance)
}

func TestSagaManager_Compute_ComposesSelectors(t *testing.T) {
	t.Parallel()

	m := New[account, xferPayload](account{Balance: 10, LastID: "x"})
	defer m.Dispose()

	balance := Select(m, func(s account) int { return s.Balance })
	hasID := Select(m, func(s account) bool { return s.LastID != "" })

	summary := Compute(m, []selector.Subscriber{balance, hasID}, func() string {
		if hasID.Get() {
			return "has-id"
		}
		return "no-id"
	})

	assert.Equal(t, "has-id", summary.Get())
}
