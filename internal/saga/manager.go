// Package saga implements the Saga Manager facade: the external surface
// that owns the State Manager, Event Bus, Middleware Orchestrator,
// Transaction Executor and selector registry for one client state type,
// generalized from configuration rollout to arbitrary client-defined saga
// transactions.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-loglater"
	"github.com/robbyt/go-loglater/storage"

	"github.com/atlanticdynamic/sagakit/internal/saga/eventbus"
	"github.com/atlanticdynamic/sagakit/internal/saga/executor"
	"github.com/atlanticdynamic/sagakit/internal/saga/middleware"
	"github.com/atlanticdynamic/sagakit/internal/saga/state"
)

// Manager owns one State Manager, one Event Bus, one Middleware
// Orchestrator, one Executor and a selector registry for state type S and
// transaction payload type P.
type Manager[S, P any] struct {
	cfg config

	state      *state.Manager[S]
	bus        *eventbus.Bus
	middleware *middleware.Orchestrator
	exec       *executor.Executor[S, P]
	logger     *slog.Logger

	runMu    sync.Mutex // held by PolicyQueue; TryLock'd by PolicyReject
	disposed atomic.Bool

	disposers []func()

	logsMu sync.Mutex
	logs   map[string]*loglater.LogCollector
}

// New creates a SagaManager seeded with initial state.
func New[S, P any](initial S, opts ...Option) *Manager[S, P] {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := slog.Default()
	if cfg.logHandler != nil {
		logger = slog.New(cfg.logHandler)
	}

	stateMgr := state.New(initial, cfg.maxHistorySize, cfg.logHandler)
	bus := eventbus.New(cfg.logHandler)
	orchestrator := middleware.New()
	exec := executor.NewWithAutoCommit[S, P](stateMgr, bus, cfg.retryDelay, cfg.autoSnapshot, cfg.logHandler)

	return &Manager[S, P]{
		cfg:        cfg,
		state:      stateMgr,
		bus:        bus,
		middleware: orchestrator,
		exec:       exec,
		logger:     logger.WithGroup("saga"),
		logs:       make(map[string]*loglater.LogCollector),
	}
}

// CreateTransaction returns a builder for a named transaction.
func (m *Manager[S, P]) CreateTransaction(name string) *TransactionBuilder[S, P] {
	return &TransactionBuilder[S, P]{manager: m, name: name}
}

// Use registers a middleware; order is insertion order.
func (m *Manager[S, P]) Use(mw middleware.Middleware) {
	m.middleware.Use(mw)
}

// GetState returns a deep-cloned snapshot of the current state.
func (m *Manager[S, P]) GetState() (S, error) {
	var zero S
	if m.isDisposed() {
		return zero, ErrDisposed
	}
	return m.state.GetState()
}

// Undo moves the state manager's history cursor back by one.
func (m *Manager[S, P]) Undo() error {
	if m.isDisposed() {
		return ErrDisposed
	}
	return m.state.Undo()
}

// Redo moves the state manager's history cursor forward by one.
func (m *Manager[S, P]) Redo() error {
	if m.isDisposed() {
		return ErrDisposed
	}
	return m.state.Redo()
}

// Commit manually pushes the current working state onto history. Only
// needed when WithAutoSnapshot(false) is in effect; with the default
// autoSnapshot behavior a successful Run already commits.
func (m *Manager[S, P]) Commit() error {
	if m.isDisposed() {
		return ErrDisposed
	}
	return m.state.Commit()
}

// OnEvent subscribes to a named lifecycle event.
func (m *Manager[S, P]) OnEvent(name string, listener eventbus.Listener) eventbus.Disposer {
	return m.bus.On(name, listener)
}

// OnAnyEvent subscribes to every lifecycle event.
func (m *Manager[S, P]) OnAnyEvent(listener eventbus.Listener) eventbus.Disposer {
	return m.bus.OnAny(listener)
}

// ReplayTransactionLogs replays a completed transaction's captured logs
// against handler. Requires WithEnableDevTools(true); returns an error
// otherwise or if the transaction ID is unknown.
func (m *Manager[S, P]) ReplayTransactionLogs(id string, handler slog.Handler) error {
	if !m.cfg.enableDevTools {
		return fmt.Errorf("saga: devtools not enabled")
	}
	m.logsMu.Lock()
	collector, ok := m.logs[id]
	m.logsMu.Unlock()
	if !ok {
		return fmt.Errorf("saga: no captured logs for transaction %s", id)
	}
	return collector.PlayLogs(handler)
}

// GetTransactionLogs returns the raw captured log records for a completed
// transaction, if devtools is enabled and the transaction is known.
func (m *Manager[S, P]) GetTransactionLogs(id string) []storage.Record {
	m.logsMu.Lock()
	defer m.logsMu.Unlock()
	collector, ok := m.logs[id]
	if !ok {
		return nil
	}
	return collector.GetLogs()
}

// Dispose tears down the manager: unsubscribes all selectors, clears
// middleware, disposes the event bus and the state manager. After Dispose,
// GetState, Undo, Redo, Commit and TransactionBuilder.Run return
// ErrDisposed. OnEvent, OnAnyEvent, Use, CreateTransaction and the
// transaction-log accessors do not report it; listeners registered after
// Dispose are never called, since the disposed bus delivers nothing.
func (m *Manager[S, P]) Dispose() {
	if !m.markDisposed() {
		return
	}
	for _, d := range m.disposers {
		d()
	}
	m.disposers = nil
	m.middleware.Clear()
	m.bus.Dispose()
	m.state.Dispose()
}

func (m *Manager[S, P]) isDisposed() bool { return m.disposed.Load() }

func (m *Manager[S, P]) markDisposed() bool { return m.disposed.CompareAndSwap(false, true) }

// run executes tx under the manager's concurrency policy and middleware
// chain, generating a transaction ID if one was not supplied.
func (m *Manager[S, P]) run(ctx context.Context, tx executor.Transaction[S, P], cancel *executor.CancelToken) error {
	if m.isDisposed() {
		return ErrDisposed
	}
	if tx.ID == "" {
		tx.ID = uuid.Must(uuid.NewV7()).String()
	}

	if m.cfg.concurrencyPolicy == PolicyReject {
		if !m.runMu.TryLock() {
			return ErrBusy
		}
		defer m.runMu.Unlock()
	} else {
		m.runMu.Lock()
		defer m.runMu.Unlock()
	}

	runExec := m.exec
	if m.cfg.enableDevTools {
		collector := loglater.NewLogCollector(m.cfg.logHandler)
		runExec = executor.NewWithAutoCommit[S, P](m.state, m.bus, m.cfg.retryDelay, m.cfg.autoSnapshot, collector)
		m.logsMu.Lock()
		m.logs[tx.ID] = collector
		m.logsMu.Unlock()
	}

	mwCtx := middleware.NewContext(tx.Name, tx.ID, tx.Payload,
		func() any {
			s, err := m.state.GetState()
			if err != nil {
				return nil
			}
			return s
		},
		func(fn func(any)) {
			ref, err := m.state.GetStateRef()
			if err != nil {
				return
			}
			fn(ref)
		},
	)

	return m.middleware.Run(mwCtx, func() error {
		return runExec.Run(ctx, tx, cancel)
	})
}
