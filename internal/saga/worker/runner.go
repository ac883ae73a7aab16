// Package worker provides a supervisable alternative entry point to the
// Saga Manager's default in-process mutex serialization: a
// supervisor.Runnable/Stateable that drains a buffered FIFO channel of
// queued run requests one at a time, giving the "queue behind the
// in-flight transaction" concurrency model a concrete, embeddable
// implementation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robbyt/go-fsm"

	"github.com/atlanticdynamic/sagakit/internal/saga"
	"github.com/atlanticdynamic/sagakit/internal/saga/executor"
)

// Request is a single queued transaction run.
type Request[S, P any] struct {
	Build  func(*saga.TransactionBuilder[S, P]) *saga.TransactionBuilder[S, P]
	Name   string
	Payload P
	Cancel *executor.CancelToken

	// Done, if non-nil, receives the run's result exactly once.
	Done chan<- error
}

// Runner drains a channel of Request[S, P] against one owned *saga.Manager,
// processing exactly one request at a time (FIFO), matching
// txmgr.Runner.monitorConfigTransactions.
type Runner[S, P any] struct {
	manager *saga.Manager[S, P]
	queue   chan Request[S, P]
	logger  *slog.Logger

	errs chan error

	wg        sync.WaitGroup
	runCtx    context.Context
	runCancel context.CancelFunc
	parentCtx context.Context

	machine *fsm.Machine
}

// New creates a Runner owning manager, draining requests from a channel
// with the given buffer size.
func New[S, P any](manager *saga.Manager[S, P], queueSize int, handler slog.Handler) (*Runner[S, P], error) {
	if manager == nil {
		return nil, errors.New("worker: manager cannot be nil")
	}
	if queueSize <= 0 {
		queueSize = 16
	}

	logger := slog.Default()
	if handler != nil {
		logger = slog.New(handler)
	}
	logger = logger.WithGroup("saga.worker.Runner")

	machine, err := fsm.New(logger.WithGroup("fsm").Handler(), fsm.StatusNew, fsm.TypicalTransitions)
	if err != nil {
		return nil, fmt.Errorf("worker: failed to create state machine: %w", err)
	}

	return &Runner[S, P]{
		manager:   manager,
		queue:     make(chan Request[S, P], queueSize),
		logger:    logger,
		errs:      make(chan error, 10),
		parentCtx: context.Background(),
		machine:   machine,
	}, nil
}

// Submit enqueues req. Blocks if the queue is full.
func (r *Runner[S, P]) Submit(req Request[S, P]) {
	r.queue <- req
}

// Run implements supervisor.Runnable: it boots the state machine, starts
// the drain loop, and blocks until ctx is cancelled or Stop is called.
func (r *Runner[S, P]) Run(ctx context.Context) error {
	if err := r.machine.Transition(fsm.StatusBooting); err != nil {
		return fmt.Errorf("worker: failed to transition to booting: %w", err)
	}

	r.runCtx, r.runCancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.monitorErrors()

	r.wg.Add(1)
	go r.drain()

	if err := r.machine.Transition(fsm.StatusRunning); err != nil {
		return fmt.Errorf("worker: failed to transition to running: %w", err)
	}

	select {
	case <-r.parentCtx.Done():
		r.runCancel()
	case <-r.runCtx.Done():
	}

	if r.machine.GetState() != fsm.StatusStopping {
		if err := r.machine.Transition(fsm.StatusStopping); err != nil {
			r.logger.Error("failed to transition to stopping", "error", err)
		}
	}

	r.wg.Wait()

	if err := r.machine.Transition(fsm.StatusStopped); err != nil {
		return fmt.Errorf("worker: failed to transition to stopped: %w", err)
	}
	return nil
}

func (r *Runner[S, P]) monitorErrors() {
	defer r.wg.Done()
	for {
		select {
		case <-r.runCtx.Done():
			return
		case err := <-r.errs:
			if err != nil {
				r.logger.Error("saga run error", "error", err)
			}
		}
	}
}

func (r *Runner[S, P]) drain() {
	defer r.wg.Done()
	for {
		select {
		case <-r.runCtx.Done():
			return
		case req, ok := <-r.queue:
			if !ok {
				return
			}
			r.process(req)
		}
	}
}

func (r *Runner[S, P]) process(req Request[S, P]) {
	builder := r.manager.CreateTransaction(req.Name)
	if req.Build != nil {
		builder = req.Build(builder)
	}

	err := builder.Run(r.runCtx, req.Payload, req.Cancel)
	if err != nil {
		r.logger.Error("transaction failed", "name", req.Name, "error", err)
		select {
		case r.errs <- err:
		default:
		}
	}
	if req.Done != nil {
		req.Done <- err
	}
}

// String implements supervisor.Runnable.
func (r *Runner[S, P]) String() string { return "saga.worker.Runner" }

// Stop implements supervisor.Runnable.
func (r *Runner[S, P]) Stop() {
	if err := r.machine.Transition(fsm.StatusStopping); err != nil {
		r.logger.Error("failed to transition to stopping", "error", err)
	}
	if r.runCancel != nil {
		r.runCancel()
	}
}

// GetState implements supervisor.Stateable.
func (r *Runner[S, P]) GetState() string { return r.machine.GetState() }

// IsRunning implements supervisor.Stateable.
func (r *Runner[S, P]) IsRunning() bool { return r.machine.GetState() == fsm.StatusRunning }
