package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robbyt/go-supervisor/supervisor"

	"github.com/atlanticdynamic/sagakit/internal/fancy"
	"github.com/atlanticdynamic/sagakit/internal/logging"
	"github.com/atlanticdynamic/sagakit/internal/saga"
	"github.com/atlanticdynamic/sagakit/internal/saga/eventbus"
	"github.com/atlanticdynamic/sagakit/internal/saga/worker"
)

// runServe boots a worker.Runner under a supervisor.Supervisor, submits one
// sample transfer through its request queue, waits for the result, then
// shuts the supervisor down. It exercises the queued entry point to the
// Saga Manager: the same worker.Runner an embedding program would run
// long-lived alongside its own other supervised components.
func runServe(ctx context.Context, logLevel string) error {
	handler := logging.SetupHandlerText(logLevel, nil)
	logger := slog.New(handler)

	manager := saga.New[account, transferPayload](
		account{Balance: 1000},
		saga.WithLogHandler(handler),
	)
	defer manager.Dispose()

	root := fancy.TransactionTree("serve")
	manager.OnAnyEvent(func(e eventbus.Event) {
		root.AddChild(fmt.Sprintf("%s %s", fancy.EventText(e.Type), fancy.InfoStyle.Render(renderFields(e.Fields))))
	})

	runner, err := worker.New[account, transferPayload](manager, 4, handler)
	if err != nil {
		return fmt.Errorf("sagactl: failed to create worker runner: %w", err)
	}

	super, err := supervisor.New(
		supervisor.WithRunnables(runner),
		supervisor.WithLogHandler(handler),
		supervisor.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("sagactl: failed to create supervisor: %w", err)
	}

	superErrCh := make(chan error, 1)
	go func() { superErrCh <- super.Run() }()

	for !runner.IsRunning() {
		select {
		case err := <-superErrCh:
			return fmt.Errorf("sagactl: supervisor exited before starting: %w", err)
		case <-time.After(time.Millisecond):
		}
	}

	done := make(chan error, 1)
	runner.Submit(worker.Request[account, transferPayload]{
		Name: "xfer",
		Build: func(b *saga.TransactionBuilder[account, transferPayload]) *saga.TransactionBuilder[account, transferPayload] {
			return b.AddStep("deduct", func(s *account, p transferPayload) error {
				s.Balance -= p.Amount
				return nil
			}, func(s *account, p transferPayload) error {
				s.Balance += p.Amount
				return nil
			})
		},
		Payload: transferPayload{Amount: 250, ID: "queued-tx1"},
		Done:    done,
	})

	runErr := <-done
	runner.Stop()
	if err := <-superErrCh; err != nil {
		logger.Error("supervisor exited with error", "error", err)
	}

	got, err := manager.GetState()
	if err != nil {
		return err
	}

	fmt.Println(root.Tree())
	fmt.Println()
	fmt.Printf("%s %s\n", fancy.HeaderStyle.Render("final state:"),
		fancy.StateText(fmt.Sprintf("{balance:%d lastId:%q}", got.Balance, got.LastID)))
	if runErr != nil {
		fmt.Printf("%s %s\n", fancy.HeaderStyle.Render("run error:"), fancy.ErrorText(runErr.Error()))
	}
	return nil
}
