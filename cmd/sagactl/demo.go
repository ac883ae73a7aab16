package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/sagakit/internal/fancy"
	"github.com/atlanticdynamic/sagakit/internal/logging"
	"github.com/atlanticdynamic/sagakit/internal/saga"
	"github.com/atlanticdynamic/sagakit/internal/saga/eventbus"
)

type account struct {
	Balance int
	LastID  string
}

type transferPayload struct {
	Amount int
	ID     string
}

var errRecordFailed = errors.New("record step failed")

// runDemo builds and runs a two-step fund transfer (deduct, then record)
// against a SagaManager[account, transferPayload], rendering the resulting
// event stream and final state with lipgloss styling. With forceFail, the
// record step errors and the deduct step's compensation runs instead.
func runDemo(ctx context.Context, forceFail bool, logLevel string) error {
	handler := logging.SetupHandlerText(logLevel, nil)
	logger := slog.New(handler)

	manager := saga.New[account, transferPayload](
		account{Balance: 1000},
		saga.WithLogHandler(handler),
		saga.WithEnableDevTools(true),
	)
	defer manager.Dispose()

	root := fancy.TransactionTree("xfer")
	manager.OnAnyEvent(func(e eventbus.Event) {
		root.AddChild(fmt.Sprintf("%s %s", fancy.EventText(e.Type), fancy.InfoStyle.Render(renderFields(e.Fields))))
	})

	tx := manager.CreateTransaction("xfer")
	tx.AddStep("deduct", func(s *account, p transferPayload) error {
		s.Balance -= p.Amount
		return nil
	}, func(s *account, p transferPayload) error {
		s.Balance += p.Amount
		return nil
	})
	tx.AddStep("record", func(s *account, p transferPayload) error {
		if forceFail {
			return errRecordFailed
		}
		s.LastID = p.ID
		return nil
	}, nil)

	runErr := tx.Run(ctx, transferPayload{Amount: 100, ID: "tx1"}, nil)

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
		logger.Debug("demo transaction failed", "error", runErr)
		return nil
	}
	return nil
}

func renderFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	out := ""
	for k, v := range fields {
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, v)
	}
	return fancy.TruncateString(out, 80)
}
