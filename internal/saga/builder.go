package saga

import (
	"context"
	"time"

	"github.com/atlanticdynamic/sagakit/internal/saga/executor"
)

// TransactionBuilder accumulates steps for a named transaction. It is a
// pure value constructor: Run hands the accumulated steps to the executor
// through the middleware chain.
type TransactionBuilder[S, P any] struct {
	manager *Manager[S, P]
	name    string
	steps   []executor.Step[S, P]
}

// AddStep appends a named step with an optional compensation and options.
func (b *TransactionBuilder[S, P]) AddStep(
	name string,
	execute func(stateRef *S, payload P) error,
	compensate func(stateRef *S, payload P) error,
	opts ...StepOption,
) *TransactionBuilder[S, P] {
	cfg := stepConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	b.steps = append(b.steps, executor.Step[S, P]{
		Name:       name,
		Execute:    execute,
		Compensate: compensate,
		Retries:    cfg.retries,
		Timeout:    cfg.timeout,
		RetryDelay: cfg.retryDelay,
		Priority:   cfg.priority,
	})
	return b
}

// AddVoidStep is a no-compensation convenience for steps that never need
// rollback.
func (b *TransactionBuilder[S, P]) AddVoidStep(
	name string,
	execute func(stateRef *S, payload P) error,
) *TransactionBuilder[S, P] {
	return b.AddStep(name, execute, nil)
}

// Run executes the accumulated steps against payload using cancel (nil
// creates a fresh, never-cancelled token).
func (b *TransactionBuilder[S, P]) Run(ctx context.Context, payload P, cancel *executor.CancelToken) error {
	tx := executor.Transaction[S, P]{
		Name:    b.name,
		Steps:   b.steps,
		Payload: payload,
	}
	return b.manager.run(ctx, tx, cancel)
}

type stepConfig struct {
	retries    uint32
	timeout    time.Duration
	retryDelay time.Duration
	priority   int
}

// StepOption configures an individual step added via AddStep.
type StepOption func(*stepConfig)

// WithStepRetries sets the number of additional attempts after the first
// failure (default 0).
func WithStepRetries(n uint32) StepOption {
	return func(c *stepConfig) { c.retries = n }
}

// WithStepTimeout bounds a single attempt's execution.
func WithStepTimeout(d time.Duration) StepOption {
	return func(c *stepConfig) { c.timeout = d }
}

// WithStepRetryDelay overrides the manager's default delay between retry
// attempts for this step only.
func WithStepRetryDelay(d time.Duration) StepOption {
	return func(c *stepConfig) { c.retryDelay = d }
}

// WithStepPriority sets advisory-only priority metadata.
func WithStepPriority(p int) StepOption {
	return func(c *stepConfig) { c.priority = p }
}
