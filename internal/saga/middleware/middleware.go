// Package middleware implements the Middleware Orchestrator: onion-style
// composition of cross-cutting wrappers around transaction execution,
// generalized from a chained net/http middleware shape to saga execution.
package middleware

import (
	"errors"
	"fmt"
)

// ErrAborted is wrapped by the error returned from Context.Abort.
var ErrAborted = errors.New("middleware: chain aborted")

// Context is the read-only execution context threaded through the
// middleware chain and into the Transaction Executor.
type Context struct {
	TransactionName string
	TransactionID   string
	StepName        string
	Payload         any

	mutate  func(func(state any))
	getters func() any
	aborted error
}

// NewContext builds a Context. getState reads a deep-cloned snapshot of the
// live state; mutate proxies a mutation through the owning state manager.
func NewContext(transactionName, transactionID string, payload any, getState func() any, mutate func(func(state any))) *Context {
	return &Context{
		TransactionName: transactionName,
		TransactionID:   transactionID,
		Payload:         payload,
		getters:         getState,
		mutate:          mutate,
	}
}

// State returns a read-only snapshot of the current state.
func (c *Context) State() any {
	if c.getters == nil {
		return nil
	}
	return c.getters()
}

// Mutate applies fn to the live state through the owning state manager.
func (c *Context) Mutate(fn func(state any)) {
	if c.mutate != nil {
		c.mutate(fn)
	}
}

// Abort records reason and returns it wrapped in ErrAborted, for the
// middleware to return in order to unwind the chain. Returned before next,
// the executor never runs; returned after next, the executor's outcome
// stands and a successful run stays committed.
func (c *Context) Abort(reason error) error {
	c.aborted = fmt.Errorf("%w: %w", ErrAborted, reason)
	return c.aborted
}

// Aborted reports whether Abort was called on this context.
func (c *Context) Aborted() bool { return c.aborted != nil }

// Middleware wraps transaction execution. It must call next exactly once to
// continue the chain; returning an error (such as the one from ctx.Abort)
// unwinds the chain. Rollback happens only for failures inside the
// executor; an error returned after next does not undo a committed run.
type Middleware func(ctx *Context, next func() error) error

// Orchestrator composes registered middlewares onion-style: FIFO entry,
// LIFO exit. For middlewares m1, m2, m3 registered in that order, entry
// order is m1->m2->m3 and exit order is m3->m2->m1.
type Orchestrator struct {
	chain []Middleware
}

// New creates an empty Orchestrator.
func New() *Orchestrator {
	return &Orchestrator{}
}

// Use registers a middleware; order is insertion order.
func (o *Orchestrator) Use(mw Middleware) {
	if mw == nil {
		return
	}
	o.chain = append(o.chain, mw)
}

// Run composes the registered middlewares around innermost, invoking
// innermost as the last step of the chain.
func (o *Orchestrator) Run(ctx *Context, innermost func() error) error {
	next := innermost
	for i := len(o.chain) - 1; i >= 0; i-- {
		mw := o.chain[i]
		captured := next
		next = func() error { return mw(ctx, captured) }
	}
	return next()
}

// Clear removes every registered middleware.
func (o *Orchestrator) Clear() {
	o.chain = nil
}
