package executor

import "sync"

// CancelToken is a one-shot signal observed cooperatively by step bodies
// and the executor between attempts and between steps. Cancel is idempotent.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken creates a token in the not-cancelled state.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call more than once.
func (c *CancelToken) Cancel() {
	c.once.Do(func() { close(c.done) })
}

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when Cancel is called.
func (c *CancelToken) Done() <-chan struct{} {
	return c.done
}
