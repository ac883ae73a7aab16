package selector

import (
	"log/slog"
	"sync"
)

// Subscriber is the minimal interface Computed needs from an upstream
// selector, letting it compose heterogeneous Selector[S, T1], Selector[S, T2]
// instances without a shared type parameter. The method is unexported, so
// only types in this package can implement it; callers just pass an
// existing *Selector[S, T] value, which already satisfies it.
type Subscriber interface {
	subscribeAny(func()) Disposer
}

// subscribeAny lets Computed observe changes to a Selector without caring
// about its projected type T.
func (s *Selector[S, T]) subscribeAny(onChange func()) Disposer {
	return s.Subscribe(func(T, T) { onChange() })
}

// Computed composes one or more upstream selectors into a single derived
// value via combine, recomputing only when an upstream actually changes.
type Computed[T any] struct {
	mu sync.Mutex

	upstream []Subscriber
	combine  func() T
	eq       Equal[T]
	onErr    ErrorHandler
	logger   *slog.Logger

	last    T
	hasLast bool

	listeners []subEntry[T]
	nextID    uint64

	detach []Disposer
}

// NewComputed composes upstream selectors with combine, which should read
// each upstream's current Get() value and return the derived result.
// combine is re-run whenever any upstream notifies a change; listeners fire
// only if the newly combined value differs from the last under eq.
func NewComputed[T any](upstream []Subscriber, combine func() T, handler slog.Handler, opts ...Option[T]) *Computed[T] {
	logger := slog.Default()
	if handler != nil {
		logger = slog.New(handler)
	}
	c := &config[T]{}
	for _, opt := range opts {
		opt(c)
	}
	return &Computed[T]{
		upstream: upstream,
		combine:  combine,
		eq:       c.eq,
		onErr:    c.onErr,
		logger:   logger.WithGroup("computed"),
	}
}

// Get runs combine and memoizes the result.
func (c *Computed[T]) Get() T {
	next, ok := c.safeCombine()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		return c.last
	}
	if !c.hasLast || !c.equal(c.last, next) {
		c.last = next
		c.hasLast = true
	}
	return c.last
}

// Subscribe registers a listener for derived-value changes. On first
// subscribe it attaches to every upstream selector; on last unsubscribe it
// detaches from all of them.
func (c *Computed[T]) Subscribe(listener Listener[T]) Disposer {
	if listener == nil {
		return func() {}
	}

	c.mu.Lock()
	if len(c.listeners) == 0 {
		for _, u := range c.upstream {
			c.detach = append(c.detach, u.subscribeAny(c.onUpstreamChange))
		}
	}
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, subEntry[T]{id: id, listener: listener})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, e := range c.listeners {
				if e.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					break
				}
			}
			if len(c.listeners) == 0 {
				for _, d := range c.detach {
					d()
				}
				c.detach = nil
			}
		})
	}
}

func (c *Computed[T]) onUpstreamChange() {
	next, ok := c.safeCombine()
	if !ok {
		return
	}

	c.mu.Lock()
	prev := c.last
	hadLast := c.hasLast
	changed := !hadLast || !c.equal(prev, next)
	if changed {
		c.last = next
		c.hasLast = true
	}
	listeners := make([]Listener[T], len(c.listeners))
	for i, e := range c.listeners {
		listeners[i] = e.listener
	}
	c.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		c.dispatch(l, next, prev)
	}
}

func (c *Computed[T]) equal(a, b T) bool {
	if c.eq != nil {
		return c.eq(a, b)
	}
	return any(a) == any(b)
}

func (c *Computed[T]) safeCombine() (result T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("computed combine panicked", "recovered", r)
			if c.onErr != nil {
				c.onErr(projectionPanic(r))
			}
			ok = false
		}
	}()
	return c.combine(), true
}

func (c *Computed[T]) dispatch(listener Listener[T], next, prev T) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("computed listener panicked", "recovered", r)
		}
	}()
	listener(next, prev)
}

// Dispose detaches from every upstream selector and clears listeners.
func (c *Computed[T]) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.detach {
		d()
	}
	c.detach = nil
	c.listeners = nil
}
