// Package selector implements the Reactive Selector Engine: memoized
// projections over a state.Manager, notified on every commit, plus
// ComputedValue composition across heterogeneous upstream selectors.
package selector

import (
	"log/slog"
	"sync"

	"github.com/atlanticdynamic/sagakit/internal/saga/clone"
	"github.com/atlanticdynamic/sagakit/internal/saga/state"
)

// Equal reports whether two projected values are equivalent. Without
// WithEqual or WithDeepEqual, values are compared with Go's == on their
// interface values, which suits comparable projected types.
type Equal[T any] func(a, b T) bool

// Listener is notified with (next, previous) whenever a selector's memoized
// value changes under its configured equality.
type Listener[T any] func(next, prev T)

// Disposer unsubscribes a previously registered Listener. Idempotent.
type Disposer func()

// ErrorHandler receives the panic recovered from a failing projection, so
// callers can surface a SelectorError event without this package depending
// on the eventbus package.
type ErrorHandler func(err error)

// Option configures a Selector or Computed at construction time.
type Option[T any] func(*config[T])

type config[T any] struct {
	eq    Equal[T]
	onErr ErrorHandler
}

// WithEqual sets a custom equality function.
func WithEqual[T any](eq Equal[T]) Option[T] {
	return func(c *config[T]) { c.eq = eq }
}

// WithDeepEqual uses clone.DeepEqual (structural comparison) as equality.
func WithDeepEqual[T any]() Option[T] {
	return func(c *config[T]) {
		c.eq = func(a, b T) bool { return clone.DeepEqual(a, b) }
	}
}

// WithErrorHandler registers a callback invoked when the projection panics.
func WithErrorHandler[T any](h ErrorHandler) Option[T] {
	return func(c *config[T]) { c.onErr = h }
}

// Selector lazily subscribes to a state.Manager[S], memoizing p(state) and
// notifying listeners only when the projected value changes.
type Selector[S, T any] struct {
	mu sync.Mutex

	manager *state.Manager[S]
	project func(S) T
	eq      Equal[T]
	onErr   ErrorHandler
	logger  *slog.Logger

	last    T
	hasLast bool

	listeners  []subEntry[T]
	nextID     uint64
	unsubscribe state.Disposer
}

type subEntry[T any] struct {
	id       uint64
	listener Listener[T]
}

func defaultEqual[T comparable](a, b T) bool { return a == b }

// New creates a Selector over manager using projection p. It does not begin
// observing commits until the first Subscribe call (lazy mode).
func New[S, T any](manager *state.Manager[S], p func(S) T, handler slog.Handler, opts ...Option[T]) *Selector[S, T] {
	logger := slog.Default()
	if handler != nil {
		logger = slog.New(handler)
	}
	c := &config[T]{}
	for _, opt := range opts {
		opt(c)
	}
	return &Selector[S, T]{
		manager: manager,
		project: p,
		eq:      c.eq,
		onErr:   c.onErr,
		logger:  logger.WithGroup("selector"),
	}
}

// Get runs the projection against the manager's current state and memoizes
// it, returning the memoized value if it compares equal under eq.
func (s *Selector[S, T]) Get() T {
	current, err := s.manager.GetState()
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.last
	}
	next, ok := s.safeProject(current)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		return s.last
	}
	if !s.hasLast || !s.equal(s.last, next) {
		s.last = next
		s.hasLast = true
	}
	return s.last
}

// Subscribe registers a listener for value changes. On first subscribe it
// attaches to the manager's commit stream; on last unsubscribe it detaches.
// A selector with no memoized value yet is primed from the current state
// first, so the first commit is compared against it like any other.
func (s *Selector[S, T]) Subscribe(listener Listener[T]) Disposer {
	if listener == nil {
		return func() {}
	}

	s.mu.Lock()
	primed := s.hasLast
	s.mu.Unlock()
	if !primed {
		s.Get()
	}

	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.unsubscribe = s.manager.Subscribe(s.onCommit)
	}
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subEntry[T]{id: id, listener: listener})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, e := range s.listeners {
				if e.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					break
				}
			}
			if len(s.listeners) == 0 && s.unsubscribe != nil {
				s.unsubscribe()
				s.unsubscribe = nil
			}
		})
	}
}

func (s *Selector[S, T]) onCommit(current S) {
	next, ok := s.safeProject(current)
	if !ok {
		return
	}

	s.mu.Lock()
	prev := s.last
	hadLast := s.hasLast
	changed := !hadLast || !s.equal(prev, next)
	if changed {
		s.last = next
		s.hasLast = true
	}
	listeners := make([]Listener[T], len(s.listeners))
	for i, e := range s.listeners {
		listeners[i] = e.listener
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		s.dispatch(l, next, prev)
	}
}

func (s *Selector[S, T]) dispatch(listener Listener[T], next, prev T) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("selector listener panicked", "recovered", r)
		}
	}()
	listener(next, prev)
}

// equal compares two projected values. Without a T: comparable constraint,
// the default falls back to interface equality; callers projecting onto a
// slice, map or func type must supply WithEqual or WithDeepEqual.
func (s *Selector[S, T]) equal(a, b T) bool {
	if s.eq != nil {
		return s.eq(a, b)
	}
	return any(a) == any(b)
}

// safeProject runs the projection, recovering a panic into a reported
// SelectorError via onErr (if configured) and retaining the last memoized
// value rather than propagating the panic to the caller.
func (s *Selector[S, T]) safeProject(current S) (result T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("selector projection panicked", "recovered", r)
			if s.onErr != nil {
				s.onErr(projectionPanic(r))
			}
			ok = false
		}
	}()
	return s.project(current), true
}

type panicError struct{ v any }

func (p panicError) Error() string { return "selector: projection panicked" }

func projectionPanic(v any) error { return panicError{v: v} }

// Dispose detaches from the manager and clears all listeners.
func (s *Selector[S, T]) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.listeners = nil
}
