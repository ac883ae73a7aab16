package saga

import (
	"github.com/atlanticdynamic/sagakit/internal/saga/selector"
)

// Select creates a ReactiveSelector over m's state using projection p. Go
// methods cannot introduce new type parameters, so this is a free function
// taking the manager rather than a Manager[S, P].Select(...) method.
func Select[S, P, T any](m *Manager[S, P], p func(S) T, opts ...selector.Option[T]) *selector.Selector[S, T] {
	sel := selector.New(m.state, p, m.cfg.logHandler, opts...)
	m.disposers = append(m.disposers, sel.Dispose)
	return sel
}

// Compute composes upstream selectors (obtained from Select) into a derived
// value via combine. See Select for why this is a free function.
func Compute[S, P, T any](m *Manager[S, P], upstream []selector.Subscriber, combine func() T, opts ...selector.Option[T]) *selector.Computed[T] {
	computed := selector.NewComputed(upstream, combine, m.cfg.logHandler, opts...)
	m.disposers = append(m.disposers, computed.Dispose)
	return computed
}
