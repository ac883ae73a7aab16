package selector

import (
	"testing"

	"github.com/atlanticdynamic/sagakit/internal/saga/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ab struct {
	A int
	B int
}

func TestSelector_MemoizesWithoutInterveningCommit(t *testing.T) {
	t.Parallel()

	mgr := state.New(ab{A: 1, B: 2}, 0, nil)
	sel := New(mgr, func(s ab) int { return s.A }, nil, WithEqual(func(a, b int) bool { return a == b }))

	first := sel.Get()
	second := sel.Get()
	assert.Equal(t, 1, first)
	assert.Equal(t, first, second)
}

func TestSelector_DoesNotNotifyOnUnrelatedChange(t *testing.T) {
	t.Parallel()

	mgr := state.New(ab{A: 1, B: 2}, 0, nil)
	sel := New(mgr, func(s ab) int { return s.A }, nil, WithEqual(func(a, b int) bool { return a == b }))

	var calls int
	sel.Subscribe(func(next, prev int) { calls++ })

	ref, err := mgr.GetStateRef()
	require.NoError(t, err)
	ref.B = 99 // A unchanged
	require.NoError(t, mgr.Commit())

	assert.Equal(t, 0, calls)
}

func TestSelector_NotifiesOnRelatedChange(t *testing.T) {
	t.Parallel()

	mgr := state.New(ab{A: 1, B: 2}, 0, nil)
	sel := New(mgr, func(s ab) int { return s.A }, nil, WithEqual(func(a, b int) bool { return a == b }))

	var gotNext, gotPrev int
	sel.Subscribe(func(next, prev int) { gotNext, gotPrev = next, prev })
	sel.Get() // prime memoized value to 1

	ref, err := mgr.GetStateRef()
	require.NoError(t, err)
	ref.A = 3
	require.NoError(t, mgr.Commit())

	assert.Equal(t, 3, gotNext)
	assert.Equal(t, 1, gotPrev)
}

func TestSelector_DisposerDetachesFromManager(t *testing.T) {
	t.Parallel()

	mgr := state.New(ab{A: 1}, 0, nil)
	sel := New(mgr, func(s ab) int { return s.A }, nil, WithEqual(func(a, b int) bool { return a == b }))

	calls := 0
	dispose := sel.Subscribe(func(int, int) { calls++ })
	dispose()

	ref, _ := mgr.GetStateRef()
	ref.A = 5
	require.NoError(t, mgr.Commit())

	assert.Equal(t, 0, calls)
}

func TestSelector_PanicIsIsolatedAndKeepsLastValue(t *testing.T) {
	t.Parallel()

	mgr := state.New(ab{A: 1}, 0, nil)
	var reported error
	sel := New(mgr, func(s ab) int {
		if s.A == 2 {
			panic("boom")
		}
		return s.A
	}, nil, WithEqual(func(a, b int) bool { return a == b }), WithErrorHandler(func(err error) { reported = err }))

	require.Equal(t, 1, sel.Get())

	ref, _ := mgr.GetStateRef()
	ref.A = 2
	require.NoError(t, mgr.Commit())

	assert.Equal(t, 1, sel.Get())
	assert.Error(t, reported)
}

func TestComputed_RecomputesOnAnyUpstreamChange(t *testing.T) {
	t.Parallel()

	mgr := state.New(ab{A: 1, B: 10}, 0, nil)
	selA := New(mgr, func(s ab) int { return s.A }, nil, WithEqual(func(a, b int) bool { return a == b }))
	selB := New(mgr, func(s ab) int { return s.B }, nil, WithEqual(func(a, b int) bool { return a == b }))

	computed := NewComputed([]Subscriber{selA, selB}, func() int {
		return selA.Get() + selB.Get()
	}, nil, WithEqual(func(a, b int) bool { return a == b }))

	assert.Equal(t, 11, computed.Get())

	var got int
	computed.Subscribe(func(next, prev int) { got = next })

	ref, _ := mgr.GetStateRef()
	ref.A = 5
	require.NoError(t, mgr.Commit())

	assert.Equal(t, 15, got)
}
