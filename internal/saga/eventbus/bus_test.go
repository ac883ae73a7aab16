package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_OnDeliversInRegistrationOrder(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var order []int

	bus.On("step:start", func(Event) { order = append(order, 1) })
	bus.On("step:start", func(Event) { order = append(order, 2) })
	bus.On("step:start", func(Event) { order = append(order, 3) })

	bus.Emit("step:start", nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_NamedBeforeAny(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var order []string

	bus.OnAny(func(Event) { order = append(order, "any") })
	bus.On("x", func(Event) { order = append(order, "named") })

	bus.Emit("x", nil)

	assert.Equal(t, []string{"named", "any"}, order)
}

func TestBus_DisposerIsIdempotentAndStopsDelivery(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	calls := 0
	dispose := bus.On("x", func(Event) { calls++ })

	bus.Emit("x", nil)
	dispose()
	dispose() // idempotent
	bus.Emit("x", nil)

	assert.Equal(t, 1, calls)
}

func TestBus_ListenerPanicIsIsolated(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	secondCalled := false

	bus.On("x", func(Event) { panic("boom") })
	bus.On("x", func(Event) { secondCalled = true })

	require.NotPanics(t, func() { bus.Emit("x", nil) })
	assert.True(t, secondCalled)
}

func TestBus_EventCarriesFields(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	var got Event
	bus.On("transaction:start", func(e Event) { got = e })

	bus.Emit("transaction:start", map[string]any{"transactionName": "xfer"})

	assert.Equal(t, "transaction:start", got.Type)
	assert.Equal(t, "xfer", got.Fields["transactionName"])
	assert.False(t, got.Timestamp.IsZero())
}

func TestBus_DisposeStopsAllDelivery(t *testing.T) {
	t.Parallel()

	bus := New(nil)
	calls := 0
	bus.On("x", func(Event) { calls++ })
	bus.OnAny(func(Event) { calls++ })

	bus.Dispose()
	bus.Emit("x", nil)

	assert.Equal(t, 0, calls)
}
