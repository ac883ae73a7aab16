package clone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Tags  []string
	Extra map[string]int
}

type account struct {
	Balance int
	LastID  *string
	Nested  nested
}

func TestClone_DeepCopiesNestedGraph(t *testing.T) {
	t.Parallel()

	id := "tx1"
	original := account{
		Balance: 900,
		LastID:  &id,
		Nested: nested{
			Tags:  []string{"a", "b"},
			Extra: map[string]int{"x": 1},
		},
	}

	clone, unsupported := Clone(original)
	require.Equal(t, original, clone)
	require.Empty(t, unsupported)

	// mutating the clone must not affect the original
	clone.Balance = 0
	*clone.LastID = "mutated"
	clone.Nested.Tags[0] = "z"
	clone.Nested.Extra["x"] = 99

	assert.Equal(t, 900, original.Balance)
	assert.Equal(t, "tx1", *original.LastID)
	assert.Equal(t, "a", original.Nested.Tags[0])
	assert.Equal(t, 1, original.Nested.Extra["x"])
}

func TestClone_NilFieldsStayNil(t *testing.T) {
	t.Parallel()

	original := account{Balance: 1}
	clone, _ := Clone(original)

	assert.Nil(t, clone.LastID)
	assert.Nil(t, clone.Nested.Tags)
	assert.Nil(t, clone.Nested.Extra)
}

func TestDeepEqual(t *testing.T) {
	t.Parallel()

	a := account{Balance: 1, Nested: nested{Tags: []string{"x"}}}
	b := account{Balance: 1, Nested: nested{Tags: []string{"x"}}}
	c := account{Balance: 2, Nested: nested{Tags: []string{"x"}}}

	assert.True(t, DeepEqual(a, b))
	assert.False(t, DeepEqual(a, c))
}

func TestClone_FunctionFieldIsSkippedNotAliased(t *testing.T) {
	t.Parallel()

	type withFunc struct {
		Name string
		Hook func()
	}

	called := false
	original := withFunc{Name: "x", Hook: func() { called = true }}
	clone, unsupported := Clone(original)

	assert.Equal(t, "x", clone.Name)
	assert.Nil(t, clone.Hook)
	assert.Contains(t, unsupported, "$.Hook")
	assert.False(t, called)
}
