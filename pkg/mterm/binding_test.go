package mterm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowExtendAndGet(t *testing.T) {
	r := EmptyRow.Extend("x", TermValue(IRI("http://example.org/a")))
	v, ok := r.Get("x", 0)
	require.True(t, ok)
	assert.Equal(t, IRI("http://example.org/a"), v.Term)

	_, ok = r.Get("y", 0)
	assert.False(t, ok)
}

func TestRowExtendOverwrites(t *testing.T) {
	r := EmptyRow.Extend("x", IntValue(1)).Extend("x", IntValue(2))
	v, ok := r.Get("x", 0)
	require.True(t, ok)
	assert.Equal(t, int64(2), v.Int)
	assert.Len(t, r.Names(), 1)
}

func TestRowBindVisibility(t *testing.T) {
	r := EmptyRow.ExtendBind("x", IntValue(1), 2)

	// Visible to a consumer at or above (numerically <=) the introducing depth.
	_, ok := r.Get("x", 2)
	assert.True(t, ok)
	_, ok = r.Get("x", 1)
	assert.True(t, ok)

	// Hidden from a consumer strictly deeper than the introducing depth.
	_, ok = r.Get("x", 3)
	assert.False(t, ok)

	// GetProjected ignores depth entirely.
	_, ok = r.GetProjected("x")
	assert.True(t, ok)
}

func TestRowPatternBindingAlwaysVisible(t *testing.T) {
	r := EmptyRow.Extend("x", IntValue(1))
	_, ok := r.Get("x", 99)
	assert.True(t, ok, "pattern/join bindings ignore depth")
}

func TestRowCompatible(t *testing.T) {
	a := EmptyRow.Extend("x", IntValue(1)).Extend("y", IntValue(2))
	b := EmptyRow.Extend("x", IntValue(1)).Extend("z", IntValue(3))
	c := EmptyRow.Extend("x", IntValue(99))

	assert.True(t, a.Compatible(b))
	assert.False(t, a.Compatible(c))
}

func TestRowMerge(t *testing.T) {
	a := EmptyRow.Extend("x", IntValue(1))
	b := EmptyRow.Extend("y", IntValue(2))
	merged := a.Merge(b)

	v, ok := merged.GetProjected("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Int)

	v, ok = merged.GetProjected("y")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.Int)
}

func TestRowMergePrefersExistingOnCollision(t *testing.T) {
	a := EmptyRow.Extend("x", IntValue(1))
	b := EmptyRow.Extend("x", IntValue(2))
	merged := a.Merge(b)

	v, _ := merged.GetProjected("x")
	assert.Equal(t, int64(1), v.Int, "merge keeps r's own value on a shared name")
}
