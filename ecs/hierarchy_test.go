package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetParentAndChildren(t *testing.T) {
	w := NewWorld()
	parent := w.Spawn()
	a := w.Spawn()
	b := w.Spawn()

	require.NoError(t, w.SetParent(a, parent))
	require.NoError(t, w.SetParent(b, parent))

	assert.Equal(t, []EntityID{a, b}, w.Children(parent))

	p, ok := w.Parent(a)
	require.True(t, ok)
	assert.Equal(t, parent, p)

	_, ok = w.Parent(parent)
	assert.False(t, ok)
}

func TestReparentMoves(t *testing.T) {
	w := NewWorld()
	first := w.Spawn()
	second := w.Spawn()
	child := w.Spawn()

	require.NoError(t, w.SetParent(child, first))
	require.NoError(t, w.SetParent(child, second))

	assert.Empty(t, w.Children(first))
	assert.Equal(t, []EntityID{child}, w.Children(second))

	p, _ := w.Parent(child)
	assert.Equal(t, second, p)
}

func TestCycleRejected(t *testing.T) {
	w := NewWorld()
	a := w.Spawn()
	b := w.Spawn()
	c := w.Spawn()

	require.NoError(t, w.SetParent(b, a))
	require.NoError(t, w.SetParent(c, b))

	// Self-parenting.
	assert.ErrorIs(t, w.SetParent(a, a), ErrHierarchyCycle)
	// Parenting an ancestor under its descendant.
	assert.ErrorIs(t, w.SetParent(a, c), ErrHierarchyCycle)

	// The links are untouched after a rejected call.
	assert.Equal(t, []EntityID{b}, w.Children(a))
	_, ok := w.Parent(a)
	assert.False(t, ok)
}

func TestDespawnChildDetaches(t *testing.T) {
	w := NewWorld()
	parent := w.Spawn()
	a := w.Spawn()
	b := w.Spawn()

	require.NoError(t, w.SetParent(a, parent))
	require.NoError(t, w.SetParent(b, parent))
	require.NoError(t, w.Despawn(a))

	assert.Equal(t, []EntityID{b}, w.Children(parent))
	assert.True(t, w.Alive(parent))
}
