package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterWithWithout(t *testing.T) {
	w := NewWorld()

	alive := w.Spawn()
	require.NoError(t, Insert(w, alive, position{}))
	require.NoError(t, Insert(w, alive, health{HP: 5}))

	dead := w.Spawn()
	require.NoError(t, Insert(w, dead, position{}))
	require.NoError(t, Insert(w, dead, health{}))
	require.NoError(t, Insert(w, dead, tagDead{}))

	posOnly := w.Spawn()
	require.NoError(t, Insert(w, posOnly, position{}))

	f := NewFilter(CompType[position](), CompType[health]())
	assert.Equal(t, []EntityID{alive, dead}, f.Entities(w))

	living := f.Without(CompType[tagDead]())
	assert.Equal(t, []EntityID{alive}, living.Entities(w))

	// The base filter is unchanged by Without.
	assert.Equal(t, []EntityID{alive, dead}, f.Entities(w))

	assert.True(t, living.Match(w, alive))
	assert.False(t, living.Match(w, dead))
	assert.False(t, living.Match(w, posOnly))
}

func TestFilterEmptyMatchesAll(t *testing.T) {
	w := NewWorld()
	a := w.Spawn()
	b := w.Spawn()

	assert.Equal(t, []EntityID{a, b}, Filter{}.Entities(w))
}

func TestFilterDeadEntity(t *testing.T) {
	w := NewWorld()
	e := w.Spawn()
	require.NoError(t, Insert(w, e, position{}))
	require.NoError(t, w.Despawn(e))

	f := NewFilter(CompType[position]())
	assert.False(t, f.Match(w, e))
	assert.Empty(t, f.Entities(w))
}
