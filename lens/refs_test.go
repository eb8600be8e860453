package lens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/ecs"
)

// leader carries an entity reference inside regular component data.
type leader struct {
	Follows EntityRef `json:"follows" yaml:"follows"`
	Rank    int       `json:"rank" yaml:"rank"`
}

type crewLens struct {
	ID     EntityID `json:"id" yaml:"id"`
	Name   name     `json:"name" yaml:"name"`
	Leader leader   `json:"leader" yaml:"leader"`
}

func findByName(t *testing.T, w *ecs.World, label string) ecs.EntityID {
	t.Helper()
	for _, id := range w.All() {
		if n, ok := ecs.Get[name](w, id); ok && n.Value == label {
			return id
		}
	}
	t.Fatalf("no entity named %q", label)
	return 0
}

func TestEntityRefTokensOnTheWire(t *testing.T) {
	w := ecs.NewWorld()
	a := w.Spawn()
	b := w.Spawn()
	require.NoError(t, ecs.Insert(w, a, name{Value: "alpha"}))
	require.NoError(t, ecs.Insert(w, b, name{Value: "beta"}))
	require.NoError(t, ecs.Insert(w, a, leader{Follows: EntityRef{Entity: b}, Rank: 1}))
	require.NoError(t, ecs.Insert(w, b, leader{Follows: EntityRef{Entity: a}, Rank: 2}))

	data, err := Save[crewLens](w, codec.JSON{})
	require.NoError(t, err)

	// Tokens count up from zero in first-sight order.
	assert.JSONEq(t, `[
		{"id":0,"name":{"value":"alpha"},"leader":{"follows":1,"rank":1}},
		{"id":1,"name":{"value":"beta"},"leader":{"follows":0,"rank":2}}
	]`, string(data))
}

func TestEntityRefRoundTripMutual(t *testing.T) {
	src := ecs.NewWorld()
	a := src.Spawn()
	b := src.Spawn()
	require.NoError(t, ecs.Insert(src, a, name{Value: "alpha"}))
	require.NoError(t, ecs.Insert(src, b, name{Value: "beta"}))
	require.NoError(t, ecs.Insert(src, a, leader{Follows: EntityRef{Entity: b}, Rank: 1}))
	require.NoError(t, ecs.Insert(src, b, leader{Follows: EntityRef{Entity: a}, Rank: 2}))

	data, err := Save[crewLens](src, codec.JSON{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[crewLens](dst, codec.JSON{}, data))

	alpha := findByName(t, dst, "alpha")
	beta := findByName(t, dst, "beta")
	gotAlpha, ok := ecs.Get[leader](dst, alpha)
	require.True(t, ok)
	gotBeta, ok := ecs.Get[leader](dst, beta)
	require.True(t, ok)

	// The mutual references point at the freshly spawned entities.
	assert.Equal(t, beta, gotAlpha.Follows.Entity)
	assert.Equal(t, alpha, gotBeta.Follows.Entity)
	assert.Equal(t, 1, gotAlpha.Rank)
	assert.Equal(t, 2, gotBeta.Rank)
}

func TestEntityRefRoundTripYAML(t *testing.T) {
	src := ecs.NewWorld()
	a := src.Spawn()
	b := src.Spawn()
	require.NoError(t, ecs.Insert(src, a, name{Value: "alpha"}))
	require.NoError(t, ecs.Insert(src, b, name{Value: "beta"}))
	require.NoError(t, ecs.Insert(src, a, leader{Follows: EntityRef{Entity: b}, Rank: 1}))
	require.NoError(t, ecs.Insert(src, b, leader{Follows: EntityRef{Entity: a}, Rank: 2}))

	data, err := Save[crewLens](src, codec.YAML{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[crewLens](dst, codec.YAML{}, data))

	alpha := findByName(t, dst, "alpha")
	got, ok := ecs.Get[leader](dst, findByName(t, dst, "beta"))
	require.True(t, ok)
	assert.Equal(t, alpha, got.Follows.Entity)
}

func TestEntityRefSelfReference(t *testing.T) {
	src := ecs.NewWorld()
	a := src.Spawn()
	require.NoError(t, ecs.Insert(src, a, name{Value: "ouroboros"}))
	require.NoError(t, ecs.Insert(src, a, leader{Follows: EntityRef{Entity: a}}))

	data, err := Save[crewLens](src, codec.JSON{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[crewLens](dst, codec.JSON{}, data))

	self := findByName(t, dst, "ouroboros")
	got, ok := ecs.Get[leader](dst, self)
	require.True(t, ok)
	assert.Equal(t, self, got.Follows.Entity)
}

func TestEntityRefUnresolvedFails(t *testing.T) {
	dst := ecs.NewWorld()

	payload := []byte(`[{"id":0,"name":{"value":"solo"},"leader":{"follows":5,"rank":1}}]`)
	err := Load[crewLens](dst, codec.JSON{}, payload)
	assert.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestEntityTokenDefinedTwiceFails(t *testing.T) {
	dst := ecs.NewWorld()

	payload := []byte(`[
		{"id":0,"name":{"value":"one"},"leader":{"follows":0,"rank":1}},
		{"id":0,"name":{"value":"two"},"leader":{"follows":0,"rank":2}}
	]`)
	err := Load[crewLens](dst, codec.JSON{}, payload)
	assert.ErrorIs(t, err, ErrTokenReused)
}

// bondLens stores EntityRef as a component in its own right.
type bondLens struct {
	ID   EntityID  `json:"id" yaml:"id"`
	Name name      `json:"name" yaml:"name"`
	Ref  EntityRef `json:"ref" yaml:"ref"`
}

func TestEntityRefAsComponent(t *testing.T) {
	src := ecs.NewWorld()
	a := src.Spawn()
	b := src.Spawn()
	require.NoError(t, ecs.Insert(src, a, name{Value: "alpha"}))
	require.NoError(t, ecs.Insert(src, b, name{Value: "beta"}))
	require.NoError(t, ecs.Insert(src, a, EntityRef{Entity: b}))
	require.NoError(t, ecs.Insert(src, b, EntityRef{Entity: b}))

	data, err := Save[bondLens](src, codec.JSON{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[bondLens](dst, codec.JSON{}, data))

	beta := findByName(t, dst, "beta")
	got, ok := ecs.Get[EntityRef](dst, findByName(t, dst, "alpha"))
	require.True(t, ok)

	// The patch lands in the component memory the world stores.
	assert.Equal(t, beta, got.Entity)
}

func TestRefTableAssignsTokensInFirstSightOrder(t *testing.T) {
	refs := newRefTable()

	assert.Equal(t, uint64(0), refs.tokenFor(7))
	assert.Equal(t, uint64(1), refs.tokenFor(3))
	assert.Equal(t, uint64(0), refs.tokenFor(7))
	assert.Equal(t, uint64(2), refs.tokenFor(9))
}

func TestRefTableResolveIsOrderIndependent(t *testing.T) {
	refs := newRefTable()
	var first, second ecs.EntityID

	// Patches recorded before their tokens are bound.
	refs.deferPatch(&first, 1)
	refs.deferPatch(&second, 0)
	require.NoError(t, refs.bind(0, 10))
	require.NoError(t, refs.bind(1, 20))

	require.NoError(t, refs.resolve())
	assert.Equal(t, ecs.EntityID(20), first)
	assert.Equal(t, ecs.EntityID(10), second)
}
