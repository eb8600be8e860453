package lens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/ecs"
)

type boost struct {
	Factor int `json:"factor" yaml:"factor"`
}

type buffedLens struct {
	Name  name         `json:"name" yaml:"name"`
	Boost Maybe[boost] `json:"boost" yaml:"boost"`
}

func TestMaybePresentAndAbsent(t *testing.T) {
	src := ecs.NewWorld()
	a := src.Spawn()
	require.NoError(t, ecs.Insert(src, a, name{Value: "buffed"}))
	require.NoError(t, ecs.Insert(src, a, boost{Factor: 2}))
	b := src.Spawn()
	require.NoError(t, ecs.Insert(src, b, name{Value: "plain"}))

	data, err := Save[buffedLens](src, codec.JSON{})
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"name":{"value":"buffed"},"boost":{"factor":2}},
		{"name":{"value":"plain"},"boost":null}
	]`, string(data))

	dst := ecs.NewWorld()
	require.NoError(t, Load[buffedLens](dst, codec.JSON{}, data))

	assert.True(t, ecs.Has[boost](dst, findByName(t, dst, "buffed")))
	assert.False(t, ecs.Has[boost](dst, findByName(t, dst, "plain")))
}

func TestMaybeAbsentKeyTolerated(t *testing.T) {
	dst := ecs.NewWorld()

	// Projection fields may be left out of the input entirely.
	err := Load[buffedLens](dst, codec.JSON{}, []byte(`[{"name":{"value":"bare"}}]`))
	require.NoError(t, err)
	assert.False(t, ecs.Has[boost](dst, findByName(t, dst, "bare")))
}

func TestMaybeRoundTripYAML(t *testing.T) {
	src := ecs.NewWorld()
	a := src.Spawn()
	require.NoError(t, ecs.Insert(src, a, name{Value: "buffed"}))
	require.NoError(t, ecs.Insert(src, a, boost{Factor: 5}))

	data, err := Save[buffedLens](src, codec.YAML{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[buffedLens](dst, codec.YAML{}, data))
	got, ok := ecs.Get[boost](dst, findByName(t, dst, "buffed"))
	require.True(t, ok)
	assert.Equal(t, 5, got.Factor)
}

type squad struct {
	Callsign string `json:"callsign" yaml:"callsign"`
}

type soldier struct {
	Rank int `json:"rank" yaml:"rank"`
}

type soldierLens struct {
	Name    name    `json:"name" yaml:"name"`
	Soldier soldier `json:"soldier" yaml:"soldier"`
}

type squadLens struct {
	Squad   squad                 `json:"squad" yaml:"squad"`
	Members ChildVec[soldierLens] `json:"members" yaml:"members"`
}

func spawnSquad(t *testing.T, w *ecs.World, callsign string, members ...string) ecs.EntityID {
	t.Helper()
	id := w.Spawn()
	require.NoError(t, ecs.Insert(w, id, squad{Callsign: callsign}))
	for i, label := range members {
		m := w.Spawn()
		require.NoError(t, ecs.Insert(w, m, name{Value: label}))
		require.NoError(t, ecs.Insert(w, m, soldier{Rank: i + 1}))
		require.NoError(t, w.SetParent(m, id))
	}
	return id
}

func TestChildVecRoundTrip(t *testing.T) {
	src := ecs.NewWorld()
	spawnSquad(t, src, "raven", "ash", "birch")

	data, err := Save[squadLens](src, codec.JSON{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"squad":{"callsign":"raven"},"members":[
		{"name":{"value":"ash"},"soldier":{"rank":1}},
		{"name":{"value":"birch"},"soldier":{"rank":2}}
	]}]`, string(data))

	dst := ecs.NewWorld()
	require.NoError(t, Load[squadLens](dst, codec.JSON{}, data))

	var squadID ecs.EntityID
	for _, id := range dst.All() {
		if ecs.Has[squad](dst, id) {
			squadID = id
		}
	}
	require.NotZero(t, squadID)

	children := dst.Children(squadID)
	require.Len(t, children, 2)
	first, ok := ecs.Get[name](dst, children[0])
	require.True(t, ok)
	assert.Equal(t, "ash", first.Value)
	second, ok := ecs.Get[name](dst, children[1])
	require.True(t, ok)
	assert.Equal(t, "birch", second.Value)
}

func TestChildVecEmptyAndAbsent(t *testing.T) {
	src := ecs.NewWorld()
	spawnSquad(t, src, "lone")

	data, err := Save[squadLens](src, codec.JSON{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"squad":{"callsign":"lone"},"members":[]}]`, string(data))

	dst := ecs.NewWorld()
	require.NoError(t, Load[squadLens](dst, codec.JSON{}, []byte(`[{"squad":{"callsign":"ghost"}}]`)))
	assert.Equal(t, 1, dst.Len())
}

func TestChildVecIgnoresNonMatchingChildren(t *testing.T) {
	src := ecs.NewWorld()
	id := spawnSquad(t, src, "mixed", "ash")
	pet := src.Spawn()
	require.NoError(t, ecs.Insert(src, pet, name{Value: "dog"}))
	require.NoError(t, src.SetParent(pet, id))

	data, err := Save[squadLens](src, codec.JSON{})
	require.NoError(t, err)

	// The name-only child lacks soldier and stays out of the save.
	assert.NotContains(t, string(data), "dog")
}

func TestChildVecRoundTripYAML(t *testing.T) {
	src := ecs.NewWorld()
	spawnSquad(t, src, "raven", "ash", "birch")

	data, err := Save[squadLens](src, codec.YAML{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[squadLens](dst, codec.YAML{}, data))
	assert.Equal(t, 3, dst.Len())
}

type turret struct {
	Arc int `json:"arc" yaml:"arc"`
}

type turretLens struct {
	Turret turret `json:"turret" yaml:"turret"`
}

type tankLens struct {
	Name   name              `json:"name" yaml:"name"`
	Turret Child[turretLens] `json:"turret_unit" yaml:"turret_unit"`
}

func TestChildExactlyOne(t *testing.T) {
	src := ecs.NewWorld()
	tank := src.Spawn()
	require.NoError(t, ecs.Insert(src, tank, name{Value: "tiger"}))
	mount := src.Spawn()
	require.NoError(t, ecs.Insert(src, mount, turret{Arc: 180}))
	require.NoError(t, src.SetParent(mount, tank))

	data, err := Save[tankLens](src, codec.JSON{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[tankLens](dst, codec.JSON{}, data))

	tankID := findByName(t, dst, "tiger")
	children := dst.Children(tankID)
	require.Len(t, children, 1)
	got, ok := ecs.Get[turret](dst, children[0])
	require.True(t, ok)
	assert.Equal(t, 180, got.Arc)
}

func TestChildZeroMatchesFails(t *testing.T) {
	src := ecs.NewWorld()
	tank := src.Spawn()
	require.NoError(t, ecs.Insert(src, tank, name{Value: "hull"}))

	_, err := Save[tankLens](src, codec.JSON{})
	assert.ErrorIs(t, err, ErrNoMatchingChild)
}

func TestChildMultipleMatchesFails(t *testing.T) {
	src := ecs.NewWorld()
	tank := src.Spawn()
	require.NoError(t, ecs.Insert(src, tank, name{Value: "hydra"}))
	for i := 0; i < 2; i++ {
		mount := src.Spawn()
		require.NoError(t, ecs.Insert(src, mount, turret{Arc: 90}))
		require.NoError(t, src.SetParent(mount, tank))
	}

	_, err := Save[tankLens](src, codec.JSON{})
	assert.ErrorIs(t, err, ErrMultipleChildren)
}

func TestChildAbsentKeyFailsLoad(t *testing.T) {
	dst := ecs.NewWorld()

	err := Load[tankLens](dst, codec.JSON{}, []byte(`[{"name":{"value":"naked"}}]`))
	assert.ErrorIs(t, err, ErrMissingField)
}

type slotKey string

type limb struct {
	Length int `json:"length" yaml:"length"`
}

type limbLens struct {
	Limb limb `json:"limb" yaml:"limb"`
}

type rig struct {
	Model string `json:"model" yaml:"model"`
}

type rigLens struct {
	Rig   rig                         `json:"rig" yaml:"rig"`
	Limbs ChildMap[slotKey, limbLens] `json:"limbs" yaml:"limbs"`
}

func TestChildMapRoundTrip(t *testing.T) {
	src := ecs.NewWorld()
	body := src.Spawn()
	require.NoError(t, ecs.Insert(src, body, rig{Model: "mk2"}))
	for key, length := range map[slotKey]int{"right": 40, "left": 42} {
		l := src.Spawn()
		require.NoError(t, ecs.Insert(src, l, limb{Length: length}))
		require.NoError(t, ecs.Insert(src, l, key))
		require.NoError(t, src.SetParent(l, body))
	}

	data, err := Save[rigLens](src, codec.JSON{})
	require.NoError(t, err)

	// Map keys serialize sorted regardless of attachment order.
	assert.JSONEq(t, `[{"rig":{"model":"mk2"},"limbs":{
		"left":{"limb":{"length":42}},
		"right":{"limb":{"length":40}}
	}}]`, string(data))
	assert.Less(t, strings.Index(string(data), `"left"`), strings.Index(string(data), `"right"`))

	dst := ecs.NewWorld()
	require.NoError(t, Load[rigLens](dst, codec.JSON{}, data))

	var bodyID ecs.EntityID
	for _, id := range dst.All() {
		if ecs.Has[rig](dst, id) {
			bodyID = id
		}
	}
	children := dst.Children(bodyID)
	require.Len(t, children, 2)
	keys := make(map[slotKey]int)
	for _, child := range children {
		key, ok := ecs.Get[slotKey](dst, child)
		require.True(t, ok)
		l, ok := ecs.Get[limb](dst, child)
		require.True(t, ok)
		keys[*key] = l.Length
	}
	assert.Equal(t, map[slotKey]int{"left": 42, "right": 40}, keys)
}

func TestChildMapMissingKeyComponentFails(t *testing.T) {
	src := ecs.NewWorld()
	body := src.Spawn()
	require.NoError(t, ecs.Insert(src, body, rig{Model: "mk1"}))
	l := src.Spawn()
	require.NoError(t, ecs.Insert(src, l, limb{Length: 10}))
	require.NoError(t, src.SetParent(l, body))

	_, err := Save[rigLens](src, codec.JSON{})
	assert.ErrorIs(t, err, ErrMissingComponent)
}

func TestChildMapDuplicateKeyFails(t *testing.T) {
	src := ecs.NewWorld()
	body := src.Spawn()
	require.NoError(t, ecs.Insert(src, body, rig{Model: "mk1"}))
	for i := 0; i < 2; i++ {
		l := src.Spawn()
		require.NoError(t, ecs.Insert(src, l, limb{Length: i}))
		require.NoError(t, ecs.Insert(src, l, slotKey("left")))
		require.NoError(t, src.SetParent(l, body))
	}

	_, err := Save[rigLens](src, codec.JSON{})
	assert.ErrorIs(t, err, ErrDuplicateChildKey)
}

func TestChildMapRoundTripYAML(t *testing.T) {
	src := ecs.NewWorld()
	body := src.Spawn()
	require.NoError(t, ecs.Insert(src, body, rig{Model: "mk3"}))
	l := src.Spawn()
	require.NoError(t, ecs.Insert(src, l, limb{Length: 7}))
	require.NoError(t, ecs.Insert(src, l, slotKey("tail")))
	require.NoError(t, src.SetParent(l, body))

	data, err := Save[rigLens](src, codec.YAML{})
	require.NoError(t, err)

	dst := ecs.NewWorld()
	require.NoError(t, Load[rigLens](dst, codec.YAML{}, data))
	assert.Equal(t, 2, dst.Len())
}

type spriteSheet struct {
	Frames []string `json:"frames" yaml:"frames"`
}

type drawable struct {
	Sheet PathHandle[spriteSheet] `json:"sheet" yaml:"sheet"`
}

type drawableLens struct {
	Name     name     `json:"name" yaml:"name"`
	Drawable drawable `json:"drawable" yaml:"drawable"`
}

func TestPathHandleRoundTrip(t *testing.T) {
	src := ecs.NewWorld()
	sheet := ecs.AddAsset(src, "sheets/knight.png", spriteSheet{Frames: []string{"a", "b"}})
	id := src.Spawn()
	require.NoError(t, ecs.Insert(src, id, name{Value: "knight"}))
	require.NoError(t, ecs.Insert(src, id, drawable{Sheet: PathHandle[spriteSheet]{Handle: sheet}}))

	data, err := Save[drawableLens](src, codec.JSON{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":{"value":"knight"},"drawable":{"sheet":"sheets/knight.png"}}]`, string(data))

	dst := ecs.NewWorld()
	require.NoError(t, Load[drawableLens](dst, codec.JSON{}, data))
	got, ok := ecs.Get[drawable](dst, findByName(t, dst, "knight"))
	require.True(t, ok)
	assert.Equal(t, "sheets/knight.png", got.Sheet.Handle.Path)
}

func TestPathHandlePathlessFails(t *testing.T) {
	src := ecs.NewWorld()
	id := src.Spawn()
	require.NoError(t, ecs.Insert(src, id, name{Value: "blank"}))
	require.NoError(t, ecs.Insert(src, id, drawable{}))

	_, err := Save[drawableLens](src, codec.JSON{})
	assert.ErrorIs(t, err, ErrPathlessHandle)
}

type portrait struct {
	Icon ContentHandle[spriteSheet] `json:"icon" yaml:"icon"`
}

type portraitLens struct {
	Name     name     `json:"name" yaml:"name"`
	Portrait portrait `json:"portrait" yaml:"portrait"`
}

func TestContentHandleInlinesAsset(t *testing.T) {
	src := ecs.NewWorld()
	icon := ecs.AddAsset(src, "icons/hero.png", spriteSheet{Frames: []string{"idle"}})
	id := src.Spawn()
	require.NoError(t, ecs.Insert(src, id, name{Value: "hero"}))
	require.NoError(t, ecs.Insert(src, id, portrait{Icon: ContentHandle[spriteSheet]{Handle: icon}}))

	data, err := Save[portraitLens](src, codec.JSON{})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":{"value":"hero"},"portrait":{"icon":{"frames":["idle"]}}}]`, string(data))

	dst := ecs.NewWorld()
	require.NoError(t, Load[portraitLens](dst, codec.JSON{}, data))

	got, ok := ecs.Get[portrait](dst, findByName(t, dst, "hero"))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got.Icon.Handle.Path, "inline/"))
	asset, ok := ecs.AssetOf(dst, got.Icon.Handle)
	require.True(t, ok)
	assert.Equal(t, []string{"idle"}, asset.Frames)
}

func TestContentHandleMissingAssetFails(t *testing.T) {
	src := ecs.NewWorld()
	id := src.Spawn()
	require.NoError(t, ecs.Insert(src, id, name{Value: "ghost"}))
	handle := ecs.AcquireHandle[spriteSheet](src, "icons/missing.png")
	require.NoError(t, ecs.Insert(src, id, portrait{Icon: ContentHandle[spriteSheet]{Handle: handle}}))

	_, err := Save[portraitLens](src, codec.JSON{})
	assert.ErrorIs(t, err, ErrAssetMissing)
}
