// Package lens serializes and deserializes ECS world state through binding
// structs. A binding declares, field by field, which components an entity
// carries on the wire; views over a binding read and write every matching
// entity at once. Projection field types extend bindings with optional
// components, child hierarchies, entity references, tagged interface values,
// and asset handles.
//
// All serialization runs inside a world scope. Save, Load, and WithWorld
// install the scope; marshal and unmarshal methods called outside one fail
// with ErrNoActiveWorld. Scopes are not safe for concurrent use: one
// save or load runs at a time.
package lens

import (
	"github.com/zeusync/worldlens/codec"
	"github.com/zeusync/worldlens/ecs"
)

// scope is the session state shared by every marshal and unmarshal call in
// one save or load: the target world, the reference token table, and the
// codec driving the call (nil when an encoder is invoked directly).
type scope struct {
	world *ecs.World
	refs  *refTable
	codec codec.Codec
	prev  *scope
}

// active is the innermost installed scope. Package-level on purpose: the
// encoding interfaces (json.Marshaler, yaml.Unmarshaler) leave no way to
// thread a context value through the encoder.
var active *scope

// WithWorld installs w as the ambient world for the extent of fn, then
// resolves any entity references recorded during fn. Nested calls with the
// same world are no-ops that share the outer session; a nested call with a
// different world shadows the outer one and restores it on return. The
// scope is cleared even when fn fails or panics.
func WithWorld(w *ecs.World, fn func() error) error {
	return scopedCall(w, nil, fn)
}

// CurrentWorld returns the world installed by the innermost scope.
func CurrentWorld() (*ecs.World, error) {
	if active == nil {
		return nil, ErrNoActiveWorld
	}
	return active.world, nil
}

func scopedCall(w *ecs.World, c codec.Codec, fn func() error) error {
	if active != nil && active.world == w {
		return fn()
	}
	sc := &scope{world: w, refs: newRefTable(), codec: c, prev: active}
	active = sc
	defer func() { active = sc.prev }()
	if err := fn(); err != nil {
		return err
	}
	return sc.refs.resolve()
}

func requireScope() (*scope, error) {
	if active == nil {
		return nil, &Error{Err: ErrNoActiveWorld}
	}
	return active, nil
}
