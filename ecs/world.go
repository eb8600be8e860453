// Package ecs provides the entity-component store the rest of the module
// serializes: entities with typed components, parent/child links, world
// resources, and a small path-keyed asset store.
//
// Entities iterate in spawn order. Components are stored by pointer, so a
// pointer obtained from GetRaw (or handed to InsertRaw) stays valid for the
// lifetime of the component; the lens layer relies on this to patch entity
// references in place after a load.
package ecs

import (
	"fmt"
	"reflect"
)

// EntityID identifies a live entity. The zero value never names one.
type EntityID uint64

// World owns entities, components, hierarchy links, resources, and assets.
// It is not safe for concurrent use; callers own exclusivity for the
// duration of any save or load.
type World struct {
	nextID EntityID

	// order holds live entities in spawn order; despawned slots become
	// zero and are skipped on iteration.
	order []EntityID
	index map[EntityID]int

	comps     map[EntityID]map[reflect.Type]any
	parents   map[EntityID]EntityID
	children  map[EntityID][]EntityID
	resources map[reflect.Type]any
	assets    map[reflect.Type]map[string]any
}

// NewWorld returns an empty world.
func NewWorld() *World {
	return &World{
		nextID:    1,
		index:     make(map[EntityID]int),
		comps:     make(map[EntityID]map[reflect.Type]any),
		parents:   make(map[EntityID]EntityID),
		children:  make(map[EntityID][]EntityID),
		resources: make(map[reflect.Type]any),
		assets:    make(map[reflect.Type]map[string]any),
	}
}

// Spawn creates a new empty entity and returns its id.
func (w *World) Spawn() EntityID {
	id := w.nextID
	w.nextID++
	w.index[id] = len(w.order)
	w.order = append(w.order, id)
	w.comps[id] = make(map[reflect.Type]any)
	return id
}

// Alive reports whether id names a live entity.
func (w *World) Alive(id EntityID) bool {
	_, ok := w.index[id]
	return ok
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return len(w.index)
}

// All returns the live entities in spawn order.
func (w *World) All() []EntityID {
	out := make([]EntityID, 0, len(w.index))
	for _, id := range w.order {
		if id != 0 {
			out = append(out, id)
		}
	}
	return out
}

// Despawn removes the entity, its components, and recursively all of its
// children. It detaches the entity from its parent first.
func (w *World) Despawn(id EntityID) error {
	if !w.Alive(id) {
		return fmt.Errorf("despawn %d: %w", id, ErrEntityNotFound)
	}
	w.detach(id)
	w.despawnTree(id)
	return nil
}

func (w *World) despawnTree(id EntityID) {
	for _, child := range w.children[id] {
		w.despawnTree(child)
	}
	delete(w.children, id)
	delete(w.parents, id)
	delete(w.comps, id)
	if pos, ok := w.index[id]; ok {
		w.order[pos] = 0
		delete(w.index, id)
	}
}

// detach removes id from its parent's child list, if any.
func (w *World) detach(id EntityID) {
	parent, ok := w.parents[id]
	if !ok {
		return
	}
	siblings := w.children[parent]
	for i, c := range siblings {
		if c == id {
			w.children[parent] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	delete(w.parents, id)
}

// InsertRaw attaches the component pointed to by ptr under type t. The
// pointer is stored as given; mutations through it remain visible.
func (w *World) InsertRaw(id EntityID, t reflect.Type, ptr any) error {
	if !w.Alive(id) {
		return fmt.Errorf("insert %s on %d: %w", t, id, ErrEntityNotFound)
	}
	rv := reflect.ValueOf(ptr)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Type().Elem() != t {
		return fmt.Errorf("insert %s on %d: %w", t, id, ErrBadComponent)
	}
	w.comps[id][t] = ptr
	return nil
}

// GetRaw returns the stored component pointer for type t.
func (w *World) GetRaw(id EntityID, t reflect.Type) (any, bool) {
	set, ok := w.comps[id]
	if !ok {
		return nil, false
	}
	ptr, ok := set[t]
	return ptr, ok
}

// HasType reports whether the entity carries a component of type t.
func (w *World) HasType(id EntityID, t reflect.Type) bool {
	_, ok := w.GetRaw(id, t)
	return ok
}

// RemoveRaw detaches the component of type t, reporting whether it existed.
func (w *World) RemoveRaw(id EntityID, t reflect.Type) bool {
	set, ok := w.comps[id]
	if !ok {
		return false
	}
	if _, ok := set[t]; !ok {
		return false
	}
	delete(set, t)
	return true
}

// Types returns the component types attached to the entity. Order is
// unspecified.
func (w *World) Types(id EntityID) []reflect.Type {
	set, ok := w.comps[id]
	if !ok {
		return nil
	}
	out := make([]reflect.Type, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return out
}

// SetResourceRaw installs the resource pointed to by ptr under type t,
// replacing any previous value.
func (w *World) SetResourceRaw(t reflect.Type, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Type().Elem() != t {
		return fmt.Errorf("set resource %s: %w", t, ErrBadComponent)
	}
	w.resources[t] = ptr
	return nil
}

// ResourceRaw returns the stored resource pointer for type t.
func (w *World) ResourceRaw(t reflect.Type) (any, bool) {
	ptr, ok := w.resources[t]
	return ptr, ok
}
