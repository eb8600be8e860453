package ecs

import "reflect"

// Filter selects entities by component presence and absence.
type Filter struct {
	with    []reflect.Type
	without []reflect.Type
}

// NewFilter returns a filter requiring every listed component type.
func NewFilter(with ...reflect.Type) Filter {
	return Filter{with: with}
}

// With returns a copy of the filter additionally requiring the listed types.
func (f Filter) With(types ...reflect.Type) Filter {
	out := f.clone()
	out.with = append(out.with, types...)
	return out
}

// Without returns a copy of the filter excluding entities carrying any of
// the listed types.
func (f Filter) Without(types ...reflect.Type) Filter {
	out := f.clone()
	out.without = append(out.without, types...)
	return out
}

func (f Filter) clone() Filter {
	return Filter{
		with:    append([]reflect.Type(nil), f.with...),
		without: append([]reflect.Type(nil), f.without...),
	}
}

// Match reports whether the entity satisfies the filter.
func (f Filter) Match(w *World, id EntityID) bool {
	if !w.Alive(id) {
		return false
	}
	for _, t := range f.with {
		if !w.HasType(id, t) {
			return false
		}
	}
	for _, t := range f.without {
		if w.HasType(id, t) {
			return false
		}
	}
	return true
}

// Entities returns all matching entities in world (spawn) order.
func (f Filter) Entities(w *World) []EntityID {
	var out []EntityID
	for _, id := range w.All() {
		if f.Match(w, id) {
			out = append(out, id)
		}
	}
	return out
}
