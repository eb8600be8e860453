package ecs

import "fmt"

// SetParent links child under parent, appending it to the parent's child
// list. A child already parented elsewhere is moved. Parenting an entity
// under itself or under one of its own descendants fails with
// ErrHierarchyCycle, so the hierarchy is always a forest and traversals
// terminate.
func (w *World) SetParent(child, parent EntityID) error {
	if !w.Alive(child) {
		return fmt.Errorf("set parent of %d: %w", child, ErrEntityNotFound)
	}
	if !w.Alive(parent) {
		return fmt.Errorf("set parent %d: %w", parent, ErrEntityNotFound)
	}
	if child == parent || w.isAncestor(child, parent) {
		return fmt.Errorf("set parent of %d to %d: %w", child, parent, ErrHierarchyCycle)
	}
	w.detach(child)
	w.parents[child] = parent
	w.children[parent] = append(w.children[parent], child)
	return nil
}

// Parent returns the entity's parent, if it has one.
func (w *World) Parent(id EntityID) (EntityID, bool) {
	p, ok := w.parents[id]
	return p, ok
}

// Children returns the entity's children in attachment order.
func (w *World) Children(id EntityID) []EntityID {
	kids := w.children[id]
	if len(kids) == 0 {
		return nil
	}
	out := make([]EntityID, len(kids))
	copy(out, kids)
	return out
}

// isAncestor reports whether a is an ancestor of b.
func (w *World) isAncestor(a, b EntityID) bool {
	for {
		p, ok := w.parents[b]
		if !ok {
			return false
		}
		if p == a {
			return true
		}
		b = p
	}
}
