package ecs

import "reflect"

// CompType returns the reflect.Type key used for component type T.
func CompType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Insert attaches a copy of v to the entity as its T component.
func Insert[T any](w *World, id EntityID, v T) error {
	return w.InsertRaw(id, CompType[T](), &v)
}

// Get returns the entity's T component. The pointer aliases world storage.
func Get[T any](w *World, id EntityID) (*T, bool) {
	ptr, ok := w.GetRaw(id, CompType[T]())
	if !ok {
		return nil, false
	}
	return ptr.(*T), true
}

// Has reports whether the entity carries a T component.
func Has[T any](w *World, id EntityID) bool {
	return w.HasType(id, CompType[T]())
}

// Remove detaches the entity's T component, reporting whether it existed.
func Remove[T any](w *World, id EntityID) bool {
	return w.RemoveRaw(id, CompType[T]())
}

// SetResource installs a copy of v as the world's T resource.
func SetResource[T any](w *World, v T) {
	_ = w.SetResourceRaw(CompType[T](), &v)
}

// Resource returns the world's T resource. The pointer aliases world storage.
func Resource[T any](w *World) (*T, bool) {
	ptr, ok := w.ResourceRaw(CompType[T]())
	if !ok {
		return nil, false
	}
	return ptr.(*T), true
}
