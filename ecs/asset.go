package ecs

import "reflect"

// Handle refers to an asset of type A by its path. An empty path is a
// pathless handle; serializing one fails.
type Handle[A any] struct {
	Path string
}

// AcquireHandle returns a handle for the given path. The asset itself may be
// added before or after acquisition.
func AcquireHandle[A any](w *World, path string) Handle[A] {
	return Handle[A]{Path: path}
}

// AddAsset stores a copy of v under path and returns its handle. An existing
// asset at the same path is replaced.
func AddAsset[A any](w *World, path string, v A) Handle[A] {
	t := CompType[A]()
	store, ok := w.assets[t]
	if !ok {
		store = make(map[string]any)
		w.assets[t] = store
	}
	store[path] = &v
	return Handle[A]{Path: path}
}

// AssetOf resolves a handle to its stored asset.
func AssetOf[A any](w *World, h Handle[A]) (*A, bool) {
	store, ok := w.assets[CompType[A]()]
	if !ok {
		return nil, false
	}
	ptr, ok := store[h.Path]
	if !ok {
		return nil, false
	}
	return ptr.(*A), true
}

// AssetPaths returns the stored paths for asset type t. Order is unspecified.
func (w *World) AssetPaths(t reflect.Type) []string {
	store, ok := w.assets[t]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(store))
	for p := range store {
		out = append(out, p)
	}
	return out
}
