// Package sequence provides a small chainable iterator over slices and
// maps. It backs the save-slot index bookkeeping and pairs with the
// concurrent package, whose helpers consume iterators.
package sequence

import (
	"iter"
	"sort"
)

// Iterator is a generic, immutable, chainable iterator for any type T.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From creates a new Iterator from a slice of T.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// FromMap creates a new Iterator over the values of data. Order follows map
// iteration and is unspecified.
func FromMap[T any, K comparable](data map[K]T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// Seq returns the underlying sequence function for the iterator.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Pull converts the iterator to pull style: next returns elements until
// valid is false, stop releases the iteration early.
func (i *Iterator[T]) Pull() (next func() (T, bool), stop func()) {
	return iter.Pull(i.Seq())
}

// Collect exhausts the iterator and returns a slice of all elements.
func (i *Iterator[T]) Collect() []T {
	var out []T
	i.seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Sort returns a new Iterator with elements sorted by the less function.
// The sort is stable.
func (i *Iterator[T]) Sort(less func(a, b T) bool) *Iterator[T] {
	data := i.Collect()
	sort.SliceStable(data, func(a, b int) bool {
		return less(data[a], data[b])
	})
	return From(data)
}

// Filter returns a new Iterator containing only elements that satisfy the
// predicate.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			i.seq(func(v T) bool {
				if pred(v) {
					return yield(v)
				}
				return true
			})
		},
	}
}

// Find returns the first element matching the predicate.
func (i *Iterator[T]) Find(pred func(T) bool) (T, bool) {
	var out T
	found := false
	i.seq(func(v T) bool {
		if pred(v) {
			out = v
			found = true
			return false
		}
		return true
	})
	return out, found
}

// Any reports whether any element matches the predicate.
func (i *Iterator[T]) Any(pred func(T) bool) bool {
	_, found := i.Find(pred)
	return found
}

// First returns the first element, or false if the iterator is empty.
func (i *Iterator[T]) First() (T, bool) {
	return i.Find(func(T) bool { return true })
}

// Count returns the number of elements in the iterator.
func (i *Iterator[T]) Count() int {
	count := 0
	i.seq(func(T) bool {
		count++
		return true
	})
	return count
}

// Distinct returns a new Iterator with duplicate elements removed. T must
// be usable as a map key.
func (i *Iterator[T]) Distinct() *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			seen := make(map[any]struct{})
			i.seq(func(v T) bool {
				key := any(v)
				if _, ok := seen[key]; ok {
					return true
				}
				seen[key] = struct{}{}
				return yield(v)
			})
		},
	}
}

// ToArray applies the callback to each element and returns the results.
// It transforms elements from type T to type S.
func ToArray[T any, S any](it *Iterator[T], callback func(T) S) []S {
	var arr []S
	it.seq(func(v T) bool {
		arr = append(arr, callback(v))
		return true
	})
	return arr
}

// ToMap builds a map from the iterator using key and value selectors.
func ToMap[T any, K comparable, V any](it *Iterator[T], keyFn func(T) K, valFn func(T) V) map[K]V {
	m := make(map[K]V)
	it.seq(func(v T) bool {
		m[keyFn(v)] = valFn(v)
		return true
	})
	return m
}
