// Package generic holds small type-parameterized utilities with no domain
// knowledge of their own.
package generic

import (
	"bytes"
	"sync"
)

// Pool is a typed wrapper around sync.Pool. Values handed back via Put are
// reused by later Get calls; callers reset state themselves.
type Pool[T any] struct {
	pool sync.Pool
}

// NewPool returns a pool that builds missing values with generate.
func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewHotPool returns a pool pre-filled with hotSize values.
func NewHotPool[T any](generate func() T, hotSize int) *Pool[T] {
	p := NewPool[T](generate)
	for i := 0; i < hotSize; i++ {
		p.pool.Put(generate())
	}
	return p
}

// NewBufferPool returns a pool of byte buffers for payload assembly.
func NewBufferPool() *Pool[*bytes.Buffer] {
	return NewPool(func() *bytes.Buffer { return new(bytes.Buffer) })
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	p.pool.Put(value)
}
