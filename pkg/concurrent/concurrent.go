// Package concurrent runs an action over every element of a sequence
// iterator with one goroutine per element or a bounded worker set. The
// save-slot verifier fans integrity checks out through it.
package concurrent

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/worldlens/pkg/sequence"
)

// Concurrent runs action for each element of the iterator in a separate
// goroutine and waits for all of them. The first error encountered is
// returned; the remaining goroutines still run to completion.
func Concurrent[T any](i *sequence.Iterator[T], action func(T) error) error {
	errGroup := errgroup.Group{}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		errGroup.Go(func() error {
			return action(value)
		})
	}

	return errGroup.Wait()
}

// Limited runs action like Concurrent but with at most workers goroutines
// in flight.
func Limited[T any](i *sequence.Iterator[T], workers int, action func(T) error) error {
	errGroup := errgroup.Group{}
	errGroup.SetLimit(workers)
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		errGroup.Go(func() error {
			return action(value)
		})
	}

	return errGroup.Wait()
}

// ParallelMap applies mapFn to each element in parallel, preserving input
// order in the result. The workers parameter bounds the goroutine count.
func ParallelMap[T any, R any](i *sequence.Iterator[T], workers int, mapFn func(T) R) []R {
	in := i.Collect()
	out := make([]R, len(in))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for idx, val := range in {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer wg.Done()
			out[i] = mapFn(v)
			<-sem
		}(idx, val)
	}
	wg.Wait()
	return out
}
