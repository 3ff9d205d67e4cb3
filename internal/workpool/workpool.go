// Package workpool provides a bounded worker pool with fork-join scopes.
//
// One Pool is built per run and passed to every stage. A Scope blocks its
// caller until every task spawned in it has finished, and returns all task
// errors joined into one. Tasks run to completion; they must not open scopes
// of their own, since a task waiting on the pool it occupies can starve it.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 8

// Pool bounds how many tasks run at once across all scopes.
type Pool struct {
	size int
	sem  *semaphore.Weighted
}

// New creates a pool running at most workers tasks at once. Values below 1
// mean DefaultWorkers.
func New(workers int) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Pool{size: workers, sem: semaphore.NewWeighted(int64(workers))}
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Scope collects the tasks of one fork-join region.
type Scope struct {
	ctx  context.Context
	pool *Pool
	wg   sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// Scope runs fn, which spawns tasks with s.Go, then waits for all of them.
// The returned error joins every task error, or is nil.
func (p *Pool) Scope(ctx context.Context, fn func(s *Scope)) error {
	s := &Scope{ctx: ctx, pool: p}
	fn(s)
	s.wg.Wait()
	return errors.Join(s.errs...)
}

// Go starts task once a worker is free. It blocks the spawning goroutine
// while the pool is saturated. If ctx is done before a worker frees up, the
// task is not run and the context error is recorded.
func (s *Scope) Go(task func(ctx context.Context) error) {
	if err := s.pool.sem.Acquire(s.ctx, 1); err != nil {
		s.record(err)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.pool.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				s.record(fmt.Errorf("task panicked: %v", r))
			}
		}()
		if err := task(s.ctx); err != nil {
			s.record(err)
		}
	}()
}

func (s *Scope) record(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

// Map runs fn for every index in [0, n) on the pool and returns the results
// in index order. Each task writes only its own slot.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	err := p.Scope(ctx, func(s *Scope) {
		for i := 0; i < n; i++ {
			s.Go(func(ctx context.Context) error {
				v, err := fn(ctx, i)
				if err != nil {
					return err
				}
				out[i] = v
				return nil
			})
		}
	})
	return out, err
}
