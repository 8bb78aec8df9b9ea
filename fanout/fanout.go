// Package fanout bounds the number of goroutines a single GetMulti or Stats
// call may have in flight at once. Earlier designs pooled multiple
// connections per server address and used a semaphore to cap how many of
// those connections could be checked out at a time; this protocol keeps
// exactly one connection per server endpoint, so there is nothing left to
// pool. The semaphore-gated-acquire shape survives anyway: it now bounds how
// many per-server goroutines a fan-out call may have running concurrently,
// which matters once a server list runs into the hundreds and every GetMulti
// or Stats call would otherwise spawn one goroutine per server
// unconditionally.
package fanout

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrAcquireTimeout is joined into Run's returned error once for every task
// that could not acquire a worker slot before ctx was done; such a task is
// not run.
var ErrAcquireTimeout = errors.New("fanout: timed out waiting for a free worker slot")

// Task is one unit of fan-out work, given the index it was scheduled at.
type Task func(i int) error

// Limiter bounds the number of concurrently running Tasks across calls to
// Run. A zero-value Limiter is not usable; construct one with New.
type Limiter struct {
	sem *semaphore.Weighted
	max int64
}

// New returns a Limiter that allows at most max concurrently running Tasks.
// It panics if max is not positive, mirroring the teacher pool's refusal to
// construct a zero-capacity pool.
func New(max int) *Limiter {
	if max <= 0 {
		panic("fanout: invalid max concurrency")
	}
	return &Limiter{
		sem: semaphore.NewWeighted(int64(max)),
		max: int64(max),
	}
}

// Max returns the configured concurrency bound.
func (l *Limiter) Max() int {
	return int(l.max)
}

// Run fans tasks[i] out across at most l.Max() goroutines and blocks until
// every task has returned (or failed to acquire a slot before ctx was
// done). Errors from every task, including acquire failures, are joined and
// returned together so a caller can see every server that failed, not just
// the first.
func (l *Limiter) Run(ctx context.Context, tasks []Task) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)

	addErr := func(err error) {
		mu.Lock()
		errs = errors.Join(errs, err)
		mu.Unlock()
	}

	for i, task := range tasks {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			addErr(ErrAcquireTimeout)
			continue
		}

		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			defer l.sem.Release(1)
			if err := task(i); err != nil {
				addErr(err)
			}
		}(i, task)
	}

	wg.Wait()
	return errs
}
