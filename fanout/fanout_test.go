package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_PanicsOnNonPositiveMax(t *testing.T) {
	assert.Panics(t, func() { New(0) })
	assert.Panics(t, func() { New(-1) })
}

func TestRun_AllTasksExecute(t *testing.T) {
	l := New(4)

	var ran atomic.Int32
	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = func(i int) error {
			ran.Add(1)
			return nil
		}
	}

	err := l.Run(context.Background(), tasks)
	assert.NoError(t, err)
	assert.EqualValues(t, 10, ran.Load())
}

func TestRun_BoundsConcurrency(t *testing.T) {
	l := New(2)

	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)

	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(i int) error {
			n := inFlight.Add(1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}
	}

	assert.NoError(t, l.Run(context.Background(), tasks))
	assert.LessOrEqual(t, int(maxSeen.Load()), 2)
}

func TestRun_JoinsErrorsFromEveryTask(t *testing.T) {
	l := New(4)

	errA := errors.New("server a unreachable")
	errB := errors.New("server b unreachable")

	tasks := []Task{
		func(i int) error { return errA },
		func(i int) error { return nil },
		func(i int) error { return errB },
	}

	err := l.Run(context.Background(), tasks)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errA))
	assert.True(t, errors.Is(err, errB))
}

func TestRun_AcquireTimeoutSurfacesAsError(t *testing.T) {
	l := New(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// The first task holds the only slot until well after ctx expires, so
	// the second task's acquire fails; Run returns once the first task ends.
	blocker := make(chan struct{})
	time.AfterFunc(100*time.Millisecond, func() { close(blocker) })
	tasks := []Task{
		func(i int) error {
			<-blocker
			return nil
		},
		func(i int) error {
			return nil
		},
	}

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, tasks) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrAcquireTimeout)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context deadline")
	}
}

func TestMax(t *testing.T) {
	l := New(7)
	assert.Equal(t, 7, l.Max())
}
