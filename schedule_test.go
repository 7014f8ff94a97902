package coreact

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTask(t *testing.T) {
	r := require.New(t)

	n := 0
	sched := NewSchedule()
	sched.Spawn(func(_ context.Context, task *Task) {
		var wg WaitGroup
		for i := 0; i < 10; i++ {
			for j := 0; j < 10; j++ {
				wg.Add(1)
				task.Spawn(func(_ context.Context, task *Task) {
					defer wg.Done()
					task.Yield()
					task.Yield()
					task.Yield()
					task.Yield()
					n++
				})
			}
		}
		wg.Wait(task)
		sched.Close()
	})

	sched.Run(context.Background())

	r.Equal(100, n)
	r.Equal(0, sched.Live())
}

func TestYieldInterleaves(t *testing.T) {
	r := require.New(t)

	var trace []string
	sched := NewSchedule()
	sched.Spawn(func(_ context.Context, task *Task) {
		var wg WaitGroup
		for _, name := range []string{"a", "b"} {
			wg.Add(1)
			task.Spawn(func(_ context.Context, task *Task) {
				defer wg.Done()
				for i := 1; i <= 3; i++ {
					trace = append(trace, fmt.Sprintf("%s%d", name, i))
					task.Yield()
				}
			})
		}
		wg.Wait(task)
		sched.Close()
	})

	sched.Run(context.Background())

	r.Equal([]string{"a1", "b1", "a2", "b2", "a3", "b3"}, trace)
}

func TestWakerFromAnotherGoroutine(t *testing.T) {
	r := require.New(t)

	metrics := NewMetrics(prometheus.NewRegistry())
	sched := NewSchedule(WithMetrics(metrics))
	wakers := make(chan Waker, 1)

	go func() {
		w := <-wakers
		w.Wake()
		w.Wake()
	}()

	resumed := 0
	sched.Spawn(func(_ context.Context, task *Task) {
		wakers <- task.Waker()
		task.Suspend()
		resumed++
		sched.Close()
	})

	sched.Run(context.Background())

	r.Equal(1, resumed)
	r.Equal(float64(2), testutil.ToFloat64(metrics.resumes))
	r.Equal(float64(1), testutil.ToFloat64(metrics.tasksSpawned))
	r.Equal(float64(0), testutil.ToFloat64(metrics.tasksLive))
}

func TestRunStopsOnContext(t *testing.T) {
	r := require.New(t)

	sched := NewSchedule()
	sched.Spawn(func(_ context.Context, task *Task) {
		task.Suspend()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sched.Run(ctx)

	r.Equal(0, sched.Live())

	// Spawning after the queue is closed must not block.
	sched.Spawn(func(context.Context, *Task) {})
}

func TestRunStepsReadyTasksBeforeStopping(t *testing.T) {
	r := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := 0
	sched := NewSchedule()
	sched.Spawn(func(_ context.Context, task *Task) {
		cancel()
		for i := 0; i < 3; i++ {
			task.Spawn(func(_ context.Context, task *Task) {
				started++
				task.Suspend()
			})
		}
		task.Suspend()
	})

	sched.Run(ctx)

	r.Equal(3, started)
	r.Equal(0, sched.Live())
}

func TestTaskContext(t *testing.T) {
	r := require.New(t)

	sched := NewSchedule()
	sched.Spawn(func(ctx context.Context, task *Task) {
		found, ok := TaskFromContext(ctx)
		r.True(ok)
		r.Same(task, found)
		r.Same(task, MustTaskFromContext(task.Context()))
		r.NotZero(task.ID())
		sched.Close()
	})

	sched.Run(context.Background())

	_, ok := TaskFromContext(context.Background())
	r.False(ok)
	r.Panics(func() { MustTaskFromContext(context.Background()) })
}

func TestMutex(t *testing.T) {
	r := require.New(t)

	n := 0
	sched := NewSchedule()
	sched.Spawn(func(_ context.Context, task *Task) {
		var mux Mutex
		var wg WaitGroup
		critical := 0

		mux.Lock(task)

		for _, name := range []string{"ONE", "TWO", "THREE"} {
			wg.Add(1)
			task.Spawn(func(_ context.Context, task *Task) {
				defer wg.Done()

				mux.Lock(task)
				defer mux.Unlock()

				n++
				critical++
				r.Equal(1, critical, name)
				task.Yield()
				critical--
			})
		}

		task.Yield()
		r.Equal(3, mux.WaitCount())

		mux.Unlock()
		n++

		wg.Wait(task)
		r.Equal(0, mux.WaitCount())
		sched.Close()
	})

	sched.Run(context.Background())

	r.Equal(4, n)
}

func TestMutexUnlockUnlocked(t *testing.T) {
	var mux Mutex
	require.Panics(t, mux.Unlock)
}

func TestWaitGroup(t *testing.T) {
	r := require.New(t)

	expect, n := 100, 0
	sched := NewSchedule()
	sched.Spawn(func(_ context.Context, task *Task) {
		var wg WaitGroup

		for i := 0; i < expect-1; i++ {
			wg.Add(1)
			task.Spawn(func(_ context.Context, task *Task) {
				defer wg.Done()
				for j := 0; j < i%3; j++ {
					task.Yield()
				}
				n++
			})
		}

		wg.Wait(task)
		n++

		// Waiting on a zero counter returns immediately.
		wg.Wait(task)
		sched.Close()
	})

	sched.Run(context.Background())

	r.Equal(expect, n)
}

func TestWaitGroupNegative(t *testing.T) {
	var wg WaitGroup
	require.Panics(t, wg.Done)
}

func TestPanic(t *testing.T) {
	r := require.New(t)

	err := fmt.Errorf("UH OH")

	sched := NewSchedule()
	sched.Spawn(func(_ context.Context, task *Task) {
		task.Spawn(func(_ context.Context, task *Task) {
			task.Yield()
			panic(err)
		})
	})

	defer func() {
		p := recover()
		r.NotNil(p)
		r.Contains(fmt.Sprint(p), err.Error())
	}()

	sched.Run(context.Background())
}
