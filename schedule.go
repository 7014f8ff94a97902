package coreact

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/trace"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

const (
	// ScheduleQueueCapacity is the default capacity of the run queue
	// inbox shared by producers outside the executor thread.
	ScheduleQueueCapacity = 1024
)

// Schedule is the run queue, spawner and executor of the runtime.
// Producers on any goroutine hand ready tasks to a bounded inbox; the
// executor moves them to a local FIFO and resumes them one at a time.
type Schedule struct {
	noCopy  noCopy
	ctx     context.Context
	inbox   chan *Task         // ready tasks from other goroutines
	local   deque.Deque[*Task] // ready tasks, executor thread only
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	live    map[*Task]struct{}
	nextID  atomic.Uint64
	log     *slog.Logger
	metrics *Metrics
}

// NewSchedule creates a schedule. Options that do not apply to a
// schedule are ignored.
func NewSchedule(opts ...Option) *Schedule {
	o := newOptions(opts)
	return &Schedule{
		ctx:     context.Background(),
		inbox:   make(chan *Task, o.queueCapacity),
		closed:  make(chan struct{}),
		live:    make(map[*Task]struct{}),
		log:     o.logger,
		metrics: o.metrics,
	}
}

// Spawn wraps fn in a new task and enqueues it. It may be called from
// any goroutine and blocks only while the run queue is full. Code
// running inside a task should use Task.Spawn instead.
func (s *Schedule) Spawn(fn Func) *Task {
	task := s.track(newTask(s, fn))
	task.Log("SPAWN")
	s.schedule(task)
	return task
}

// Run is the executor loop. It locks the calling goroutine to its OS
// thread and resumes ready tasks until Close is called or ctx is done.
// Tasks still alive when Run returns are cancelled so their deferred
// cleanup runs.
func (s *Schedule) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctx, tracer := trace.NewTask(ctx, taskTraceTaskType)
	defer tracer.End()

	defer s.cancelLive()

	trace.Log(ctx, taskTraceCategory, "RUN")

	for {
		if s.local.Len() == 0 {
			select {
			case task := <-s.inbox:
				s.local.PushBack(task)
			case <-s.closed:
				trace.Log(ctx, taskTraceCategory, "RUN CLOSED")
				return
			case <-ctx.Done():
				trace.Log(ctx, taskTraceCategory, "RUN DONE")
				s.Close()
				return
			}
		}

		s.drain()
		s.step(s.local.PopFront())
	}
}

// Close permanently closes the run queue. Wakes after Close are
// dropped and Run returns.
func (s *Schedule) Close() {
	s.once.Do(func() { close(s.closed) })
}

// Live returns the number of spawned tasks that have not finished.
func (s *Schedule) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// drain moves everything currently in the inbox to the local queue,
// preserving arrival order.
func (s *Schedule) drain() {
	for n := len(s.inbox); n > 0; n-- {
		select {
		case task := <-s.inbox:
			s.local.PushBack(task)
		default:
			return
		}
	}
}

func (s *Schedule) step(task *Task) {
	task.queued.Store(false)

	if task.done {
		return
	}

	s.metrics.IncResumes()

	if task.step() {
		s.untrack(task)
	}
}

// schedule enqueues task from any goroutine. A task already waiting
// in a run queue is not enqueued twice.
func (s *Schedule) schedule(task *Task) {
	if !task.queued.CompareAndSwap(false, true) {
		return
	}

	select {
	case s.inbox <- task:
	case <-s.closed:
	}
}

// ready enqueues task from the executor thread without blocking.
func (s *Schedule) ready(task *Task) {
	if !task.queued.CompareAndSwap(false, true) {
		return
	}
	s.local.PushBack(task)
}

func (s *Schedule) track(task *Task) *Task {
	s.mu.Lock()
	s.live[task] = struct{}{}
	s.mu.Unlock()

	s.metrics.IncTasksSpawned()
	return task
}

func (s *Schedule) untrack(task *Task) {
	s.mu.Lock()
	delete(s.live, task)
	s.mu.Unlock()

	s.metrics.DecTasksLive()
}

func (s *Schedule) cancelLive() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.live))
	for task := range s.live {
		tasks = append(tasks, task)
	}
	s.live = make(map[*Task]struct{})
	s.mu.Unlock()

	if len(tasks) > 0 {
		s.log.Debug("cancelling live tasks", "count", len(tasks))
	}

	for _, task := range tasks {
		s.metrics.DecTasksLive()
		if task.done {
			continue
		}
		task.Log("CANCEL")
		task.done = true
		task.cancel()
	}
}
