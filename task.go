package coreact

import (
	"context"
	"fmt"
	"runtime/trace"
	"strings"
	"sync/atomic"

	"github.com/webriots/coro"
)

const (
	taskTraceTaskType   = "coreact-executor"
	taskTraceRegionType = "coreact-task"
	taskTraceCategory   = "coreact"
)

// Func is the computation run by a Task. It executes on the executor
// thread and may suspend only through the task it receives.
type Func func(ctx context.Context, task *Task)

// Waker re-enqueues a suspended task. Wake may be called from any
// goroutine, any number of times.
type Waker interface {
	Wake()
}

// WakerFunc adapts an ordinary function to the Waker interface.
type WakerFunc func()

// Wake calls f.
func (f WakerFunc) Wake() { f() }

// Task is a schedulable cell wrapping one resumable computation and
// the capability to put it back on its schedule's run queue.
type Task struct {
	id      uint64
	ctx     context.Context
	sched   *Schedule
	resume  func(struct{}) (struct{}, bool)
	cancel  func()
	suspend func() struct{}
	queued  atomic.Bool // set while the task sits in a run queue
	done    bool        // executor thread only
}

func newTask(sched *Schedule, fn Func) *Task {
	task := &Task{
		id:    sched.nextID.Add(1),
		sched: sched,
	}

	task.ctx = withTaskContext(sched.ctx, task)

	resume, cancel := coro.New(
		func(_ func(struct{}) struct{}, suspend func() struct{}) (z struct{}) {
			region := trace.StartRegion(task.ctx, taskTraceRegionType)
			defer region.End()

			task.suspend = suspend

			fn(task.ctx, task)

			return
		},
	)

	task.resume = resume
	task.cancel = cancel
	return task
}

// ID returns the task's identifier, unique within its schedule.
func (t *Task) ID() uint64 {
	return t.id
}

// Context returns the context passed to the task's computation.
func (t *Task) Context() context.Context {
	return t.ctx
}

// Waker returns the continuation that re-enqueues t. It is safe to
// hand to another goroutine such as the reactor thread.
func (t *Task) Waker() Waker {
	return taskWaker{t}
}

// Suspend pauses the computation until the task is resumed by the
// executor. A suspended task is resumed only after something woke it,
// so callers must arrange a wake (usually a reactor registration)
// before suspending. Callers must also tolerate a resume for which
// their own condition is not yet satisfied.
func (t *Task) Suspend() {
	t.Log("SUSPEND")
	t.suspend()
}

// Yield puts t at the back of the run queue and suspends it, letting
// other ready tasks run first.
func (t *Task) Yield() {
	t.Log("YIELD")
	t.sched.ready(t)
	t.suspend()
}

// Spawn starts fn as a new task on t's schedule. Unlike
// Schedule.Spawn it never blocks, which makes it the right call from
// inside a running task.
func (t *Task) Spawn(fn Func) *Task {
	task := t.sched.track(newTask(t.sched, fn))
	task.Log("SPAWN")
	t.sched.ready(task)
	return task
}

// step resumes the task once and reports whether it finished.
func (t *Task) step() bool {
	if t.done {
		return true
	}

	t.Log("RESUME")

	// A panicking computation is finished too; done is cleared only
	// when the coroutine reports it suspended.
	t.done = true
	if _, ok := t.resume(struct{}{}); ok {
		t.done = false
		return false
	}

	t.Log("DONE")
	return true
}

// Log emits msg as a runtime/trace log event when tracing is enabled.
func (t *Task) Log(msg string) {
	if trace.IsEnabled() {
		var sb strings.Builder
		fmt.Fprintf(&sb, "task %d ", t.id)
		sb.WriteString(msg)
		trace.Log(t.ctx, taskTraceCategory, sb.String())
	}
}

// Logf is like Log but formats its arguments with fmt.
func (t *Task) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		var sb strings.Builder
		fmt.Fprintf(&sb, "task %d ", t.id)
		fmt.Fprintf(&sb, format, args...)
		trace.Log(t.ctx, taskTraceCategory, sb.String())
	}
}

type taskWaker struct {
	t *Task
}

func (w taskWaker) Wake() {
	w.t.sched.schedule(w.t)
}
