package coreact

import (
	"context"
)

// taskContextKey is a unique type used as a key for storing Task
// values in a context.
type taskContextKey struct{}

// withTaskContext returns a copy of ctx carrying task.
func withTaskContext(ctx context.Context, task *Task) context.Context {
	return context.WithValue(ctx, taskContextKey{}, task)
}

// TaskFromContext retrieves the Task running the computation that
// received ctx. The boolean reports whether a task was found.
func TaskFromContext(ctx context.Context) (*Task, bool) {
	val, ok := ctx.Value(taskContextKey{}).(*Task)
	return val, ok
}

// MustTaskFromContext is like TaskFromContext but panics when ctx
// does not carry a task.
func MustTaskFromContext(ctx context.Context) *Task {
	val, ok := TaskFromContext(ctx)
	if !ok {
		panic("coreact: task not found in context")
	}
	return val
}
