package coreact

import "github.com/gammazero/deque"

// semaWaiter is a task parked on a sema. ready is set by the release
// that hands the permit over, so a resume for any other reason sends
// the task back to sleep.
type semaWaiter struct {
	task  *Task
	ready bool
}

// sema is a counting semaphore for tasks sharing the executor thread.
// Released permits go straight to the longest waiting task.
type sema struct {
	noCopy noCopy                   // Prevents copying of the semaphore
	v      uint32                   // Available permits
	w      deque.Deque[*semaWaiter] // Waiting tasks in arrival order
}

// acquire takes a permit, suspending task until one is handed to it.
func (s *sema) acquire(task *Task) {
	if s.v > 0 {
		s.v--
		return
	}

	waiter := &semaWaiter{task: task}
	s.w.PushBack(waiter)

	for !waiter.ready {
		task.Suspend()
	}
}

// release hands a permit to the first waiter, or stores it when no
// task is waiting. The waiter is resumed through the executor's local
// queue.
func (s *sema) release() {
	if s.w.Len() == 0 {
		s.v++
		return
	}

	waiter := s.w.PopFront()
	waiter.ready = true
	waiter.task.sched.ready(waiter.task)
}

// waiting returns the number of parked tasks.
func (s *sema) waiting() int {
	return s.w.Len()
}
