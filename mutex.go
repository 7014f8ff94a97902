package coreact

// Mutex provides mutual exclusion for tasks running on the same
// executor. A task that finds the mutex held is suspended until the
// holder unlocks it; ownership passes directly to the longest waiting
// task. The zero value is an unlocked mutex.
type Mutex struct {
	noCopy noCopy // Prevents copying of the mutex
	locked bool   // Whether some task holds the lock
	sema   sema   // Tasks waiting for the lock
}

// Lock acquires the mutex for task, suspending it while another task
// holds the lock.
func (m *Mutex) Lock(task *Task) {
	if !m.locked {
		m.locked = true
		return
	}

	m.sema.acquire(task)
}

// Unlock releases the mutex. If tasks are waiting, the first one
// becomes the holder and is scheduled to resume.
func (m *Mutex) Unlock() {
	if !m.locked {
		panic("coreact: unlock of unlocked mutex")
	}

	if m.sema.waiting() == 0 {
		m.locked = false
		return
	}

	m.sema.release()
}

// WaitCount returns the number of tasks waiting to acquire the mutex.
func (m *Mutex) WaitCount() int {
	return m.sema.waiting()
}
