package coreact

// WaitGroup waits for a collection of tasks to finish. Tasks call
// Add(1) when they start and Done when they finish; Wait suspends the
// calling task until the counter drops to zero.
type WaitGroup struct {
	noCopy noCopy // Prevents copying of the WaitGroup
	v      int32  // Counter for outstanding tasks
	sema   sema   // Tasks blocked in Wait
}

// Add adds delta to the counter. When it reaches zero every waiting
// task is scheduled to resume. A negative counter panics.
func (wg *WaitGroup) Add(delta int) {
	wg.v += int32(delta)

	if wg.v < 0 {
		panic("coreact: negative WaitGroup counter")
	}

	if wg.v > 0 {
		return
	}

	for wg.sema.waiting() > 0 {
		wg.sema.release()
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Wait suspends task until the counter is zero. It returns at once if
// the counter is already zero.
func (wg *WaitGroup) Wait(task *Task) {
	if wg.v == 0 {
		return
	}

	wg.sema.acquire(task)
}
