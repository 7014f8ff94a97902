// Package coreact provides a cooperative, single-worker task runtime
// driven by an epoll readiness reactor. It is designed to serve many
// concurrent line-oriented TCP connections from one worker thread
// without dedicating a thread to each connection.
//
// Key components:
//
//   - Task: a coroutine-backed unit of work. A task runs until it
//     reaches a suspend point and is resumed later by its Waker.
//
//   - Schedule: the run queue and executor. Spawn enqueues new tasks
//     from any goroutine; Run resumes ready tasks one at a time on a
//     single locked OS thread.
//
//   - Reactor: owns the epoll instance and runs its own loop on a
//     dedicated thread. Descriptor interest is registered through a
//     command queue and an eventfd wake, and every registration is
//     one-shot: it fires once and must be re-armed.
//
//   - Listener and Conn: non-blocking TCP accept and line reads. Each
//     exposes exactly one suspend point (Accept, ReadLine) that either
//     completes immediately or registers with the Reactor and
//     suspends.
//
//   - Server and Echo: the accept loop and the per-connection echo
//     protocol composed from the pieces above.
//
//   - Synchronization primitives: Mutex and WaitGroup for tasks
//     sharing the executor thread.
package coreact
