//go:build linux

package coreact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

// Reactor turns epoll readiness into task wakes. It runs its own loop
// on a dedicated OS thread (Run) and never touches application data:
// it only keeps the descriptor to Waker table and arms descriptors in
// epoll. Every registration is one-shot; once a descriptor fires its
// waker is consumed and the descriptor stays disarmed until the next
// Register.
type Reactor struct {
	noCopy  noCopy
	epfd    int
	event   int // eventfd used to wake the blocking wait
	mu      sync.Mutex
	wakers  map[int]Waker
	qmu     sync.Mutex
	queue   *queue.Queue // pending commands
	started atomic.Bool
	closed  atomic.Bool
	stopped chan struct{}
	max     int
	log     *slog.Logger
	metrics *Metrics
}

// NewReactor creates the epoll instance and its wake eventfd. Run
// must be called, usually on its own goroutine, before registrations
// take effect.
func NewReactor(opts ...Option) (*Reactor, error) {
	o := newOptions(opts)

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("coreact: epoll create: %w", err)
	}

	event, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, fmt.Errorf("coreact: eventfd: %w", err)
	}

	return &Reactor{
		epfd:    epfd,
		event:   event,
		wakers:  make(map[int]Waker),
		queue:   queue.New(),
		stopped: make(chan struct{}),
		max:     o.maxEvents,
		log:     o.logger,
		metrics: o.metrics,
	}, nil
}

// Register asks the reactor to wake w once fd is ready for interest.
// It queues the request and returns immediately; registering a
// descriptor that is already known re-arms it. fd must be in
// non-blocking mode.
func (r *Reactor) Register(interest Interest, fd int, w Waker) {
	r.submit(command{op: opRegister, fd: fd, interest: interest, waker: w})
}

// Unregister drops any pending registration for fd and removes it
// from epoll. Like Register it is asynchronous.
func (r *Reactor) Unregister(fd int) {
	r.submit(command{op: opUnregister, fd: fd})
}

// Len returns the number of descriptors with a pending registration.
func (r *Reactor) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wakers)
}

// Registered reports whether fd has a pending registration.
func (r *Reactor) Registered(fd int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.wakers[fd]
	return ok
}

// Run is the reactor loop. It blocks without a timeout, relying on the
// eventfd to observe new commands, and returns nil after Close or an
// error if waiting fails. Run after Close returns nil at once.
func (r *Reactor) Run() error {
	if !r.started.CompareAndSwap(false, true) {
		if r.closed.Load() {
			return nil
		}
		return errors.New("coreact: reactor already started")
	}
	defer close(r.stopped)
	defer r.release()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r.event)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, r.event, &ev); err != nil {
		return fmt.Errorf("coreact: epoll ctl eventfd: %w", err)
	}

	r.log.Debug("reactor started", "epfd", r.epfd, "eventfd", r.event)

	events := make([]unix.EpollEvent, r.max)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("coreact: epoll wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd != r.event {
				r.dispatch(fd)
				continue
			}

			r.drain()
			if r.closed.Load() {
				r.log.Debug("reactor stopped")
				return nil
			}
			r.apply()
		}
	}
}

// Close stops the loop and releases the epoll instance and eventfd.
// Pending registrations are dropped without waking their tasks.
func (r *Reactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	if r.started.CompareAndSwap(false, true) {
		r.release()
		close(r.stopped)
		return nil
	}

	r.qmu.Lock()
	if r.event >= 0 {
		r.wake()
	}
	r.qmu.Unlock()

	<-r.stopped
	return nil
}

func (r *Reactor) submit(c command) {
	r.qmu.Lock()
	defer r.qmu.Unlock()

	if r.event < 0 {
		return
	}

	r.queue.Add(c)
	r.wake()
}

// wake bumps the eventfd counter. Callers hold qmu.
func (r *Reactor) wake() {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)

	if _, err := unix.Write(r.event, buf[:]); err != nil && err != unix.EAGAIN {
		panic(fmt.Sprintf("coreact: eventfd write: %v", err))
	}
}

// drain resets the eventfd counter so the level-triggered wait does
// not report it again.
func (r *Reactor) drain() {
	var buf [8]byte
	_, _ = unix.Read(r.event, buf[:])
}

// apply runs every queued command in submission order.
func (r *Reactor) apply() {
	r.qmu.Lock()
	cmds := make([]command, 0, r.queue.Length())
	for r.queue.Length() > 0 {
		cmds = append(cmds, r.queue.Remove().(command))
	}
	r.qmu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range cmds {
		switch c.op {
		case opRegister:
			r.arm(c)
		case opUnregister:
			r.disarm(c.fd)
		}
		r.metrics.IncCommand(c.op.String())
	}

	r.metrics.SetRegistrations(len(r.wakers))
}

// arm adds fd to epoll with one-shot interest, or re-arms it when
// epoll already knows it. Callers hold mu.
func (r *Reactor) arm(c command) {
	ev := unix.EpollEvent{Events: c.interest.epoll() | unix.EPOLLONESHOT, Fd: int32(c.fd)}

	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, c.fd, &ev)
	if errors.Is(err, unix.EEXIST) {
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, c.fd, &ev)
	}

	switch {
	case err == nil:
	case errors.Is(err, unix.EBADF):
		// The owner closed fd before this command was applied; its
		// unregister command is queued behind this one.
		r.log.Debug("reactor register on closed descriptor", "fd", c.fd)
		return
	default:
		panic(fmt.Sprintf("coreact: epoll ctl fd %d: %v", c.fd, err))
	}

	if _, ok := r.wakers[c.fd]; ok {
		r.log.Debug("reactor re-arm replaces pending registration", "fd", c.fd)
	}
	r.wakers[c.fd] = c.waker
}

// disarm removes fd from epoll and the table. Callers hold mu.
func (r *Reactor) disarm(fd int) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	delete(r.wakers, fd)
}

func (r *Reactor) dispatch(fd int) {
	r.mu.Lock()
	w, ok := r.wakers[fd]
	if ok {
		delete(r.wakers, fd)
	}
	n := len(r.wakers)
	r.mu.Unlock()

	if !ok {
		return
	}

	r.metrics.IncDispatches()
	r.metrics.SetRegistrations(n)
	w.Wake()
}

func (r *Reactor) release() {
	r.qmu.Lock()
	defer r.qmu.Unlock()

	if r.event < 0 {
		return
	}

	_ = unix.Close(r.event)
	_ = unix.Close(r.epfd)
	r.event, r.epfd = -1, -1
}

func (i Interest) epoll() uint32 {
	var events uint32
	if i&InterestRead != 0 {
		events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if i&InterestWrite != 0 {
		events |= unix.EPOLLOUT
	}
	return events
}
