//go:build linux

package coreact

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Listener is a non-blocking TCP listening socket whose Accept
// suspends the calling task instead of blocking the thread.
type Listener struct {
	fd           int
	addr         net.Addr
	reactor      *Reactor
	log          *slog.Logger
	metrics      *Metrics
	writeTimeout time.Duration
}

// Listen binds a non-blocking listening socket on address and
// attaches it to r.
func Listen(r *Reactor, address string, opts ...Option) (*Listener, error) {
	o := newOptions(opts)

	fd, addr, err := newSocket(address)
	if err != nil {
		return nil, err
	}

	return &Listener{
		fd:           fd,
		addr:         addr,
		reactor:      r,
		log:          o.logger,
		metrics:      o.metrics,
		writeTimeout: o.writeTimeout,
	}, nil
}

// Accept is a suspend point. It returns the next connection and its
// peer address, suspending task while no connection is pending.
// Errors other than would-block are not recoverable and panic.
func (l *Listener) Accept(task *Task) (*Conn, net.Addr) {
	if l.fd < 0 {
		panic(ErrClosed)
	}

	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
			peer := tcpAddr(sa)
			l.log.Info("accept", "fd", nfd, "peer", peer)
			return newConn(l.reactor, nfd, peer, l.log, l.metrics, l.writeTimeout), peer
		case wouldBlock(err):
			l.reactor.Register(InterestRead, l.fd, task.Waker())
			task.Suspend()
		case err == unix.EINTR:
		default:
			// Including ECONNABORTED and EPROTO: a failed handshake
			// stops the server.
			panic(fmt.Sprintf("coreact: accept: %v", err))
		}
	}
}

// Addr returns the bound address, including the port chosen by the
// kernel when address asked for port 0.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Fd returns the listening descriptor.
func (l *Listener) Fd() int {
	return l.fd
}

// Close unregisters the listener from the reactor and closes it. It
// is safe to call more than once.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}

	fd := l.fd
	l.fd = -1
	l.reactor.Unregister(fd)

	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("coreact: close listener: %w", err)
	}
	return nil
}
