//go:build linux

package coreact

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Conn is an accepted non-blocking TCP connection. Reads go through a
// line buffer and suspend the calling task when no data is available;
// writes complete in place.
type Conn struct {
	fd           int
	peer         net.Addr
	reader       *bufio.Reader
	line         []byte // partial line carried across suspends
	reactor      *Reactor
	log          *slog.Logger
	metrics      *Metrics
	writeTimeout time.Duration
}

func newConn(r *Reactor, fd int, peer net.Addr, log *slog.Logger, metrics *Metrics, writeTimeout time.Duration) *Conn {
	metrics.IncConnections()
	return &Conn{
		fd:           fd,
		peer:         peer,
		reader:       bufio.NewReaderSize(&fdReader{fd: fd}, connReadBufferSize),
		reactor:      r,
		log:          log,
		metrics:      metrics,
		writeTimeout: writeTimeout,
	}
}

// ReadLine is a suspend point. It returns the next line including its
// trailing newline. A final unterminated line is returned before end
// of stream. When the peer closes the connection, or reading fails
// for any reason other than would-block, it returns false; the error
// itself is only logged.
func (c *Conn) ReadLine(task *Task) ([]byte, bool) {
	for {
		if c.fd < 0 {
			return nil, false
		}

		frag, err := c.reader.ReadSlice('\n')
		c.line = append(c.line, frag...)

		switch {
		case err == nil:
			return c.take(), true
		case err == bufio.ErrBufferFull:
		case wouldBlock(err):
			c.reactor.Register(InterestRead, c.fd, task.Waker())
			task.Suspend()
		case err == io.EOF:
			if len(c.line) > 0 {
				return c.take(), true
			}
			return nil, false
		default:
			c.log.Debug("read failed", "fd", c.fd, "error", err)
			c.line = nil
			return nil, false
		}
	}
}

func (c *Conn) take() []byte {
	line := c.line
	c.line = nil
	return line
}

// Write sends all of p before returning. It never suspends: a full
// send buffer is waited for on the calling thread, for at most the
// write timeout across the whole call.
func (c *Conn) Write(p []byte) (int, error) {
	deadline := time.Now().Add(c.writeTimeout)
	written := 0
	for written < len(p) {
		if c.fd < 0 {
			return written, ErrClosed
		}

		n, err := unix.Write(c.fd, p[written:])
		switch {
		case err == nil:
			written += n
		case err == unix.EINTR:
		case wouldBlock(err):
			if err := c.awaitWritable(deadline); err != nil {
				return written, err
			}
		default:
			return written, fmt.Errorf("coreact: write fd %d: %w", c.fd, err)
		}
	}
	return written, nil
}

func (c *Conn) awaitWritable(deadline time.Time) error {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrWriteTimeout
		}

		n, err := unix.Poll(fds, int(remaining/time.Millisecond)+1)
		switch {
		case err == unix.EINTR:
		case err != nil:
			return fmt.Errorf("coreact: poll fd %d: %w", c.fd, err)
		case n == 0:
			return ErrWriteTimeout
		default:
			return nil
		}
	}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.peer
}

// Fd returns the connection's descriptor, or -1 once closed.
func (c *Conn) Fd() int {
	return c.fd
}

// Close unregisters the connection from the reactor and closes the
// socket. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}

	fd := c.fd
	c.fd = -1
	c.line = nil
	c.reactor.Unregister(fd)
	c.metrics.DecConnections()

	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("coreact: close fd %d: %w", fd, err)
	}
	return nil
}
