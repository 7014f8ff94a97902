package coreact

import (
	"errors"
	"time"
)

const (
	// ConnWriteTimeout is the default bound on waiting for a full
	// socket send buffer during one Conn.Write. The wait holds the
	// executor thread, so it stays short; a peer that does not drain
	// its window in time is dropped.
	ConnWriteTimeout = 10 * time.Millisecond

	// connReadBufferSize is the size of a connection's line buffer.
	// Longer lines are assembled across several buffer fills.
	connReadBufferSize = 4096

	listenBacklog = 1024
)

var (
	// ErrWriteTimeout is returned by Conn.Write when the peer does not
	// drain its receive window within the write timeout.
	ErrWriteTimeout = errors.New("coreact: write timeout")

	// ErrClosed is returned by operations on a closed Conn or Listener.
	ErrClosed = errors.New("coreact: use of closed descriptor")
)
