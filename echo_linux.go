//go:build linux

package coreact

import (
	"context"
	"log/slog"
)

// Echo serves one connection: every line read is written back
// unmodified until the peer closes or an I/O error ends the
// connection. conn is always closed on return, including when the
// task is cancelled at shutdown.
func Echo(_ context.Context, task *Task, conn *Conn, log *slog.Logger) {
	fd := conn.Fd()
	defer func() {
		_ = conn.Close()
		log.Info("closed", "fd", fd)
	}()

	for {
		line, ok := conn.ReadLine(task)
		if !ok {
			return
		}

		log.Debug("read", "fd", fd, "bytes", len(line))

		if _, err := conn.Write(line); err != nil {
			log.Warn("write failed", "fd", fd, "error", err)
			return
		}
	}
}
