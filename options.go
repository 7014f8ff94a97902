package coreact

import (
	"io"
	"log/slog"
	"time"
)

// Option customizes a Schedule, Reactor, Listener or Server.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	metrics       *Metrics
	queueCapacity int
	maxEvents     int
	writeTimeout  time.Duration
}

func newOptions(opts []Option) *options {
	o := &options{
		queueCapacity: ScheduleQueueCapacity,
		maxEvents:     ReactorMaxEvents,
		writeTimeout:  ConnWriteTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// WithLogger sets the structured logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics attaches Prometheus collectors. A nil Metrics disables
// instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithQueueCapacity overrides the run queue inbox capacity.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueCapacity = n
		}
	}
}

// WithMaxEvents overrides how many readiness events the reactor
// collects per wait.
func WithMaxEvents(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxEvents = n
		}
	}
}

// WithWriteTimeout bounds how long a connection write waits for a
// full socket buffer to drain.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}
