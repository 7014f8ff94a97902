//go:build linux

package coreact

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Server is a line echo server running every connection as a task on
// one executor thread, with a reactor thread for readiness.
type Server struct {
	config  Config
	opts    []Option
	log     *slog.Logger
	served  atomic.Bool
	ready   chan struct{}
	mu      sync.Mutex
	addr    net.Addr
	reactor *Reactor
	sched   *Schedule
}

// NewServer creates a server for cfg. opts are applied after the
// tunables from cfg, so they take precedence.
func NewServer(cfg Config, opts ...Option) *Server {
	all := append(cfg.Options(), opts...)
	return &Server{
		config: cfg,
		opts:   all,
		log:    newOptions(all).logger,
		ready:  make(chan struct{}),
	}
}

// Serve binds the listener and runs the reactor and the executor until
// ctx is done or the reactor fails. A Server serves at most once.
func (s *Server) Serve(ctx context.Context) error {
	if !s.served.CompareAndSwap(false, true) {
		return errors.New("coreact: server already started")
	}

	if err := s.config.Validate(); err != nil {
		return err
	}

	reactor, err := NewReactor(s.opts...)
	if err != nil {
		return err
	}

	listener, err := Listen(reactor, s.config.BindAddress, s.opts...)
	if err != nil {
		_ = reactor.Close()
		return err
	}

	sched := NewSchedule(s.opts...)

	s.mu.Lock()
	s.addr = listener.Addr()
	s.reactor = reactor
	s.sched = sched
	s.mu.Unlock()
	close(s.ready)

	s.log.Info("listening", "addr", listener.Addr())

	sched.Spawn(func(ctx context.Context, task *Task) {
		s.accept(ctx, task, listener)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(reactor.Run)
	g.Go(func() error {
		defer reactor.Close()
		sched.Run(gctx)
		return nil
	})

	err = g.Wait()
	_ = listener.Close()

	s.log.Info("stopped", "addr", listener.Addr())
	return err
}

func (s *Server) accept(_ context.Context, task *Task, listener *Listener) {
	defer listener.Close()

	for {
		conn, _ := listener.Accept(task)
		task.Spawn(func(ctx context.Context, task *Task) {
			Echo(ctx, task, conn, s.log)
		})
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Reactor returns the server's reactor, or nil before Ready.
func (s *Server) Reactor() *Reactor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reactor
}

// Schedule returns the server's schedule, or nil before Ready.
func (s *Server) Schedule() *Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched
}

// Start serves DefaultConfig until the process exits. Fatal runtime
// errors panic.
func Start() {
	cfg := DefaultConfig()
	logger := NewLogger(LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := NewServer(cfg, WithLogger(logger)).Serve(context.Background()); err != nil {
		panic(err)
	}
}
