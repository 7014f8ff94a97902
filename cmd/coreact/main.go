//go:build linux

// Command coreact runs the line echo server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/webriots/coreact"
)

const envPrefix = "COREACT"

func main() {
	if err := newRootCommand(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "coreact",
		Short:        "Serve line echo connections from a single worker thread",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	def := coreact.DefaultConfig()
	flags := cmd.Flags()
	flags.String("config", "", "Path to a configuration file (yaml, json or toml)")
	flags.String("bind", def.BindAddress, "Address to listen on")
	flags.Int("queue-capacity", def.QueueCapacity, "Run queue capacity")
	flags.Int("max-events", def.MaxEvents, "Readiness events collected per reactor wait")
	flags.Duration("write-timeout", def.WriteTimeout, "Longest wait for a full socket send buffer")
	flags.String("log-level", def.LogLevel, "Log level (debug|info|warn|error)")
	flags.String("log-format", def.LogFormat, "Log format (text|json)")
	flags.String("metrics-addr", def.MetricsAddress, "Address serving Prometheus metrics; empty disables")

	for key, flag := range map[string]string{
		"config":          "config",
		"bind_address":    "bind",
		"queue_capacity":  "queue-capacity",
		"max_events":      "max-events",
		"write_timeout":   "write-timeout",
		"log_level":       "log-level",
		"log_format":      "log-format",
		"metrics_address": "metrics-addr",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return cmd
}

func loadConfig(v *viper.Viper) (coreact.Config, error) {
	var cfg coreact.Config

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg coreact.Config) error {
	logger := coreact.NewLogger(coreact.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := coreact.NewServer(cfg,
		coreact.WithLogger(logger),
		coreact.WithMetrics(coreact.NewMetrics(registry)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

		httpSrv := &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddress)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}
	return nil
}
