package coreact

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "default", mutate: func(*Config) {}, ok: true},
		{name: "ipv6", mutate: func(c *Config) { c.BindAddress = "[::1]:0" }, ok: true},
		{name: "empty address", mutate: func(c *Config) { c.BindAddress = "" }},
		{name: "missing port", mutate: func(c *Config) { c.BindAddress = "127.0.0.1" }},
		{name: "zero capacity", mutate: func(c *Config) { c.QueueCapacity = 0 }},
		{name: "negative events", mutate: func(c *Config) { c.MaxEvents = -1 }},
		{name: "zero timeout", mutate: func(c *Config) { c.WriteTimeout = 0 }},
		{name: "bad format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			if tt.ok {
				require.NoError(t, cfg.Validate())
			} else {
				require.Error(t, cfg.Validate())
			}
		})
	}
}

func TestConfigOptions(t *testing.T) {
	r := require.New(t)

	cfg := DefaultConfig()
	cfg.QueueCapacity = 7
	cfg.MaxEvents = 9
	cfg.WriteTimeout = time.Second

	o := newOptions(cfg.Options())
	r.Equal(7, o.queueCapacity)
	r.Equal(9, o.maxEvents)
	r.Equal(time.Second, o.writeTimeout)
	r.NotNil(o.logger)

	// Non-positive values keep the defaults.
	o = newOptions([]Option{WithQueueCapacity(0), WithMaxEvents(-1), WithWriteTimeout(0)})
	r.Equal(ScheduleQueueCapacity, o.queueCapacity)
	r.Equal(ReactorMaxEvents, o.maxEvents)
	r.Equal(ConnWriteTimeout, o.writeTimeout)
}

func TestNewLogger(t *testing.T) {
	r := require.New(t)

	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "fd", 7)

	var entry map[string]any
	r.NoError(json.Unmarshal(buf.Bytes(), &entry))
	r.Equal("shown", entry["msg"])
	r.Equal(float64(7), entry["fd"])
}

func TestParseLevel(t *testing.T) {
	r := require.New(t)

	r.Equal(slog.LevelDebug, ParseLevel("DEBUG"))
	r.Equal(slog.LevelWarn, ParseLevel("warning"))
	r.Equal(slog.LevelError, ParseLevel(" error "))
	r.Equal(slog.LevelInfo, ParseLevel("bogus"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.IncTasksSpawned()
		m.DecTasksLive()
		m.IncResumes()
		m.SetRegistrations(3)
		m.IncCommand("register")
		m.IncDispatches()
		m.IncConnections()
		m.DecConnections()
	})
}
