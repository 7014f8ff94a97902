package coreact

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultBindAddress is the loopback address served by Start.
const DefaultBindAddress = "127.0.0.1:10000"

// Config holds the server settings. Field tags match the keys read by
// the command line tool's configuration loader.
type Config struct {
	BindAddress    string        `mapstructure:"bind_address"`
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	MaxEvents      int           `mapstructure:"max_events"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	MetricsAddress string        `mapstructure:"metrics_address"`
}

// DefaultConfig returns the settings used by Start.
func DefaultConfig() Config {
	return Config{
		BindAddress:   DefaultBindAddress,
		QueueCapacity: ScheduleQueueCapacity,
		MaxEvents:     ReactorMaxEvents,
		WriteTimeout:  ConnWriteTimeout,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.BindAddress == "" {
		return errors.New("coreact: bind address is required")
	}
	if _, _, err := net.SplitHostPort(c.BindAddress); err != nil {
		return fmt.Errorf("coreact: bind address %q: %w", c.BindAddress, err)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("coreact: queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("coreact: max events must be positive, got %d", c.MaxEvents)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("coreact: write timeout must be positive, got %s", c.WriteTimeout)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("coreact: unknown log format %q", c.LogFormat)
	}
	return nil
}

// Options converts the tunables in c to runtime options.
func (c Config) Options() []Option {
	return []Option{
		WithQueueCapacity(c.QueueCapacity),
		WithMaxEvents(c.MaxEvents),
		WithWriteTimeout(c.WriteTimeout),
	}
}
