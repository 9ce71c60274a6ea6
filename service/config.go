package service

import (
	"time"

	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/otel"
	"github.com/hugolhafner/go-streams-testing/port"
)

type Config struct {
	Logger    logger.Logger
	Telemetry *otel.Telemetry
	Ports     *port.Allocator

	// StartupTimeout bounds how long a single node may take to become ready.
	StartupTimeout time.Duration
	// ShutdownTimeout is the grace period a node gets to stop before it is
	// forcibly terminated.
	ShutdownTimeout time.Duration
	// ReadinessInterval is the delay between readiness probes.
	ReadinessInterval time.Duration
}

type Option func(*Config)

func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

func WithTelemetry(t *otel.Telemetry) Option {
	return func(c *Config) {
		if t != nil {
			c.Telemetry = t
		}
	}
}

// WithPortAllocator replaces the process-wide port.Default allocator.
func WithPortAllocator(a *port.Allocator) Option {
	return func(c *Config) {
		if a != nil {
			c.Ports = a
		}
	}
}

func WithStartupTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.StartupTimeout = d
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ShutdownTimeout = d
		}
	}
}

func WithReadinessInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReadinessInterval = d
		}
	}
}

func DefaultConfig() Config {
	return Config{
		Logger:            logger.NewNoopLogger(),
		Telemetry:         otel.Noop(),
		Ports:             port.Default,
		StartupTimeout:    30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		ReadinessInterval: 50 * time.Millisecond,
	}
}

func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
