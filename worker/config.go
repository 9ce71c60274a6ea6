package worker

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugolhafner/go-streams-testing/committer"
	"github.com/hugolhafner/go-streams-testing/errorhandler"
	"github.com/hugolhafner/go-streams-testing/service"
)

type Config struct {
	service.Config

	// GroupID names the pool and prefixes its internal topics.
	GroupID string

	// TopicPartitions is the partition count of the internal topics.
	TopicPartitions int32

	LookupTimeout time.Duration

	// PollInterval is how long a task loop waits after an empty poll.
	PollInterval time.Duration

	CommitterOptions []committer.PeriodicCommitterOption
	ErrorHandler     errorhandler.Handler
}

type Option func(*Config)

func WithGroupID(id string) Option {
	return func(c *Config) {
		c.GroupID = id
	}
}

// WithServiceOptions applies lifecycle options shared by all service kinds.
func WithServiceOptions(opts ...service.Option) Option {
	return func(c *Config) {
		for _, opt := range opts {
			opt(&c.Config)
		}
	}
}

func WithTopicPartitions(n int32) Option {
	return func(c *Config) {
		if n > 0 {
			c.TopicPartitions = n
		}
	}
}

func WithLookupTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.LookupTimeout = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithCommitter sets the offset flush policy of tasks started on the pool.
func WithCommitter(opts ...committer.PeriodicCommitterOption) Option {
	return func(c *Config) {
		c.CommitterOptions = opts
	}
}

// WithErrorHandler sets the policy applied to failed task steps.
func WithErrorHandler(h errorhandler.Handler) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

func defaultConfig() Config {
	cfg := Config{
		Config:          service.DefaultConfig(),
		GroupID:         "worker-" + uuid.NewString(),
		TopicPartitions: 1,
		LookupTimeout:   5 * time.Second,
		PollInterval:    100 * time.Millisecond,
	}
	return cfg
}

func newConfig(opts ...Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = errorhandler.LogAndFail(cfg.Logger)
	}
	return cfg
}

func (c Config) OffsetsTopic() string {
	return c.GroupID + "-offsets"
}

func (c Config) ConfigsTopic() string {
	return c.GroupID + "-configs"
}

func (c Config) StatusTopic() string {
	return c.GroupID + "-status"
}

func (c Config) internalTopics() []string {
	return []string{c.OffsetsTopic(), c.ConfigsTopic(), c.StatusTopic()}
}
