package harness

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/otel"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/service"
	"github.com/hugolhafner/go-streams-testing/worker"
)

var ErrInvalidConfig = errors.New("invalid harness config")

// Config describes one harness. Port entries of 0 request ephemeral ports.
type Config struct {
	Coordination int   `yaml:"coordination"`
	Brokers      []int `yaml:"brokers"`
	Workers      []int `yaml:"workers"`

	// GroupID of the worker pool; generated when empty.
	GroupID string `yaml:"group_id"`

	StartupTimeout  time.Duration `yaml:"startup_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Logger        logger.Logger   `yaml:"-"`
	Telemetry     *otel.Telemetry `yaml:"-"`
	Ports         *port.Allocator `yaml:"-"`
	WorkerOptions []worker.Option `yaml:"-"`
}

func DefaultConfig() Config {
	svc := service.DefaultConfig()
	return Config{
		Coordination:    0,
		Brokers:         []int{0},
		Workers:         []int{0},
		StartupTimeout:  svc.StartupTimeout,
		ShutdownTimeout: svc.ShutdownTimeout,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("%w: at least one broker port entry is required", ErrInvalidConfig)
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("%w: at least one worker port entry is required", ErrInvalidConfig)
	}
	for _, p := range append(append([]int{c.Coordination}, c.Brokers...), c.Workers...) {
		if p < 0 || p > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, p)
		}
	}
	return nil
}

func (c Config) serviceOptions() []service.Option {
	opts := []service.Option{
		service.WithStartupTimeout(c.StartupTimeout),
		service.WithShutdownTimeout(c.ShutdownTimeout),
	}
	if c.Logger != nil {
		opts = append(opts, service.WithLogger(c.Logger))
	}
	if c.Telemetry != nil {
		opts = append(opts, service.WithTelemetry(c.Telemetry))
	}
	if c.Ports != nil {
		opts = append(opts, service.WithPortAllocator(c.Ports))
	}
	return opts
}

func (c Config) workerOptions() []worker.Option {
	opts := []worker.Option{worker.WithServiceOptions(c.serviceOptions()...)}
	if c.GroupID != "" {
		opts = append(opts, worker.WithGroupID(c.GroupID))
	}
	return append(opts, c.WorkerOptions...)
}
