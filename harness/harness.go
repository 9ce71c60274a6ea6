package harness

import (
	"context"
	"fmt"

	"github.com/hugolhafner/go-streams-testing/broker"
	"github.com/hugolhafner/go-streams-testing/coordination"
	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/worker"
)

type Harness struct {
	coord   *coordination.Service
	brokers *broker.Cluster
	workers *worker.Pool
	stack   *Stack
	logger  logger.Logger
}

// Start boots coordination, brokers and workers in that order. If a layer
// fails, the layers already started are closed before the error returns.
func Start(ctx context.Context, cfg Config) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := cfg.Logger
	if l == nil {
		l = logger.NewNoopLogger()
	}

	h := &Harness{stack: &Stack{}, logger: l.With("component", "harness")}
	opts := cfg.serviceOptions()

	var err error
	if h.coord, err = coordination.LocalContext(ctx, cfg.Coordination, opts...); err != nil {
		return nil, fmt.Errorf("start coordination: %w", err)
	}
	h.stack.Push(h.coord)

	if h.brokers, err = broker.LocalContext(ctx, h.coord, cfg.Brokers, opts...); err != nil {
		return nil, h.abort(fmt.Errorf("start brokers: %w", err))
	}
	h.stack.Push(h.brokers)

	if h.workers, err = worker.LocalContext(ctx, h.brokers, cfg.Workers, cfg.workerOptions()...); err != nil {
		return nil, h.abort(fmt.Errorf("start workers: %w", err))
	}
	h.stack.Push(h.workers)

	h.logger.Info(
		"Harness started",
		"coordination", h.coord.ConnectionString().String(),
		"brokers", h.brokers.ConnectionString().String(),
		"workers", h.workers.ConnectionString().String(),
	)
	return h, nil
}

func (h *Harness) abort(cause error) error {
	if err := h.stack.Close(); err != nil {
		h.logger.Warn("Teardown after failed start reported errors", "error", err)
	}
	return cause
}

func (h *Harness) Coordination() *coordination.Service {
	return h.coord
}

func (h *Harness) Brokers() *broker.Cluster {
	return h.brokers
}

func (h *Harness) Workers() *worker.Pool {
	return h.workers
}

// Close stops workers, brokers and coordination in that order.
func (h *Harness) Close() error {
	err := h.stack.Close()
	h.logger.Info("Harness closed", "error", err)
	return err
}
