package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-streams-testing/logger"
	streamsotel "github.com/hugolhafner/go-streams-testing/otel"
	"github.com/hugolhafner/go-streams-testing/port"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
)

// Node is one running instance of a service.
type Node interface {
	Addr() string
	Port() int
	Running() bool
	// Close stops the node and releases its port. ctx bounds the graceful
	// part of the shutdown; the node is forcibly stopped once it expires.
	Close(ctx context.Context) error
}

// Handle is the scoped-lifetime owner of a started service. Close releases
// everything the service allocated and is safe to call more than once, but
// must only be called after every handle depending on it has been closed.
type Handle interface {
	ConnectionString() ConnectionString
	Running() bool
	Close() error
}

// StartFunc starts node index on the leased port and returns once the node
// is ready. On error it must release whatever it acquired apart from the
// lease, which the group releases.
type StartFunc[N Node] func(ctx context.Context, index int, lease *port.Lease) (N, error)

type Group[N Node] struct {
	kind   Kind
	cfg    Config
	logger logger.Logger

	mu     sync.Mutex
	nodes  []N
	closed bool
}

// StartGroup starts one node per entry of ports, sequentially and in order.
// A 0 entry requests an ephemeral port. Startup is all-or-nothing: on the
// first failure every node already started by this call is closed in
// reverse order and the failure is returned as a *StartupError (single
// port) or *PartialStartupError.
func StartGroup[N Node](ctx context.Context, kind Kind, ports []int, cfg Config, start StartFunc[N]) (*Group[N], error) {
	if len(ports) == 0 {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoNodes)
	}

	g := &Group[N]{
		kind:   kind,
		cfg:    cfg,
		logger: cfg.Logger.With("service", kind.String()),
		nodes:  make([]N, 0, len(ports)),
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for i, requested := range ports {
		n, err := g.startNode(ctx, i, requested, start)
		if err != nil {
			started := len(g.nodes)
			teardownErr := g.closeNodesLocked()
			g.closed = true

			if teardownErr != nil {
				g.logger.Warn("Teardown after failed startup reported errors", "error", teardownErr)
			}

			if len(ports) == 1 {
				return nil, err
			}

			return nil, &PartialStartupError{
				Kind:     kind,
				Started:  started,
				Cause:    err,
				Teardown: teardownErr,
			}
		}

		g.nodes = append(g.nodes, n)
	}

	g.logger.Info("Service group started", "nodes", len(g.nodes), "connection", g.connectionStringLocked().String())
	return g, nil
}

func (g *Group[N]) startNode(parent context.Context, index, requested int, start StartFunc[N]) (N, error) {
	var zero N

	tel := g.cfg.Telemetry
	attrs := []attribute.KeyValue{
		streamsotel.AttrServiceKind.String(g.kind.String()),
		streamsotel.AttrNodeIndex.Int(index),
	}

	ctx, cancel := context.WithTimeout(parent, g.cfg.StartupTimeout)
	defer cancel()

	ctx, span := tel.Tracer.Start(ctx, "service.start", trace.WithAttributes(attrs...))
	defer span.End()

	began := time.Now()
	fail := func(p int, err error) (N, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tel.StartupFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
		g.logger.Error("Node failed to start", "index", index, "port", p, "error", err)
		return zero, NewStartupError(g.kind, index, p, err)
	}

	lease, err := g.cfg.Ports.Allocate(requested)
	if err != nil {
		return fail(requested, err)
	}

	span.SetAttributes(streamsotel.AttrNodePort.Int(lease.Port()))
	g.logger.Debug("Starting node", "index", index, "port", lease.Port())

	n, err := start(ctx, index, lease)
	if err != nil {
		_ = lease.Release()
		return fail(lease.Port(), err)
	}

	tel.StartupDuration.Record(ctx, time.Since(began).Seconds(), metric.WithAttributes(attrs...))
	tel.NodesStarted.Add(ctx, 1, metric.WithAttributes(attrs...))
	tel.NodesActive.Add(ctx, 1, metric.WithAttributes(attrs[:1]...))
	g.logger.Info("Node ready", "index", index, "addr", n.Addr())

	return n, nil
}

// closeNodesLocked stops nodes in reverse start order. Every node gets a
// close attempt regardless of earlier failures.
func (g *Group[N]) closeNodesLocked() error {
	var errs error
	tel := g.cfg.Telemetry

	for i := len(g.nodes) - 1; i >= 0; i-- {
		n := g.nodes[i]
		if !n.Running() {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.ShutdownTimeout)
		err := n.Close(ctx)
		cancel()

		attrs := metric.WithAttributes(streamsotel.AttrServiceKind.String(g.kind.String()))
		tel.NodesStopped.Add(context.Background(), 1, attrs)
		tel.NodesActive.Add(context.Background(), -1, attrs)

		if err != nil {
			g.logger.Warn("Node did not close cleanly", "index", i, "addr", n.Addr(), "error", err)
			errs = multierr.Append(errs, fmt.Errorf("close %s node %d (%s): %w", g.kind, i, n.Addr(), err))
			continue
		}

		g.logger.Debug("Node closed", "index", i, "addr", n.Addr())
	}

	return errs
}

func (g *Group[N]) Kind() Kind {
	return g.kind
}

// ConnectionString returns the addresses of the running nodes in start order.
func (g *Group[N]) ConnectionString() ConnectionString {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.connectionStringLocked()
}

func (g *Group[N]) connectionStringLocked() ConnectionString {
	addrs := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.Running() {
			addrs = append(addrs, n.Addr())
		}
	}
	return JoinAddrs(addrs)
}

// Nodes returns the nodes in start order.
func (g *Group[N]) Nodes() []N {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]N, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *Group[N]) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return !g.closed
}

// Close stops every node in reverse start order and aggregates the errors.
// Calls after the first return nil.
func (g *Group[N]) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	err := g.closeNodesLocked()
	g.logger.Info("Service group closed", "nodes", len(g.nodes))
	return err
}
