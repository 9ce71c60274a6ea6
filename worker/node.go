package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hugolhafner/go-streams-testing/connector"
	"github.com/hugolhafner/go-streams-testing/kafka"
	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/offset"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/service"
	"go.uber.org/multierr"
)

var (
	ErrNotRunning = errors.New("worker not running")
	ErrTaskExists = errors.New("task already running")
)

var _ service.Node = (*Node)(nil)

type Node struct {
	id       string
	index    int
	lease    *port.Lease
	srv      *service.HTTPServer
	client   kafka.Client
	offsets  *offset.Store
	taskLog  *taskLog
	upstream service.ConnectionString
	cfg      Config
	logger   logger.Logger

	tasksMu sync.Mutex
	tasks   map[string]context.CancelFunc
	tasksWG sync.WaitGroup

	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (p *Pool) startNode(upstreamRunning bool) service.StartFunc[*Node] {
	return func(ctx context.Context, index int, lease *port.Lease) (*Node, error) {
		if !upstreamRunning {
			return nil, fmt.Errorf("brokers: %w", service.ErrUpstreamNotRunning)
		}

		cfg := p.cfg
		l := cfg.Logger.With("service", service.KindWorker.String(), "node", index, "addr", lease.Addr())

		client, err := kafka.NewKgoClient(
			kafka.WithBootstrapServers(p.upstream.Addrs()),
			kafka.WithClientID(fmt.Sprintf("%s-%d", cfg.GroupID, index)),
			kafka.WithLogger(l),
		)
		if err != nil {
			return nil, err
		}

		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("brokers %s: %w: %w", p.upstream, service.ErrUpstreamNotRunning, err)
		}

		if err := client.EnsureTopics(ctx, cfg.TopicPartitions, cfg.internalTopics()...); err != nil {
			client.Close()
			return nil, fmt.Errorf("create internal topics: %w", err)
		}

		n := &Node{
			id:       uuid.NewString(),
			index:    index,
			lease:    lease,
			client:   client,
			upstream: p.upstream,
			cfg:      cfg,
			logger:   l,
			tasks:    make(map[string]context.CancelFunc),
			offsets: offset.NewStore(
				client, cfg.OffsetsTopic(),
				offset.WithLookupTimeout(cfg.LookupTimeout),
				offset.WithLogger(l),
				offset.WithTelemetry(cfg.Telemetry),
			),
		}

		n.taskLog = newTaskLog(client, cfg, lease.Addr(), l)

		srv, err := service.ServeHTTP(lease, n.routes())
		if err != nil {
			client.Close()
			return nil, err
		}
		n.srv = srv

		probe := NewClient(service.ConnectionString(lease.Addr()))
		err = service.WaitReady(
			ctx, cfg.ReadinessInterval, func(ctx context.Context) error {
				if err := srv.Exited(); err != nil {
					return err
				}
				return probe.Health(ctx)
			},
		)
		if err != nil {
			_ = srv.Stop(context.Background())
			client.Close()
			return nil, err
		}

		n.running.Store(true)
		return n, nil
	}
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Addr() string {
	return n.lease.Addr()
}

func (n *Node) Port() int {
	return n.lease.Port()
}

// Upstream is the broker connection string captured at start.
func (n *Node) Upstream() service.ConnectionString {
	return n.upstream
}

func (n *Node) Running() bool {
	return n.running.Load()
}

// OffsetReader returns the offsets committed under namespace by any node
// of the pool.
func (n *Node) OffsetReader(namespace string) offset.Reader {
	return offset.Wrap(n.offsets.Reader(namespace))
}

func (n *Node) OffsetWriter(namespace string) offset.Writer {
	return n.offsets.Writer(namespace)
}

// TaskStatuses returns the last reported status of every task run by any
// node of the pool, ordered by task name.
func (n *Node) TaskStatuses(ctx context.Context) ([]TaskStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.LookupTimeout)
	defer cancel()

	byTask, err := n.taskLog.statuses(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]TaskStatus, 0, len(byTask))
	for _, s := range byTask {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out, nil
}

// TaskConfig returns the config the named task was last started with.
func (n *Node) TaskConfig(ctx context.Context, name string) (connector.TaskConfig, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.LookupTimeout)
	defer cancel()

	configs, err := n.taskLog.configs(ctx)
	if err != nil {
		return nil, false, err
	}
	cfg, ok := configs[name]
	return cfg, ok, nil
}

// Tasks lists the names of the running tasks.
func (n *Node) Tasks() []string {
	n.tasksMu.Lock()
	defer n.tasksMu.Unlock()

	out := make([]string, 0, len(n.tasks))
	for name := range n.tasks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close stops running tasks, then the HTTP listener and the broker client.
func (n *Node) Close(ctx context.Context) error {
	n.closeOnce.Do(
		func() {
			n.running.Store(false)

			var errs []error
			if err := n.stopTasks(ctx); err != nil {
				errs = append(errs, err)
			}

			if err := n.srv.Stop(ctx); err != nil {
				n.logger.Warn("Worker HTTP server forced to stop", "error", err)
			}
			n.client.Close()

			if err := n.lease.Release(); err != nil {
				errs = append(errs, fmt.Errorf("release port: %w", err))
			}
			n.closeErr = multierr.Combine(errs...)
		},
	)
	return n.closeErr
}

func (n *Node) stopTasks(ctx context.Context) error {
	n.tasksMu.Lock()
	for _, cancel := range n.tasks {
		cancel()
	}
	n.tasksMu.Unlock()

	done := make(chan struct{})
	go func() {
		n.tasksWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tasks did not stop: %w", ctx.Err())
	}
}
