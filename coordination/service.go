package coordination

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/service"
)

var _ service.Handle = (*Service)(nil)

// Service is a running single-node coordination service.
type Service struct {
	group *service.Group[*node]
}

// Local starts a coordination node on port, or an ephemeral port when
// port is 0, and blocks until it answers health checks. Close must only be
// called after every broker cluster started against it has been closed.
func Local(port int, opts ...service.Option) (*Service, error) {
	return LocalContext(context.Background(), port, opts...)
}

// LocalContext is Local with a parent context bounding startup.
func LocalContext(ctx context.Context, port int, opts ...service.Option) (*Service, error) {
	cfg := service.NewConfig(opts...)

	g, err := service.StartGroup(ctx, service.KindCoordination, []int{port}, cfg, startNode(cfg))
	if err != nil {
		return nil, err
	}

	return &Service{group: g}, nil
}

func startNode(cfg service.Config) service.StartFunc[*node] {
	return func(ctx context.Context, index int, lease *port.Lease) (*node, error) {
		reg := NewRegistry()
		l := cfg.Logger.With("service", service.KindCoordination.String(), "addr", lease.Addr())

		srv, err := service.ServeHTTP(lease, newMux(reg, l))
		if err != nil {
			return nil, err
		}

		n := &node{lease: lease, srv: srv, registry: reg, logger: l}

		client, err := NewClient(service.ConnectionString(lease.Addr()))
		if err != nil {
			_ = srv.Stop(ctx)
			return nil, err
		}

		err = service.WaitReady(
			ctx, cfg.ReadinessInterval, func(ctx context.Context) error {
				if err := srv.Exited(); err != nil {
					return err
				}
				return client.Health(ctx)
			},
		)
		if err != nil {
			_ = srv.Stop(context.Background())
			return nil, err
		}

		n.running.Store(true)
		return n, nil
	}
}

func (s *Service) ConnectionString() service.ConnectionString {
	return s.group.ConnectionString()
}

func (s *Service) Running() bool {
	return s.group.Running()
}

// Registry exposes the membership table of the running node.
func (s *Service) Registry() *Registry {
	nodes := s.group.Nodes()
	return nodes[0].registry
}

// Client returns a client bound to this service's connection string.
func (s *Service) Client() (*Client, error) {
	return NewClient(s.ConnectionString())
}

func (s *Service) Close() error {
	return s.group.Close()
}

type node struct {
	lease    *port.Lease
	srv      *service.HTTPServer
	registry *Registry
	logger   logger.Logger

	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (n *node) Addr() string {
	return n.lease.Addr()
}

func (n *node) Port() int {
	return n.lease.Port()
}

func (n *node) Running() bool {
	return n.running.Load()
}

func (n *node) Close(ctx context.Context) error {
	n.closeOnce.Do(
		func() {
			n.running.Store(false)

			if err := n.srv.Stop(ctx); err != nil {
				n.logger.Warn("Coordination node forced to stop", "error", err)
			}

			if err := n.lease.Release(); err != nil {
				n.closeErr = fmt.Errorf("release port: %w", err)
			}
		},
	)
	return n.closeErr
}
