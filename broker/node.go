package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hugolhafner/go-streams-testing/coordination"
	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/service"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kfake"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"go.uber.org/multierr"
)

var _ service.Node = (*Node)(nil)

// Node is one broker of a Cluster.
type Node struct {
	id       string
	brokerID int32
	lease    *port.Lease
	fabric   *fabric
	coord    *coordination.Client
	upstream service.ConnectionString
	logger   logger.Logger

	running   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *Cluster) startNode(upstreamRunning bool) service.StartFunc[*Node] {
	return func(ctx context.Context, index int, lease *port.Lease) (*Node, error) {
		if !upstreamRunning {
			return nil, fmt.Errorf("coordination: %w", service.ErrUpstreamNotRunning)
		}

		coord, err := coordination.NewClient(c.upstream)
		if err != nil {
			return nil, err
		}
		if err := coord.Health(ctx); err != nil {
			return nil, fmt.Errorf("coordination %s: %w: %w", c.upstream, service.ErrUpstreamNotRunning, err)
		}

		peers, err := coord.Nodes(ctx, service.KindBroker.String())
		if err != nil {
			return nil, fmt.Errorf("discover peers: %w", err)
		}

		n := &Node{
			id:       uuid.NewString(),
			brokerID: int32(index),
			lease:    lease,
			fabric:   c.fabric,
			coord:    coord,
			upstream: c.upstream,
		}
		n.logger = c.cfg.Logger.With("service", service.KindBroker.String(), "node", index, "addr", lease.Addr())
		n.logger.Debug("Discovered peers", "count", len(peers))

		ln := lease.Listener()
		if ln == nil {
			return nil, fmt.Errorf("%w: listener of %s already taken", port.ErrUnavailable, lease.Addr())
		}
		c.fabric.offer(lease.Port(), ln)

		if err := n.join(index, c.cfg); err != nil {
			if unused := c.fabric.withdraw(lease.Port()); unused != nil {
				_ = unused.Close()
			}
			return nil, err
		}

		if err := service.WaitReady(ctx, c.cfg.ReadinessInterval, n.probe); err != nil {
			_ = n.leave()
			return nil, err
		}

		if err := coord.Register(ctx, coordination.NodeInfo{ID: n.id, Kind: service.KindBroker.String(), Addr: n.Addr()}); err != nil {
			_ = n.leave()
			return nil, fmt.Errorf("register with coordination: %w", err)
		}

		n.running.Store(true)
		return n, nil
	}
}

func (n *Node) join(index int, cfg service.Config) error {
	n.fabric.mu.Lock()
	defer n.fabric.mu.Unlock()

	if index == 0 || n.fabric.c == nil {
		kc, err := kfake.NewCluster(
			kfake.NumBrokers(1),
			kfake.Ports(n.lease.Port()),
			kfake.AllowAutoTopicCreation(),
			kfake.ListenFn(n.fabric.listen),
			kfake.WithLogger(&kfakeLogger{l: n.logger}),
		)
		if err != nil {
			return fmt.Errorf("start embedded broker: %w", err)
		}
		n.fabric.c = kc
		n.brokerID = 0
		return nil
	}

	id, _, err := n.fabric.c.AddNode(n.brokerID, n.lease.Port())
	if err != nil {
		return fmt.Errorf("join embedded cluster: %w", err)
	}
	n.brokerID = id
	return nil
}

// leave stops the embedded broker of this node. The first node owns the
// embedded cluster and shuts it down; every other node is removed from it.
func (n *Node) leave() error {
	n.fabric.mu.Lock()
	defer n.fabric.mu.Unlock()

	if n.fabric.c == nil {
		return nil
	}

	if n.brokerID == 0 {
		n.fabric.c.Close()
		n.fabric.c = nil
		return nil
	}

	return n.fabric.c.RemoveNode(n.brokerID)
}

// probe sends ApiVersions straight to this node.
func (n *Node) probe(ctx context.Context) error {
	cl, err := kgo.NewClient(kgo.SeedBrokers(n.Addr()))
	if err != nil {
		return err
	}
	defer cl.Close()

	// the client only knows this node's address
	resp, err := cl.Request(ctx, kmsg.NewPtrApiVersionsRequest())
	if err != nil {
		return err
	}

	versions, ok := resp.(*kmsg.ApiVersionsResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", resp)
	}
	return kerr.ErrorForCode(versions.ErrorCode)
}

func (n *Node) ID() string {
	return n.id
}

// BrokerID is the Kafka node id of this broker.
func (n *Node) BrokerID() int32 {
	return n.brokerID
}

func (n *Node) Addr() string {
	return n.lease.Addr()
}

func (n *Node) Port() int {
	return n.lease.Port()
}

// Upstream is the coordination connection string captured at start.
func (n *Node) Upstream() service.ConnectionString {
	return n.upstream
}

func (n *Node) Running() bool {
	return n.running.Load()
}

// Close deregisters the node and stops its broker. Deregistration is best
// effort, the coordination service may already be gone.
func (n *Node) Close(ctx context.Context) error {
	n.closeOnce.Do(
		func() {
			n.running.Store(false)

			if err := n.coord.Deregister(ctx, service.KindBroker.String(), n.id); err != nil {
				n.logger.Warn("Failed to deregister broker", "error", err)
			}

			var errs []error
			if err := n.leave(); err != nil {
				errs = append(errs, fmt.Errorf("stop broker: %w", err))
			}
			if err := n.lease.Release(); err != nil {
				errs = append(errs, fmt.Errorf("release port: %w", err))
			}
			n.closeErr = multierr.Combine(errs...)
		},
	)
	return n.closeErr
}
