package worker

import (
	"context"

	"github.com/hugolhafner/go-streams-testing/broker"
	"github.com/hugolhafner/go-streams-testing/service"
)

var _ service.Handle = (*Pool)(nil)

type Pool struct {
	upstream service.ConnectionString
	group    *service.Group[*Node]
	cfg      Config
}

// Local starts one worker per entry of ports against brokers. Nodes start
// sequentially; a 0 entry requests an ephemeral port. If any node fails,
// the nodes already started are stopped before the error is returned.
// Close must be called before brokers is closed.
func Local(brokers *broker.Cluster, ports []int, opts ...Option) (*Pool, error) {
	return LocalContext(context.Background(), brokers, ports, opts...)
}

// LocalContext is Local with a parent context bounding startup.
func LocalContext(ctx context.Context, brokers *broker.Cluster, ports []int, opts ...Option) (*Pool, error) {
	cfg := newConfig(opts...)
	p := &Pool{cfg: cfg}

	running := brokers != nil && brokers.Running()
	if running {
		p.upstream = brokers.ConnectionString()
	}

	g, err := service.StartGroup(ctx, service.KindWorker, ports, cfg.Config, p.startNode(running))
	if err != nil {
		return nil, err
	}
	p.group = g

	return p, nil
}

func (p *Pool) ConnectionString() service.ConnectionString {
	return p.group.ConnectionString()
}

// Upstream is the broker connection string captured at start.
func (p *Pool) Upstream() service.ConnectionString {
	return p.upstream
}

func (p *Pool) GroupID() string {
	return p.cfg.GroupID
}

func (p *Pool) Running() bool {
	return p.group.Running()
}

func (p *Pool) Nodes() []*Node {
	return p.group.Nodes()
}

// Node returns the i-th node in start order, or nil when out of range.
func (p *Pool) Node(i int) *Node {
	nodes := p.group.Nodes()
	if i < 0 || i >= len(nodes) {
		return nil
	}
	return nodes[i]
}

func (p *Pool) Close() error {
	return p.group.Close()
}
