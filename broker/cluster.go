package broker

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/hugolhafner/go-streams-testing/coordination"
	"github.com/hugolhafner/go-streams-testing/kafka"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/service"
	"github.com/twmb/franz-go/pkg/kfake"
)

var _ service.Handle = (*Cluster)(nil)

type Cluster struct {
	upstream service.ConnectionString
	group    *service.Group[*Node]
	fabric   *fabric
	cfg      service.Config
}

// fabric is the embedded cluster shared by all nodes of one Cluster.
type fabric struct {
	mu sync.Mutex
	c  *kfake.Cluster

	lnMu    sync.Mutex
	pending map[int]net.Listener
}

func newFabric() *fabric {
	return &fabric{pending: make(map[int]net.Listener)}
}

// offer makes ln the listener the embedded cluster gets for its port.
func (f *fabric) offer(port int, ln net.Listener) {
	f.lnMu.Lock()
	defer f.lnMu.Unlock()
	f.pending[port] = ln
}

// withdraw drops an offered listener that the embedded cluster never took.
func (f *fabric) withdraw(port int) net.Listener {
	f.lnMu.Lock()
	defer f.lnMu.Unlock()

	ln := f.pending[port]
	delete(f.pending, port)
	return ln
}

// listen is the embedded cluster's listen function. It only hands out
// listeners offered from port leases, so the broker never rebinds a port.
func (f *fabric) listen(_, address string) (net.Listener, error) {
	_, p, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return nil, fmt.Errorf("parse port of %s: %w", address, err)
	}

	if ln := f.withdraw(n); ln != nil {
		return ln, nil
	}
	return nil, fmt.Errorf("%w: no leased listener for %s", port.ErrUnavailable, address)
}

// Local starts one broker per entry of ports against coord. Nodes start
// sequentially; a 0 entry requests an ephemeral port. If any node fails,
// the nodes already started are stopped before the error is returned.
// Close must be called after every worker pool using this cluster has been
// closed and before coord is closed.
func Local(coord *coordination.Service, ports []int, opts ...service.Option) (*Cluster, error) {
	return LocalContext(context.Background(), coord, ports, opts...)
}

// LocalContext is Local with a parent context bounding startup.
func LocalContext(ctx context.Context, coord *coordination.Service, ports []int, opts ...service.Option) (*Cluster, error) {
	cfg := service.NewConfig(opts...)

	c := &Cluster{fabric: newFabric(), cfg: cfg}

	running := coord != nil && coord.Running()
	if running {
		c.upstream = coord.ConnectionString()
	}

	g, err := service.StartGroup(ctx, service.KindBroker, ports, cfg, c.startNode(running))
	if err != nil {
		return nil, err
	}
	c.group = g

	return c, nil
}

func (c *Cluster) ConnectionString() service.ConnectionString {
	return c.group.ConnectionString()
}

// Upstream is the coordination connection string captured at start.
func (c *Cluster) Upstream() service.ConnectionString {
	return c.upstream
}

func (c *Cluster) Running() bool {
	return c.group.Running()
}

func (c *Cluster) Nodes() []*Node {
	return c.group.Nodes()
}

// Topics lists the topics currently known to the cluster.
func (c *Cluster) Topics(ctx context.Context) ([]string, error) {
	if !c.Running() {
		return nil, service.ErrUpstreamNotRunning
	}

	client, err := kafka.NewKgoClient(
		kafka.WithBootstrapServers(c.ConnectionString().Addrs()),
		kafka.WithClientID("broker-admin"),
		kafka.WithLogger(c.cfg.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create admin client: %w", err)
	}
	defer client.Close()

	return client.ListTopics(ctx)
}

func (c *Cluster) Close() error {
	return c.group.Close()
}
