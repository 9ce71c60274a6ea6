//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/hugolhafner/go-streams-testing/harness"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/service"
)

const (
	startupWait  = 30 * time.Second
	shutdownWait = 10 * time.Second
	eventualWait = 15 * time.Second
)

func testGroupID(t *testing.T, suffix string) string {
	t.Helper()
	name := strings.ReplaceAll(strings.ToLower(t.Name()), "/", "-")
	return fmt.Sprintf("%s-%s-%d", name, suffix, time.Now().UnixNano())
}

// reservePort finds a port that is currently free and returns it unbound.
func reservePort(t *testing.T, a *port.Allocator) int {
	t.Helper()
	l, err := a.Allocate(0)
	require.NoError(t, err)
	p := l.Port()
	require.NoError(t, l.Release())
	return p
}

func harnessConfig(t *testing.T, a *port.Allocator) harness.Config {
	t.Helper()
	cfg := harness.DefaultConfig()
	cfg.GroupID = testGroupID(t, "workers")
	cfg.Ports = a
	cfg.StartupTimeout = startupWait
	cfg.ShutdownTimeout = shutdownWait
	return cfg
}

func allPorts(t *testing.T, h *harness.Harness) []int {
	t.Helper()
	var out []int
	for _, cs := range []service.ConnectionString{
		h.Coordination().ConnectionString(),
		h.Brokers().ConnectionString(),
		h.Workers().ConnectionString(),
	} {
		ports, err := cs.Ports()
		require.NoError(t, err)
		out = append(out, ports...)
	}
	return out
}

// consumeValues reads n record values from topic through a plain kgo consumer.
func consumeValues(t *testing.T, brokers service.ConnectionString, topic string, n int) []string {
	t.Helper()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers.Addrs()...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), eventualWait)
	defer cancel()

	var values []string
	for len(values) < n {
		fetches := client.PollFetches(ctx)
		require.NoError(t, ctx.Err(), "timed out after %d of %d records", len(values), n)
		fetches.EachRecord(
			func(r *kgo.Record) {
				values = append(values, string(r.Value))
			},
		)
	}
	return values
}
