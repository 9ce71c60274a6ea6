//go:build integration

package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hugolhafner/go-streams-testing/broker"
	"github.com/hugolhafner/go-streams-testing/coordination"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/service"
)

func startCoordination(t *testing.T, a *port.Allocator) *coordination.Service {
	t.Helper()
	coord, err := coordination.Local(0, service.WithPortAllocator(a))
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Close() })
	return coord
}

func TestLocal_StartsAndRegisters(t *testing.T) {
	t.Parallel()
	a := port.NewAllocator(port.DefaultHost)
	coord := startCoordination(t, a)

	cluster, err := broker.Local(coord, []int{0, 0}, service.WithPortAllocator(a))
	require.NoError(t, err)

	ports, err := cluster.ConnectionString().Ports()
	require.NoError(t, err)
	require.Len(t, ports, 2)
	require.NotEqual(t, ports[0], ports[1])
	require.Equal(t, coord.ConnectionString(), cluster.Upstream())
	for _, p := range ports {
		require.False(t, port.Free(port.DefaultHost, p), "port %d must stay bound while running", p)
	}

	registered := coord.Registry().Nodes(service.KindBroker.String())
	require.Len(t, registered, 2)
	require.Equal(t, cluster.Nodes()[0].Addr(), registered[0].Addr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = cluster.Topics(ctx)
	require.NoError(t, err)

	require.NoError(t, cluster.Close())
	require.NoError(t, cluster.Close())
	require.Empty(t, coord.Registry().Nodes(service.KindBroker.String()))
	for _, p := range ports {
		require.False(t, a.InUse(p))
		require.True(t, port.Free(port.DefaultHost, p))
	}
}

func TestLocal_ExplicitPort(t *testing.T) {
	t.Parallel()
	a := port.NewAllocator(port.DefaultHost)
	coord := startCoordination(t, a)

	probe, err := a.Allocate(0)
	require.NoError(t, err)
	want := probe.Port()
	require.NoError(t, probe.Release())

	cluster, err := broker.Local(coord, []int{want}, service.WithPortAllocator(a))
	require.NoError(t, err)
	defer cluster.Close()

	got, err := cluster.ConnectionString().FirstPort()
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLocal_CoordinationNotRunning(t *testing.T) {
	t.Parallel()
	a := port.NewAllocator(port.DefaultHost)

	coord, err := coordination.Local(0, service.WithPortAllocator(a))
	require.NoError(t, err)
	require.NoError(t, coord.Close())

	start := time.Now()
	_, err = broker.Local(coord, []int{0}, service.WithPortAllocator(a), service.WithStartupTimeout(2*time.Second))
	require.ErrorIs(t, err, service.ErrUpstreamNotRunning)
	require.Less(t, time.Since(start), 3*time.Second)
	require.Empty(t, a.Leased())

	_, err = broker.Local(nil, []int{0}, service.WithPortAllocator(a))
	require.ErrorIs(t, err, service.ErrUpstreamNotRunning)
}

func TestLocal_PartialFailureStopsEarlierNodes(t *testing.T) {
	t.Parallel()
	a := port.NewAllocator(port.DefaultHost)
	coord := startCoordination(t, a)

	held, err := a.Allocate(0)
	require.NoError(t, err)
	defer held.Release()

	_, err = broker.Local(coord, []int{0, held.Port()}, service.WithPortAllocator(a))
	require.ErrorIs(t, err, port.ErrUnavailable)

	pe, ok := service.AsPartialStartupError(err)
	require.True(t, ok)
	require.Equal(t, 1, pe.Started)

	require.Empty(t, coord.Registry().Nodes(service.KindBroker.String()))
	require.ElementsMatch(t, append([]int{held.Port()}, coordPorts(t, coord)...), a.Leased())
}

func TestLocal_NoPorts(t *testing.T) {
	t.Parallel()
	a := port.NewAllocator(port.DefaultHost)
	coord := startCoordination(t, a)

	_, err := broker.Local(coord, nil, service.WithPortAllocator(a))
	require.ErrorIs(t, err, service.ErrNoNodes)
}

func coordPorts(t *testing.T, coord *coordination.Service) []int {
	t.Helper()
	ports, err := coord.ConnectionString().Ports()
	require.NoError(t, err)
	return ports
}
