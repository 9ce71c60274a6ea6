//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hugolhafner/go-streams-testing/committer"
	"github.com/hugolhafner/go-streams-testing/connector"
	"github.com/hugolhafner/go-streams-testing/harness"
	"github.com/hugolhafner/go-streams-testing/offset"
	"github.com/hugolhafner/go-streams-testing/port"
	"github.com/hugolhafner/go-streams-testing/worker"
)

// TestE2E_PreReservedWorkerPort boots the full stack with an explicit
// worker port and checks every port is free again after teardown.
func TestE2E_PreReservedWorkerPort(t *testing.T) {
	a := port.NewAllocator(port.DefaultHost)
	workerPort := reservePort(t, a)

	cfg := harnessConfig(t, a)
	cfg.Coordination = 0
	cfg.Brokers = []int{0}
	cfg.Workers = []int{workerPort}

	h, err := harness.Start(context.Background(), cfg)
	require.NoError(t, err)

	first, err := h.Workers().ConnectionString().FirstPort()
	require.NoError(t, err)
	require.Equal(t, workerPort, first)

	ports := allPorts(t, h)
	require.Len(t, ports, 3)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	require.Empty(t, a.Leased())
	for _, p := range ports {
		require.True(t, port.Free(port.DefaultHost, p), "port %d still bound", p)
	}
}

// TestE2E_TaskResumesOnAnotherWorker runs a sequence task on one worker,
// stops it, and resumes it on a second worker from the committed offset.
func TestE2E_TaskResumesOnAnotherWorker(t *testing.T) {
	a := port.NewAllocator(port.DefaultHost)
	cfg := harnessConfig(t, a)
	cfg.Brokers = []int{0, 0}
	cfg.Workers = []int{0, 0}
	cfg.WorkerOptions = []worker.Option{
		worker.WithCommitter(committer.WithMaxCount(1)),
		worker.WithPollInterval(10 * time.Millisecond),
	}

	h := harness.StartT(t, cfg)
	topic := testGroupID(t, "rows")
	taskCfg := func(limit string) connector.TaskConfig {
		return connector.TaskConfig{
			connector.ConfigTopic:      topic,
			connector.ConfigPartitions: "a",
			connector.ConfigBatchSize:  "1",
			connector.ConfigLimit:      limit,
		}
	}

	reader := h.Workers().Node(1).OffsetReader("seq")
	waitFor := func(pos float64) {
		require.Eventually(
			t, func() bool {
				rec, err := reader.Offset(context.Background(), connector.SequencePartition("a"))
				return err == nil && rec["position"] == pos
			}, eventualWait, 50*time.Millisecond,
		)
	}

	run := func(node *worker.Node, limit string) (context.CancelFunc, chan error) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- node.RunTask(ctx, "seq", &connector.SequenceTask{}, taskCfg(limit)) }()
		return cancel, done
	}

	cancel, done := run(h.Workers().Node(0), "3")
	waitFor(2)
	cancel()
	require.NoError(t, <-done)

	cancel, done = run(h.Workers().Node(1), "5")
	waitFor(4)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []string{"0", "1", "2", "3", "4"}, consumeValues(t, h.Brokers().ConnectionString(), topic, 5))

	got, err := reader.Offsets(
		context.Background(), []offset.PartitionKey{connector.SequencePartition("a"), {"unknown": true}},
	)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
}

func TestE2E_BrokerFailureStopsCoordination(t *testing.T) {
	a := port.NewAllocator(port.DefaultHost)
	held, err := a.Allocate(0)
	require.NoError(t, err)
	defer held.Release()

	cfg := harnessConfig(t, a)
	cfg.Brokers = []int{0, held.Port()}

	_, err = harness.Start(context.Background(), cfg)
	require.ErrorIs(t, err, port.ErrUnavailable)
	require.Equal(t, []int{held.Port()}, a.Leased())
}
