//go:build unit

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hugolhafner/go-streams-testing/connector"
	"github.com/hugolhafner/go-streams-testing/errorhandler"
	mockkafka "github.com/hugolhafner/go-streams-testing/kafka/mock"
	"github.com/hugolhafner/go-streams-testing/logger"
	mocklogger "github.com/hugolhafner/go-streams-testing/logger/mock"
)

func testTaskLog(client *mockkafka.Client) *taskLog {
	return newTaskLog(client, Config{GroupID: "test"}, "worker-0", logger.NewNoopLogger())
}

func statusStates(t *testing.T, client *mockkafka.Client) []TaskState {
	t.Helper()

	var states []TaskState
	for _, rec := range client.ProducedTo("test-status") {
		s, err := testTaskLog(client).statusSerde.Deserialise("test-status", rec.Value)
		require.NoError(t, err)
		states = append(states, s.State)
	}
	return states
}

func TestTaskRunner_RecordsConfigAndStatus(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()
	r := newTestRunner(client, &connector.SequenceTask{}, errorhandler.LogAndFail(logger.NewNoopLogger()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.run(ctx, sequenceConfig("2")) }()

	require.Eventually(
		t, func() bool { return len(client.ProducedTo("rows")) == 2 }, 2*time.Second, 10*time.Millisecond,
	)
	cancel()
	require.NoError(t, <-done)

	require.Equal(t, []TaskState{TaskRunning, TaskStopped}, statusStates(t, client))

	statuses, err := testTaskLog(client).statuses(context.Background())
	require.NoError(t, err)
	require.Equal(t, TaskStatus{Task: "seq", State: TaskStopped, Worker: "worker-0"}, statuses["seq"])

	configs, err := testTaskLog(client).configs(context.Background())
	require.NoError(t, err)
	require.Equal(t, sequenceConfig("2"), configs["seq"])
}

func TestTaskRunner_RecordsFailure(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()
	task := &flakyTask{}
	task.failures.Store(1)

	r := newTestRunner(client, task, errorhandler.SilentFail(), nil)
	err := r.run(context.Background(), sequenceConfig("2"))
	require.Error(t, err)

	require.Equal(t, []TaskState{TaskRunning, TaskFailed}, statusStates(t, client))

	statuses, err := testTaskLog(client).statuses(context.Background())
	require.NoError(t, err)
	require.Contains(t, statuses["seq"].Error, "source hiccup")
}

type failingStartTask struct {
	connector.SequenceTask
}

func (*failingStartTask) Start(context.Context, connector.TaskContext, connector.TaskConfig) error {
	return errors.New("bad config")
}

func TestTaskRunner_RecordsStartFailure(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()

	r := newTestRunner(client, &failingStartTask{}, errorhandler.SilentFail(), nil)
	err := r.run(context.Background(), sequenceConfig("2"))
	require.ErrorContains(t, err, "bad config")

	require.Equal(t, []TaskState{TaskFailed}, statusStates(t, client))
}

func TestTaskRunner_StatusWriteFailureDoesNotStopTask(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient(
		mockkafka.WithSendErrorFunc(
			func(topic string, _, _ []byte) error {
				if topic == "test-status" {
					return errors.New("status topic down")
				}
				return nil
			},
		),
	)

	l := mocklogger.New()
	r := newTestRunner(client, &connector.SequenceTask{}, errorhandler.LogAndFail(l), nil)
	r.logger = l

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.run(ctx, sequenceConfig("2")) }()

	require.Eventually(
		t, func() bool { return len(client.ProducedTo("rows")) == 2 }, 2*time.Second, 10*time.Millisecond,
	)
	cancel()
	require.NoError(t, <-done)
	l.AssertCalledWithKV(t, "Failed to record task status", "state", TaskRunning)
}

func TestTaskLog_ReplayKeepsLatestAndSkipsBadRecords(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()
	tl := testTaskLog(client)
	ctx := context.Background()

	require.NoError(t, tl.putStatus(ctx, "a", TaskRunning, nil))
	require.NoError(t, tl.putStatus(ctx, "b", TaskRunning, nil))
	require.NoError(t, tl.putStatus(ctx, "a", TaskFailed, errors.New("boom")))
	require.NoError(t, client.Send(ctx, "test-status", []byte("b"), nil, nil))
	client.Append("test-status", []byte("c"), []byte("{not json"))

	statuses, err := tl.statuses(ctx)
	require.NoError(t, err)
	require.Equal(
		t, map[string]TaskStatus{
			"a": {Task: "a", State: TaskFailed, Worker: "worker-0", Error: "boom"},
		}, statuses,
	)
}

func TestTaskLog_ReadError(t *testing.T) {
	t.Parallel()
	readErr := errors.New("unreachable")
	client := mockkafka.NewClient(mockkafka.WithReadError(readErr))

	_, err := testTaskLog(client).statuses(context.Background())
	require.ErrorIs(t, err, readErr)
}
