//go:build unit

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/hugolhafner/go-streams-testing/committer"
	"github.com/hugolhafner/go-streams-testing/connector"
	"github.com/hugolhafner/go-streams-testing/errorhandler"
	"github.com/hugolhafner/go-streams-testing/kafka"
	mockkafka "github.com/hugolhafner/go-streams-testing/kafka/mock"
	"github.com/hugolhafner/go-streams-testing/logger"
	mocklogger "github.com/hugolhafner/go-streams-testing/logger/mock"
	"github.com/hugolhafner/go-streams-testing/offset"
	"github.com/hugolhafner/go-streams-testing/otel"
)

const offsetsTopic = "test-offsets"

func newTestRunner(
	client *mockkafka.Client, task connector.SourceTask, handler errorhandler.Handler, tel *otel.Telemetry,
) *taskRunner {
	store := offset.NewStore(client, offsetsTopic)
	if tel == nil {
		tel = otel.Noop()
	}

	return &taskRunner{
		name:         "seq",
		task:         task,
		producer:     client,
		reader:       offset.Wrap(store.Reader("seq")),
		writer:       store.Writer("seq"),
		committer:    committer.NewPeriodicCommitter(committer.WithMaxCount(1), committer.WithMaxInterval(time.Hour)),
		handler:      handler,
		tel:          tel,
		pollInterval: 5 * time.Millisecond,
		stopTimeout:  time.Second,
		logger:       logger.NewNoopLogger(),
		log:          newTaskLog(client, Config{GroupID: "test"}, "worker-0", logger.NewNoopLogger()),
		pending:      make(map[string]offset.Entry),
	}
}

func sequenceConfig(limit string) connector.TaskConfig {
	return connector.TaskConfig{
		connector.ConfigTopic:      "rows",
		connector.ConfigPartitions: "a",
		connector.ConfigBatchSize:  "2",
		connector.ConfigLimit:      limit,
	}
}

func committedPosition(_ *testing.T, client *mockkafka.Client) (float64, bool) {
	store := offset.NewStore(client, offsetsTopic)
	rec, err := offset.Wrap(store.Reader("seq")).Offset(context.Background(), connector.SequencePartition("a"))
	if err != nil {
		return 0, false
	}
	pos, ok := rec["position"].(float64)
	return pos, ok
}

func TestTaskRunner_ProducesAndCommits(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()
	r := newTestRunner(client, &connector.SequenceTask{}, errorhandler.LogAndFail(logger.NewNoopLogger()), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.run(ctx, sequenceConfig("5")) }()

	require.Eventually(
		t, func() bool {
			pos, ok := committedPosition(t, client)
			return ok && pos == 4
		}, 2*time.Second, 10*time.Millisecond,
	)

	cancel()
	require.NoError(t, <-done)
	require.Len(t, client.ProducedTo("rows"), 5)
}

func TestTaskRunner_ResumesAfterRestart(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()

	ctx, cancel := context.WithCancel(context.Background())
	first := newTestRunner(client, &connector.SequenceTask{}, errorhandler.LogAndFail(logger.NewNoopLogger()), nil)
	done := make(chan error, 1)
	go func() { done <- first.run(ctx, sequenceConfig("3")) }()

	require.Eventually(
		t, func() bool {
			pos, ok := committedPosition(t, client)
			return ok && pos == 2
		}, 2*time.Second, 10*time.Millisecond,
	)
	cancel()
	require.NoError(t, <-done)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	task := &connector.SequenceTask{}
	second := newTestRunner(client, task, errorhandler.LogAndFail(logger.NewNoopLogger()), nil)
	go func() { done <- second.run(ctx, sequenceConfig("6")) }()

	require.Eventually(
		t, func() bool {
			pos, ok := committedPosition(t, client)
			return ok && pos == 5
		}, 2*time.Second, 10*time.Millisecond,
	)
	cancel()
	require.NoError(t, <-done)

	rows := client.ProducedTo("rows")
	require.Len(t, rows, 6)
	require.Equal(t, "3", string(rows[3].Value))
}

type flakyTask struct {
	connector.SequenceTask
	failures atomic.Int32
}

func (f *flakyTask) Poll(ctx context.Context) ([]connector.Row, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("source hiccup")
	}
	return f.SequenceTask.Poll(ctx)
}

func TestTaskRunner_PollErrorContinue(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()
	task := &flakyTask{}
	task.failures.Store(2)

	l := mocklogger.New()
	r := newTestRunner(client, task, errorhandler.LogAndContinue(l), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.run(ctx, sequenceConfig("2")) }()

	require.Eventually(
		t, func() bool { return len(client.ProducedTo("rows")) == 2 }, 2*time.Second, 10*time.Millisecond,
	)
	cancel()
	require.NoError(t, <-done)
	l.AssertCalledWithKV(t, "task step failed, skipping", "phase", "poll")
}

func TestTaskRunner_PollErrorFail(t *testing.T) {
	t.Parallel()
	client := mockkafka.NewClient()
	task := &flakyTask{}
	task.failures.Store(1)

	r := newTestRunner(client, task, errorhandler.SilentFail(), nil)
	err := r.run(context.Background(), sequenceConfig("2"))
	require.ErrorContains(t, err, "source hiccup")
	require.Empty(t, client.ProducedTo("rows"))

	_, ok := committedPosition(t, client)
	require.False(t, ok)
}

func TestTaskRunner_ProductionFailureDoesNotCommit(t *testing.T) {
	t.Parallel()
	sendErr := errors.New("broker down")
	client := mockkafka.NewClient(
		mockkafka.WithSendErrorFunc(
			func(topic string, _, _ []byte) error {
				if topic == "rows" {
					return sendErr
				}
				return nil
			},
		),
	)

	r := newTestRunner(client, &connector.SequenceTask{}, errorhandler.SilentFail(), nil)
	err := r.run(context.Background(), sequenceConfig("2"))
	require.ErrorIs(t, err, sendErr)

	_, ok := committedPosition(t, client)
	require.False(t, ok)
}

func TestTaskRunner_InjectsTraceContext(t *testing.T) {
	t.Parallel()
	tp := sdktrace.NewTracerProvider()
	tel, err := otel.NewTelemetry(tp, nil, nil)
	require.NoError(t, err)

	client := mockkafka.NewClient()
	r := newTestRunner(client, &connector.SequenceTask{}, errorhandler.SilentFail(), tel)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.run(ctx, sequenceConfig("1")) }()

	require.Eventually(
		t, func() bool { return len(client.ProducedTo("rows")) == 1 }, 2*time.Second, 10*time.Millisecond,
	)
	cancel()
	require.NoError(t, <-done)

	_, ok := kafka.HeaderValue(client.ProducedTo("rows")[0].Headers, "traceparent")
	require.True(t, ok)
}
