//go:build unit

package mockkafka_test

import (
	"context"
	"errors"
	"testing"

	mockkafka "github.com/hugolhafner/go-streams-testing/kafka/mock"
	"github.com/stretchr/testify/require"
)

func TestClient_SendThenReadToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := mockkafka.NewClient()

	require.NoError(t, c.Send(ctx, "t", []byte("k1"), []byte("v1"), nil))
	require.NoError(t, c.Send(ctx, "t", []byte("k2"), nil, nil))
	c.Append("t", []byte("k3"), []byte("raw"))

	records, err := c.ReadToEnd(ctx, "t")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, int64(2), records[2].Offset)
	require.True(t, records[1].Tombstone())
	require.Len(t, c.ProducedTo("t"), 2)
}

func TestClient_ErrorsAndClose(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("boom")
	c := mockkafka.NewClient(mockkafka.WithReadError(boom), mockkafka.WithPingError(boom))

	_, err := c.ReadToEnd(ctx, "t")
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, c.Ping(ctx), boom)

	c.SetReadError(nil)
	_, err = c.ReadToEnd(ctx, "t")
	require.NoError(t, err)
	require.Equal(t, 2, c.ReadCalls())

	c.Close()
	require.True(t, c.Closed())
	require.ErrorIs(t, c.Send(ctx, "t", nil, nil, nil), mockkafka.ErrClosed)
}

func TestClient_EnsureAndListTopics(t *testing.T) {
	t.Parallel()
	c := mockkafka.NewClient()
	require.NoError(t, c.EnsureTopics(context.Background(), 1, "b", "a"))

	topics, err := c.ListTopics(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, topics)
}
