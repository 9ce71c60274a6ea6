//go:build unit

package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

func TestNewKgoClient_AllowsAutoTopicCreation(t *testing.T) {
	t.Parallel()

	kc, err := NewKgoClient(WithBootstrapServers([]string{"127.0.0.1:1"}), WithClientID("test"))
	require.NoError(t, err)
	t.Cleanup(kc.Close)

	require.Equal(t, true, kc.client.OptValue(kgo.AllowAutoTopicCreation))
	require.Equal(t, "test", kc.client.OptValue(kgo.ClientID))
}
