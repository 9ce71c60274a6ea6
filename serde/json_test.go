//go:build unit

package serde_test

import (
	"testing"

	"github.com/hugolhafner/go-streams-testing/serde"
	"github.com/stretchr/testify/require"
)

func TestJSON_DeterministicMapKeys(t *testing.T) {
	t.Parallel()
	s := serde.JSON[[]any]()

	a, err := s.Serialise("", []any{"ns", map[string]any{"b": 1, "a": "<x>"}})
	require.NoError(t, err)
	b, err := s.Serialise("", []any{"ns", map[string]any{"a": "<x>", "b": 1}})
	require.NoError(t, err)

	require.Equal(t, string(a), string(b))
	require.Equal(t, `["ns",{"a":"<x>","b":1}]`, string(a))
}

func TestJSON_Deserialise(t *testing.T) {
	t.Parallel()
	s := serde.JSON[map[string]any]()

	v, err := s.Deserialise("", []byte(`{"offset":3}`))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"offset": float64(3)}, v)

	_, err = s.Deserialise("", []byte(`{`))
	require.Error(t, err)
}
