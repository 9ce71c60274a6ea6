//go:build unit

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePorts(t *testing.T) {
	t.Parallel()

	ports, err := parsePorts("0, 9092,,0")
	require.NoError(t, err)
	require.Equal(t, []int{0, 9092, 0}, ports)

	_, err = parsePorts("abc")
	require.Error(t, err)
}
