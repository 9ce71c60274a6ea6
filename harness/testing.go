package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StartT starts a harness for the duration of a test and closes it during
// cleanup.
func StartT(tb testing.TB, cfg Config) *Harness {
	tb.Helper()

	h, err := Start(context.Background(), cfg)
	require.NoError(tb, err, "start harness")

	tb.Cleanup(
		func() {
			assert.NoError(tb, h.Close(), "close harness")
		},
	)
	return h
}
