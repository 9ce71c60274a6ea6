package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hugolhafner/dskit/backoff"
)

// WaitReady polls probe until it succeeds or ctx expires. The returned
// error wraps ErrNotReady and the last probe failure.
func WaitReady(ctx context.Context, interval time.Duration, probe func(ctx context.Context) error) error {
	b := backoff.NewFixed(interval)

	var lastErr error
	for attempt := uint(1); ; attempt++ {
		if lastErr = probe(ctx); lastErr == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w (last probe: %w)", ErrNotReady, ctx.Err(), lastErr)
		case <-time.After(b.Next(attempt)):
		}
	}
}
