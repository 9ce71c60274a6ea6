package errorhandler

import (
	"context"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-streams-testing/logger"
)

func fields(ec ErrorContext) []any {
	return []any{
		"error", ec.Error,
		"task", ec.Task,
		"phase", ec.Phase.String(),
		"topic", ec.Topic,
		"rows", ec.Rows,
		"attempt", ec.Attempt,
	}
}

// LogAndContinue logs the error and drops the failed batch
func LogAndContinue(l logger.Logger) Handler {
	return HandlerFunc(
		func(_ context.Context, ec ErrorContext) Action {
			l.Error("task step failed, skipping", fields(ec)...)
			return ActionContinue{}
		},
	)
}

// LogAndFail logs the error and stops the task
func LogAndFail(l logger.Logger) Handler {
	return HandlerFunc(
		func(_ context.Context, ec ErrorContext) Action {
			l.Error("task step failed, stopping", fields(ec)...)
			return ActionFail{}
		},
	)
}

// SilentFail stops the task without logging
func SilentFail() Handler {
	return HandlerFunc(
		func(context.Context, ErrorContext) Action {
			return ActionFail{}
		},
	)
}

// WithMaxAttempts retries with backoff until maxAttempts is reached, then
// defers to fallback.
func WithMaxAttempts(maxAttempts int, b backoff.Backoff, fallback Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			if ec.Attempt >= maxAttempts {
				return fallback.Handle(ctx, ec)
			}

			select {
			case <-ctx.Done():
				return ActionFail{}
			case <-time.After(b.Next(uint(ec.Attempt))):
			}

			return ActionRetry{}
		},
	)
}

// ActionLogger logs the action decided by the next handler
func ActionLogger(l logger.Logger, level logger.LogLevel, next Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			action := next.Handle(ctx, ec)
			l.Log(level, "Error handler decision", append([]any{"action", action.Type().String()}, fields(ec)...)...)
			return action
		},
	)
}
