package mockkafka

import (
	"time"
)

// Option is a functional option for configuring a mock Client.
type Option func(*Client)

// WithReadDelay adds an artificial delay to ReadToEnd calls.
// This can be useful for testing timeout behavior.
func WithReadDelay(d time.Duration) Option {
	return func(c *Client) {
		c.readDelay = d
	}
}

// WithSendError configures an error to be returned by all Send calls.
func WithSendError(err error) Option {
	return func(c *Client) {
		c.sendErr = func(string, []byte, []byte) error { return err }
	}
}

// WithSendErrorFunc configures a per-record Send error hook.
func WithSendErrorFunc(fn func(topic string, key, value []byte) error) Option {
	return func(c *Client) {
		c.sendErr = fn
	}
}

// WithReadError configures an error to be returned by all ReadToEnd calls.
func WithReadError(err error) Option {
	return func(c *Client) {
		c.readErr = func(string) error { return err }
	}
}

// WithEnsureTopicsError configures an error to be returned by EnsureTopics.
func WithEnsureTopicsError(err error) Option {
	return func(c *Client) {
		c.ensureErr = err
	}
}

// WithPingError configures an error to be returned by Ping.
func WithPingError(err error) Option {
	return func(c *Client) {
		c.pingErr = err
	}
}
