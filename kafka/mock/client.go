package mockkafka

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/hugolhafner/go-streams-testing/kafka"
)

var _ kafka.Client = (*Client)(nil)

var ErrClosed = errors.New("mock client closed")

// ProducedRecord represents a record that was sent via the mock producer.
type ProducedRecord struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []kafka.Header
}

// Client is an in-memory kafka.Client. Every topic has a single partition.
type Client struct {
	mu sync.RWMutex

	topics   map[string][]kafka.ConsumerRecord
	produced []ProducedRecord

	sendErr   func(topic string, key, value []byte) error
	readErr   func(topic string) error
	ensureErr error
	pingErr   error
	readDelay time.Duration

	readCalls int
	closed    bool
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		topics:   make(map[string][]kafka.ConsumerRecord),
		produced: make([]ProducedRecord, 0),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Send(ctx context.Context, topic string, key, value []byte, headers []kafka.Header) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if c.sendErr != nil {
		if err := c.sendErr(topic, key, value); err != nil {
			return err
		}
	}

	c.appendLocked(topic, key, value, headers)
	c.produced = append(
		c.produced, ProducedRecord{
			Topic:   topic,
			Key:     key,
			Value:   value,
			Headers: headers,
		},
	)

	return nil
}

// Append writes a raw record to topic without recording it as produced.
// Useful for seeding stored state, including values a reader cannot decode.
func (c *Client) Append(topic string, key, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.appendLocked(topic, key, value, nil)
}

func (c *Client) appendLocked(topic string, key, value []byte, headers []kafka.Header) {
	log := c.topics[topic]
	c.topics[topic] = append(
		log, kafka.ConsumerRecord{
			Topic:     topic,
			Partition: 0,
			Offset:    int64(len(log)),
			Key:       key,
			Value:     value,
			Headers:   headers,
			Timestamp: time.Now(),
		},
	)
}

func (c *Client) Flush(ctx context.Context) error {
	return ctx.Err()
}

func (c *Client) ReadToEnd(ctx context.Context, topic string) ([]kafka.ConsumerRecord, error) {
	if c.readDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.readDelay):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.readCalls++

	if c.closed {
		return nil, ErrClosed
	}

	if c.readErr != nil {
		if err := c.readErr(topic); err != nil {
			return nil, err
		}
	}

	log := c.topics[topic]
	out := make([]kafka.ConsumerRecord, len(log))
	for i, r := range log {
		out[i] = r.Copy()
	}

	return out, nil
}

func (c *Client) EnsureTopics(ctx context.Context, partitions int32, topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ensureErr != nil {
		return c.ensureErr
	}

	for _, t := range topics {
		if _, ok := c.topics[t]; !ok {
			c.topics[t] = nil
		}
	}

	return nil
}

func (c *Client) ListTopics(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.topics))
	for t := range c.topics {
		names = append(names, t)
	}
	slices.Sort(names)

	return names, nil
}

func (c *Client) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	return c.pingErr
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
}

// ProducedRecords returns every record sent through Send.
func (c *Client) ProducedRecords() []ProducedRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ProducedRecord, len(c.produced))
	copy(out, c.produced)
	return out
}

// ProducedTo returns the records sent to topic.
func (c *Client) ProducedTo(topic string) []ProducedRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []ProducedRecord
	for _, r := range c.produced {
		if r.Topic == topic {
			out = append(out, r)
		}
	}
	return out
}

// ReadCalls returns how many times ReadToEnd was invoked.
func (c *Client) ReadCalls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.readCalls
}

func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

// SetReadError replaces the read error hook after construction.
func (c *Client) SetReadError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		c.readErr = nil
		return
	}
	c.readErr = func(string) error { return err }
}
