package kafka

import (
	"context"
)

// Client is the narrow view of the broker cluster used by worker nodes for
// their internal storage and by source tasks for producing rows.
type Client interface {
	Producer
	Reader
	Admin

	Ping(ctx context.Context) error
	Close()
}

type Producer interface {
	Send(ctx context.Context, topic string, key, value []byte, headers []Header) error
	Flush(ctx context.Context) error
}

type Reader interface {
	// ReadToEnd returns every record in topic up to the end offsets observed
	// when the call started, ordered by partition then offset.
	ReadToEnd(ctx context.Context, topic string) ([]ConsumerRecord, error)
}

type Admin interface {
	// EnsureTopics creates the topics, treating already existing topics as success.
	EnsureTopics(ctx context.Context, partitions int32, topics ...string) error
	ListTopics(ctx context.Context) ([]string, error)
}
