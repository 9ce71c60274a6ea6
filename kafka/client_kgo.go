package kafka

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ Client = (*KgoClient)(nil)

type KgoClientConfig struct {
	BootstrapServers  []string
	ClientID          string
	RequestTimeout    time.Duration
	ReplicationFactor int16

	Logger logger.Logger
}

func defaultConfig() KgoClientConfig {
	return KgoClientConfig{
		BootstrapServers:  []string{"localhost:9092"},
		ClientID:          "go-streams-testing",
		RequestTimeout:    10 * time.Second,
		ReplicationFactor: 1,
		Logger:            logger.NewNoopLogger(),
	}
}

type KgoOption func(*KgoClientConfig)

func WithBootstrapServers(servers []string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.BootstrapServers = servers
	}
}

func WithClientID(id string) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.ClientID = id
	}
}

func WithRequestTimeout(d time.Duration) KgoOption {
	return func(cfg *KgoClientConfig) {
		if d > 0 {
			cfg.RequestTimeout = d
		}
	}
}

func WithLogger(l logger.Logger) KgoOption {
	return func(cfg *KgoClientConfig) {
		cfg.Logger = l.With("client", "kgo")
	}
}

type KgoClient struct {
	client *kgo.Client
	admin  *kadm.Client
	config KgoClientConfig

	logger logger.Logger
}

func NewKgoClient(opts ...KgoOption) (*KgoClient, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	kc := &KgoClient{config: cfg, logger: cfg.Logger}

	client, err := kgo.NewClient(kc.baseOpts()...)
	if err != nil {
		return nil, fmt.Errorf("create kgo client: %w", err)
	}

	kc.client = client
	kc.admin = kadm.NewClient(client)

	return kc, nil
}

func (k *KgoClient) baseOpts() []kgo.Opt {
	return []kgo.Opt{
		kgo.SeedBrokers(k.config.BootstrapServers...),
		kgo.ClientID(k.config.ClientID),
		kgo.WithLogger(newKgoLogger(k.logger)),
		kgo.RequestTimeoutOverhead(k.config.RequestTimeout),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
		// the metadata request must ask the broker to create unknown topics
		kgo.AllowAutoTopicCreation(),
	}
}

func (k *KgoClient) Send(ctx context.Context, topic string, key, value []byte, headers []Header) error {
	record := &kgo.Record{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: convertToKgoHeaders(headers),
	}

	k.logger.Debug("Sending record", "topic", topic, "key", string(key))

	results := k.client.ProduceSync(ctx, record)
	return results.FirstErr()
}

func (k *KgoClient) Flush(ctx context.Context) error {
	return k.client.Flush(ctx)
}

func (k *KgoClient) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

func (k *KgoClient) EnsureTopics(ctx context.Context, partitions int32, topics ...string) error {
	resp, err := k.admin.CreateTopics(ctx, partitions, k.config.ReplicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}

	for _, topic := range topics {
		r, ok := resp[topic]
		if !ok {
			return fmt.Errorf("create topics: topic %s missing from response", topic)
		}
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, r.Err)
		}
	}

	return nil
}

func (k *KgoClient) ListTopics(ctx context.Context) ([]string, error) {
	details, err := k.admin.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}

	names := details.Names()
	sort.Strings(names)
	return names, nil
}

// ReadToEnd snapshots the end offsets of topic, then consumes every
// partition from the start up to that snapshot with a throwaway direct
// consumer.
func (k *KgoClient) ReadToEnd(ctx context.Context, topic string) ([]ConsumerRecord, error) {
	ends, err := k.admin.ListEndOffsets(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("list end offsets: %w", err)
	}
	if err := ends.Error(); err != nil {
		return nil, fmt.Errorf("list end offsets: %w", err)
	}

	remaining := make(map[int32]int64)
	start := make(map[int32]kgo.Offset)
	ends.Each(
		func(o kadm.ListedOffset) {
			if o.Topic != topic || o.Offset <= 0 {
				return
			}
			remaining[o.Partition] = o.Offset
			start[o.Partition] = kgo.NewOffset().AtStart()
		},
	)

	if len(remaining) == 0 {
		return nil, nil
	}

	consumer, err := kgo.NewClient(
		append(
			k.baseOpts(),
			kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{topic: start}),
		)...,
	)
	if err != nil {
		return nil, fmt.Errorf("create reader: %w", err)
	}
	defer consumer.Close()

	var records []*kgo.Record
	for len(remaining) > 0 {
		fetches := consumer.PollFetches(ctx)
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
					return nil, fmt.Errorf("read %s: %w", topic, fe.Err)
				}
				if !kerr.IsRetriable(fe.Err) {
					return nil, fmt.Errorf("read %s-%d: %w", fe.Topic, fe.Partition, fe.Err)
				}
			}
		}

		fetches.EachRecord(
			func(r *kgo.Record) {
				end, ok := remaining[r.Partition]
				if !ok || r.Offset >= end {
					return
				}
				records = append(records, r)
				if r.Offset+1 >= end {
					delete(remaining, r.Partition)
				}
			},
		)

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", topic, err)
		}
	}

	sort.SliceStable(
		records, func(i, j int) bool {
			if records[i].Partition != records[j].Partition {
				return records[i].Partition < records[j].Partition
			}
			return records[i].Offset < records[j].Offset
		},
	)

	return convertRecords(records), nil
}

func (k *KgoClient) Close() {
	k.client.Close()
}

func convertRecords(records []*kgo.Record) []ConsumerRecord {
	converted := make([]ConsumerRecord, len(records))
	for i, r := range records {
		converted[i] = ConsumerRecord{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       r.Key,
			Value:     r.Value,
			Headers:   convertFromKgoHeaders(r.Headers),
			Timestamp: r.Timestamp,
		}
	}

	return converted
}

func convertFromKgoHeaders(headers []kgo.RecordHeader) []Header {
	converted := make([]Header, len(headers))
	for i, h := range headers {
		converted[i] = Header{Key: h.Key, Value: h.Value}
	}
	return converted
}

func convertToKgoHeaders(headers []Header) []kgo.RecordHeader {
	kgoHeaders := make([]kgo.RecordHeader, len(headers))
	for i, h := range headers {
		kgoHeaders[i] = kgo.RecordHeader{Key: h.Key, Value: h.Value}
	}
	return kgoHeaders
}
