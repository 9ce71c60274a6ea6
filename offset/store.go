package offset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hugolhafner/go-streams-testing/kafka"
	"github.com/hugolhafner/go-streams-testing/logger"
	"github.com/hugolhafner/go-streams-testing/otel"
	"github.com/hugolhafner/go-streams-testing/serde"
)

const DefaultLookupTimeout = 5 * time.Second

// Backend is the part of the broker client the store needs.
type Backend interface {
	kafka.Producer
	kafka.Reader
}

type StoreConfig struct {
	LookupTimeout time.Duration
	Logger        logger.Logger
	Telemetry     *otel.Telemetry
}

type StoreOption func(*StoreConfig)

func WithLookupTimeout(d time.Duration) StoreOption {
	return func(c *StoreConfig) {
		c.LookupTimeout = d
	}
}

func WithLogger(l logger.Logger) StoreOption {
	return func(c *StoreConfig) {
		c.Logger = l
	}
}

func WithTelemetry(t *otel.Telemetry) StoreOption {
	return func(c *StoreConfig) {
		c.Telemetry = t
	}
}

func defaultStoreConfig() StoreConfig {
	return StoreConfig{
		LookupTimeout: DefaultLookupTimeout,
		Logger:        logger.NewNoopLogger(),
		Telemetry:     otel.Noop(),
	}
}

// Store keeps offsets in a single log-compacted style topic. The latest
// record per key wins and a tombstone removes the key.
type Store struct {
	backend Backend
	topic   string
	config  StoreConfig
	logger  logger.Logger

	keys   serde.Serde[any]
	values serde.Serde[*structpb.Struct]
}

func NewStore(backend Backend, topic string, opts ...StoreOption) *Store {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		backend: backend,
		topic:   topic,
		config:  cfg,
		logger:  cfg.Logger.With("component", "offset-store", "topic", topic),
		keys:    keySerde,
		values: serde.Protobuf(func() *structpb.Struct {
			return &structpb.Struct{}
		}),
	}
}

func (s *Store) Topic() string {
	return s.topic
}

func (s *Store) storageKey(namespace string, p PartitionKey) ([]byte, error) {
	b, err := s.keys.Serialise(s.topic, []any{namespace, map[string]any(p)})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPartition, err)
	}
	return b, nil
}

// Write commits entries for namespace. Every entry is validated before any
// is sent, so an invalid entry writes nothing.
func (s *Store) Write(ctx context.Context, namespace string, entries []Entry) error {
	type pending struct {
		key, value []byte
	}

	batch := make([]pending, 0, len(entries))
	for _, e := range entries {
		key, err := s.storageKey(namespace, e.Partition)
		if err != nil {
			return err
		}

		// absent and empty are the same to readers
		if len(e.Offset) == 0 {
			batch = append(batch, pending{key: key})
			continue
		}

		st, err := structpb.NewStruct(e.Offset)
		if err != nil {
			return fmt.Errorf("encode offset for %s: %w", key, err)
		}
		value, err := s.values.Serialise(s.topic, st)
		if err != nil {
			return fmt.Errorf("encode offset for %s: %w", key, err)
		}
		batch = append(batch, pending{key: key, value: value})
	}

	for _, p := range batch {
		if err := s.backend.Send(ctx, s.topic, p.key, p.value, nil); err != nil {
			return fmt.Errorf("write offsets to %s: %w", s.topic, err)
		}
	}

	return s.backend.Flush(ctx)
}

// latest replays the topic and returns the newest value per key.
func (s *Store) latest(ctx context.Context) (map[string][]byte, error) {
	if s.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.LookupTimeout)
		defer cancel()
	}

	records, err := s.backend.ReadToEnd(ctx, s.topic)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrBackendUnavailable, s.topic, err)
	}

	state := make(map[string][]byte, len(records))
	for _, r := range records {
		if r.Tombstone() {
			delete(state, string(r.Key))
			continue
		}
		state[string(r.Key)] = r.Value
	}
	return state, nil
}

func (s *Store) lookup(ctx context.Context, namespace string, partitions []PartitionKey) (Offsets, error) {
	if len(partitions) == 0 {
		return NewOffsets(), nil
	}

	state, err := s.latest(ctx)
	if err != nil {
		s.record(ctx, otel.LookupFailed, int64(len(partitions)))
		s.logger.Warn("Offset lookup failed", "namespace", namespace, "error", err)
		return Offsets{}, err
	}

	var (
		out                   = NewOffsets()
		hits, misses, omitted int64
		lastErr               error
	)

	for _, p := range partitions {
		key, err := s.storageKey(namespace, p)
		if err != nil {
			omitted++
			lastErr = err
			continue
		}

		raw, ok := state[string(key)]
		if !ok {
			misses++
			continue
		}

		st, err := s.values.Deserialise(s.topic, raw)
		if err != nil {
			omitted++
			lastErr = fmt.Errorf("decode offset for %s: %w", key, err)
			s.logger.Debug("Omitting unreadable offset", "key", string(key), "error", err)
			continue
		}

		out.put(Entry{Partition: p, Offset: st.AsMap()})
		hits++
	}

	s.record(ctx, otel.LookupHit, hits)
	s.record(ctx, otel.LookupMiss, misses)
	s.record(ctx, otel.LookupOmitted, omitted)

	if omitted == int64(len(partitions)) {
		return Offsets{}, fmt.Errorf("%w: every requested entry failed: %w", ErrBackendUnavailable, lastErr)
	}

	return out, nil
}

func (s *Store) record(ctx context.Context, status string, n int64) {
	if n == 0 {
		return
	}
	s.config.Telemetry.OffsetLookups.Add(
		ctx, n, metric.WithAttributes(otel.AttrLookupStatus.String(status)),
	)
}

// Reader returns the raw view of namespace. Absent partitions come back as
// nil Records; wrap it with Wrap before handing it to a task.
func (s *Store) Reader(namespace string) StorageReader {
	return storeReader{store: s, namespace: namespace}
}

func (s *Store) Writer(namespace string) Writer {
	return storeWriter{store: s, namespace: namespace}
}

type storeReader struct {
	store     *Store
	namespace string
}

func (r storeReader) Offset(ctx context.Context, p PartitionKey) (Record, error) {
	if _, err := p.Key(); err != nil {
		return nil, err
	}

	offsets, err := r.store.lookup(ctx, r.namespace, []PartitionKey{p})
	if err != nil {
		return nil, err
	}

	rec, ok := offsets.Get(p)
	if !ok {
		return nil, nil
	}
	return rec, nil
}

func (r storeReader) Offsets(ctx context.Context, partitions []PartitionKey) (Offsets, error) {
	return r.store.lookup(ctx, r.namespace, partitions)
}

type storeWriter struct {
	store     *Store
	namespace string
}

func (w storeWriter) Write(ctx context.Context, entries ...Entry) error {
	return w.store.Write(ctx, w.namespace, entries)
}

// IsUnavailable reports whether err is a whole-request lookup failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
