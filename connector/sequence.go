package connector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hugolhafner/go-streams-testing/offset"
)

// Configuration keys understood by the sequence source.
const (
	ConfigTopic      = "topic"
	ConfigPartitions = "partitions"
	ConfigBatchSize  = "batch.size"
	ConfigLimit      = "limit"
)

const (
	partitionField = "sequence"
	positionField  = "position"
)

var ErrMissingConfig = errors.New("missing required config")

var _ SourceConnector = (*SequenceConnector)(nil)

// SequenceConnector emits increasing integers for a set of named
// sequences. Each sequence is a source partition and resumes from its
// committed position.
type SequenceConnector struct {
	cfg map[string]string
}

func NewSequenceConnector() *SequenceConnector {
	return &SequenceConnector{}
}

func (c *SequenceConnector) Start(cfg map[string]string) error {
	if cfg[ConfigTopic] == "" {
		return fmt.Errorf("%w: %s", ErrMissingConfig, ConfigTopic)
	}
	if cfg[ConfigPartitions] == "" {
		return fmt.Errorf("%w: %s", ErrMissingConfig, ConfigPartitions)
	}
	c.cfg = cfg
	return nil
}

// TaskConfigs deals the sequences round-robin over at most maxTasks tasks.
func (c *SequenceConnector) TaskConfigs(maxTasks int) ([]TaskConfig, error) {
	if maxTasks < 1 {
		return nil, fmt.Errorf("max tasks must be positive, got %d", maxTasks)
	}

	names := splitList(c.cfg[ConfigPartitions])
	n := min(maxTasks, len(names))
	groups := make([][]string, n)
	for i, name := range names {
		groups[i%n] = append(groups[i%n], name)
	}

	out := make([]TaskConfig, n)
	for i, g := range groups {
		tc := make(TaskConfig, len(c.cfg))
		for k, v := range c.cfg {
			tc[k] = v
		}
		tc[ConfigPartitions] = strings.Join(g, ",")
		out[i] = tc
	}
	return out, nil
}

func (c *SequenceConnector) NewTask() SourceTask {
	return &SequenceTask{}
}

func (c *SequenceConnector) Stop() error {
	return nil
}

// SequencePartition is the partition key of a named sequence.
func SequencePartition(name string) offset.PartitionKey {
	return offset.PartitionKey{partitionField: name}
}

var _ SourceTask = (*SequenceTask)(nil)

type SequenceTask struct {
	mu       sync.Mutex
	topic    string
	batch    int
	limit    int64
	next     map[string]int64
	names    []string
	stopped  bool
	produced int64
}

func (t *SequenceTask) Start(ctx context.Context, tc TaskContext, cfg TaskConfig) error {
	t.topic = cfg[ConfigTopic]
	if t.topic == "" {
		return fmt.Errorf("%w: %s", ErrMissingConfig, ConfigTopic)
	}

	var err error
	if t.batch, err = intConfig(cfg, ConfigBatchSize, 10); err != nil {
		return err
	}
	limit, err := intConfig(cfg, ConfigLimit, 0)
	if err != nil {
		return err
	}
	t.limit = int64(limit)

	t.names = splitList(cfg[ConfigPartitions])
	keys := make([]offset.PartitionKey, len(t.names))
	for i, name := range t.names {
		keys[i] = SequencePartition(name)
	}

	committed, err := tc.OffsetReader().Offsets(ctx, keys)
	if err != nil {
		return fmt.Errorf("recover offsets: %w", err)
	}

	t.next = make(map[string]int64, len(t.names))
	for i, name := range t.names {
		rec, ok := committed.Get(keys[i])
		if !ok {
			continue
		}
		if pos, ok := rec[positionField].(float64); ok {
			t.next[name] = int64(pos) + 1
		}
	}

	tc.Logger().Info("Sequence task started", "topic", t.topic, "sequences", len(t.names), "recovered", committed.Len())
	return nil
}

// Poll emits up to batch values per sequence. Once limit values have been
// emitted for a sequence, it stays silent.
func (t *SequenceTask) Poll(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil, nil
	}

	var rows []Row
	for _, name := range t.names {
		for i := 0; i < t.batch; i++ {
			pos := t.next[name]
			if t.limit > 0 && pos >= t.limit {
				break
			}

			rows = append(
				rows, Row{
					Partition: SequencePartition(name),
					Offset:    offset.Record{positionField: pos},
					Topic:     t.topic,
					Key:       []byte(name),
					Value:     strconv.AppendInt(nil, pos, 10),
				},
			)
			t.next[name] = pos + 1
		}
	}

	t.produced += int64(len(rows))
	return rows, nil
}

// Next is the position the sequence will emit next.
func (t *SequenceTask) Next(name string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next[name]
}

func (t *SequenceTask) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intConfig(cfg TaskConfig, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return n, nil
}
