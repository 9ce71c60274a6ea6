package offset

import (
	"fmt"
	"sort"

	"github.com/hugolhafner/go-streams-testing/serde"
)

// PartitionKey identifies a source partition.
type PartitionKey map[string]any

// Record is the committed offset of one partition. Lookups never return a
// nil Record; absence is the empty Record.
type Record map[string]any

var keySerde = serde.JSON[any]()

// Key returns the canonical encoding of the partition. Equal partitions
// have equal keys regardless of map iteration order.
func (p PartitionKey) Key() (string, error) {
	b, err := keySerde.Serialise("", map[string]any(p))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPartition, err)
	}
	return string(b), nil
}

type Entry struct {
	Partition PartitionKey
	Offset    Record
}

// Offsets is the result of a batched lookup. Only partitions with a
// committed, readable offset are present.
type Offsets struct {
	entries map[string]Entry
}

func NewOffsets(entries ...Entry) Offsets {
	o := Offsets{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		o.put(e)
	}
	return o
}

func (o *Offsets) put(e Entry) bool {
	k, err := e.Partition.Key()
	if err != nil {
		return false
	}
	if o.entries == nil {
		o.entries = make(map[string]Entry)
	}
	o.entries[k] = e
	return true
}

// Get returns the offset recorded for p and whether it is present.
func (o Offsets) Get(p PartitionKey) (Record, bool) {
	k, err := p.Key()
	if err != nil {
		return nil, false
	}
	e, ok := o.entries[k]
	return e.Offset, ok
}

func (o Offsets) Len() int {
	return len(o.entries)
}

// Entries returns the present entries ordered by partition key.
func (o Offsets) Entries() []Entry {
	keys := make([]string, 0, len(o.entries))
	for k := range o.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = o.entries[k]
	}
	return out
}
