package offset

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable reports that a lookup could not be served at all.
	ErrBackendUnavailable = errors.New("offset backend unavailable")
	ErrInvalidPartition   = errors.New("invalid partition key")
)

// Reader is the lookup capability handed to source tasks.
type Reader interface {
	// Offset returns the committed offset of p, or an empty Record when
	// none was committed.
	Offset(ctx context.Context, p PartitionKey) (Record, error)

	// Offsets looks up many partitions at once. Partitions that cannot be
	// resolved are omitted; an error is only returned when the request as a
	// whole failed, and never together with a partial result.
	Offsets(ctx context.Context, partitions []PartitionKey) (Offsets, error)
}

// StorageReader is the raw view of a backing store. Offset may return a
// nil Record for absent partitions, Offsets may carry nil Records.
type StorageReader interface {
	Offset(ctx context.Context, p PartitionKey) (Record, error)
	Offsets(ctx context.Context, partitions []PartitionKey) (Offsets, error)
}

// Writer commits offsets for one namespace. A nil or empty Offset deletes
// the entry.
type Writer interface {
	Write(ctx context.Context, entries ...Entry) error
}

type adapter struct {
	raw StorageReader
}

// Wrap adapts a StorageReader to the Reader contract: absent results become
// empty Records and failures surface as ErrBackendUnavailable.
func Wrap(raw StorageReader) Reader {
	return adapter{raw: raw}
}

func (a adapter) Offset(ctx context.Context, p PartitionKey) (Record, error) {
	r, err := a.raw.Offset(ctx, p)
	if err != nil {
		return nil, asUnavailable(err)
	}
	if r == nil {
		return Record{}, nil
	}
	return r, nil
}

func (a adapter) Offsets(ctx context.Context, partitions []PartitionKey) (Offsets, error) {
	raw, err := a.raw.Offsets(ctx, partitions)
	if err != nil {
		return Offsets{}, asUnavailable(err)
	}

	out := Offsets{entries: make(map[string]Entry, raw.Len())}
	for k, e := range raw.entries {
		if e.Offset == nil {
			continue
		}
		out.entries[k] = e
	}
	return out, nil
}

func asUnavailable(err error) error {
	if errors.Is(err, ErrBackendUnavailable) || errors.Is(err, ErrInvalidPartition) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
