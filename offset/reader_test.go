//go:build unit

package offset_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugolhafner/go-streams-testing/offset"
)

type stubStorage struct {
	record  offset.Record
	offsets offset.Offsets
	err     error
}

func (s stubStorage) Offset(context.Context, offset.PartitionKey) (offset.Record, error) {
	return s.record, s.err
}

func (s stubStorage) Offsets(context.Context, []offset.PartitionKey) (offset.Offsets, error) {
	return s.offsets, s.err
}

func TestWrap_NilBecomesEmpty(t *testing.T) {
	t.Parallel()

	rec, err := offset.Wrap(stubStorage{}).Offset(context.Background(), offset.PartitionKey{"p": 1})
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Empty(t, rec)
}

func TestWrap_DropsNilEntries(t *testing.T) {
	t.Parallel()
	p1 := offset.PartitionKey{"p": 1}
	p2 := offset.PartitionKey{"p": 2}

	raw := offset.NewOffsets(
		offset.Entry{Partition: p1, Offset: offset.Record{"o": 1}},
		offset.Entry{Partition: p2},
	)
	got, err := offset.Wrap(stubStorage{offsets: raw}).Offsets(context.Background(), []offset.PartitionKey{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
	_, ok := got.Get(p2)
	assert.False(t, ok)
}

func TestWrap_ErrorsAreUnavailable(t *testing.T) {
	t.Parallel()
	reader := offset.Wrap(stubStorage{err: errors.New("boom")})

	_, err := reader.Offset(context.Background(), offset.PartitionKey{"p": 1})
	require.ErrorIs(t, err, offset.ErrBackendUnavailable)

	got, err := reader.Offsets(context.Background(), []offset.PartitionKey{{"p": 1}})
	require.ErrorIs(t, err, offset.ErrBackendUnavailable)
	assert.Equal(t, 0, got.Len())
}

func TestPartitionKey_Canonical(t *testing.T) {
	t.Parallel()

	a, err := offset.PartitionKey{"b": 1, "a": "x"}.Key()
	require.NoError(t, err)
	b, err := offset.PartitionKey{"a": "x", "b": 1}.Key()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, `{"a":"x","b":1}`, a)

	_, err = offset.PartitionKey{"c": make(chan int)}.Key()
	require.ErrorIs(t, err, offset.ErrInvalidPartition)
}

func TestOffsets_EntriesSorted(t *testing.T) {
	t.Parallel()

	o := offset.NewOffsets(
		offset.Entry{Partition: offset.PartitionKey{"p": "b"}, Offset: offset.Record{}},
		offset.Entry{Partition: offset.PartitionKey{"p": "a"}, Offset: offset.Record{}},
	)
	entries := o.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Partition["p"])
}
