package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// TestGetPut tests basic reads and writes
func TestGetPut(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	value, err := store.Get(ctx, "P", "missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("1")}))

	value, err = store.Get(ctx, "P", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	// Unconditional put overwrites.
	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("2")}))
	value, err = store.Get(ctx, "P", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), value)
}

// TestConditions tests existence-conditioned writes
func TestConditions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("1"), Condition: ConditionNotExists}))

	err := store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("2"), Condition: ConditionNotExists})
	assert.True(t, errors.Is(err, ErrConditionFailed))

	// The failed write must not have applied.
	value, err2 := store.Get(ctx, "P", "a")
	require.NoError(t, err2)
	assert.Equal(t, []byte("1"), value)

	err = store.Put(ctx, Write{PK: "P", SK: "b", Value: []byte("1"), Condition: ConditionExists})
	assert.True(t, errors.Is(err, ErrConditionFailed))

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("3"), Condition: ConditionExists}))
}

// TestTransactAtomicity tests that a failing condition aborts every
// write in the transaction
func TestTransactAtomicity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "taken", Value: []byte("1")}))

	err := store.Transact(ctx,
		Write{PK: "P", SK: "new", Value: []byte("2")},
		Write{PK: "P", SK: "taken", Value: []byte("3"), Condition: ConditionNotExists},
	)
	require.True(t, errors.Is(err, ErrConditionFailed))

	value, err := store.Get(ctx, "P", "new")
	require.NoError(t, err)
	assert.Nil(t, value, "aborted transaction must not leave partial writes")

	value, err = store.Get(ctx, "P", "taken")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)
}

// TestTransactDelete tests mixed writes and deletes in one commit
func TestTransactDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("1")}))
	require.NoError(t, store.Transact(ctx,
		Write{PK: "P", SK: "a", Delete: true},
		Write{PK: "Q", SK: "b", Value: []byte("2")},
	))

	value, err := store.Get(ctx, "P", "a")
	require.NoError(t, err)
	assert.Nil(t, value)

	value, err = store.Get(ctx, "Q", "b")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), value)
}

func seedPartition(t *testing.T, store *BoltStore) {
	t.Helper()
	ctx := context.Background()
	for _, sk := range []string{"META#1.0.0", "V#1.0.0", "V#1.1.0", "V#2.0.0"} {
		require.NoError(t, store.Put(ctx, Write{PK: "P", SK: sk, Value: []byte(sk)}))
	}
}

// TestQuery tests partition scans with prefix, limit and direction
func TestQuery(t *testing.T) {
	store := newTestStore(t)
	seedPartition(t, store)
	ctx := context.Background()

	tests := []struct {
		name string
		opts QueryOptions
		want []string
	}{
		{
			name: "full partition in sort order",
			opts: QueryOptions{},
			want: []string{"META#1.0.0", "V#1.0.0", "V#1.1.0", "V#2.0.0"},
		},
		{
			name: "prefix filter",
			opts: QueryOptions{Prefix: "V#"},
			want: []string{"V#1.0.0", "V#1.1.0", "V#2.0.0"},
		},
		{
			name: "prefix with limit",
			opts: QueryOptions{Prefix: "V#", Limit: 2},
			want: []string{"V#1.0.0", "V#1.1.0"},
		},
		{
			name: "reverse prefix scan",
			opts: QueryOptions{Prefix: "V#", Reverse: true},
			want: []string{"V#2.0.0", "V#1.1.0", "V#1.0.0"},
		},
		{
			name: "reverse with limit finds the maximum",
			opts: QueryOptions{Prefix: "V#", Limit: 1, Reverse: true},
			want: []string{"V#2.0.0"},
		},
		{
			name: "no matches",
			opts: QueryOptions{Prefix: "X#"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.Query(ctx, "P", tt.opts)
			require.NoError(t, err)

			got := make([]string, 0, len(records))
			for _, rec := range records {
				assert.Equal(t, "P", rec.PK)
				got = append(got, rec.SK)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestQueryMissingPartition tests that scanning an unknown partition
// returns no records
func TestQueryMissingPartition(t *testing.T) {
	store := newTestStore(t)

	records, err := store.Query(context.Background(), "NOPE", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

// TestUpdate tests the read-modify-write primitive
func TestUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("old")}))

	err := store.Update(ctx, "P", "a", func(old []byte) ([]byte, error) {
		assert.Equal(t, []byte("old"), old)
		return []byte("new"), nil
	})
	require.NoError(t, err)

	value, err := store.Get(ctx, "P", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), value)
}

// TestUpdateAborts tests that an error from the callback leaves the
// record untouched
func TestUpdateAborts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("old")}))

	sentinel := errors.New("nope")
	err := store.Update(ctx, "P", "a", func(old []byte) ([]byte, error) {
		return nil, sentinel
	})
	assert.True(t, errors.Is(err, sentinel))

	value, err := store.Get(ctx, "P", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), value)
}

// TestUpdateAbsentRecord tests that the callback sees nil for a missing
// record
func TestUpdateAbsentRecord(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(context.Background(), "P", "missing", func(old []byte) ([]byte, error) {
		assert.Nil(t, old)
		return []byte("created"), nil
	})
	require.NoError(t, err)

	value, err := store.Get(context.Background(), "P", "missing")
	require.NoError(t, err)
	assert.Equal(t, []byte("created"), value)
}

// TestDelete tests record removal, including the absent no-op
func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Write{PK: "P", SK: "a", Value: []byte("1")}))
	require.NoError(t, store.Delete(ctx, "P", "a"))

	value, err := store.Get(ctx, "P", "a")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, store.Delete(ctx, "P", "a"))
	require.NoError(t, store.Delete(ctx, "NOPE", "a"))
}
