package storage

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store using bbolt. Each partition key maps to a
// bucket; sort keys are the bucket's keys, so a cursor walk yields
// records in sort-key order.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the registry database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "raktar.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the record value, or nil when absent.
func (s *BoltStore) Get(ctx context.Context, pk, sk string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pk))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(sk))
		if data == nil {
			return nil
		}
		// bbolt values are only valid for the life of the transaction.
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	return value, err
}

// Put applies a single write, honoring its condition.
func (s *BoltStore) Put(ctx context.Context, w Write) error {
	return s.Transact(ctx, w)
}

// Transact applies all writes atomically. Conditions are checked inside
// the same transaction, so either every write applies or none do.
func (s *BoltStore) Transact(ctx context.Context, writes ...Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, w := range writes {
			if err := applyWrite(tx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyWrite(tx *bolt.Tx, w Write) error {
	if w.Delete {
		b := tx.Bucket([]byte(w.PK))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(w.SK))
	}

	b, err := tx.CreateBucketIfNotExists([]byte(w.PK))
	if err != nil {
		return fmt.Errorf("failed to create partition %s: %w", w.PK, err)
	}

	existing := b.Get([]byte(w.SK))
	switch w.Condition {
	case ConditionNotExists:
		if existing != nil {
			return fmt.Errorf("put %s/%s: %w", w.PK, w.SK, ErrConditionFailed)
		}
	case ConditionExists:
		if existing == nil {
			return fmt.Errorf("put %s/%s: %w", w.PK, w.SK, ErrConditionFailed)
		}
	}

	return b.Put([]byte(w.SK), w.Value)
}

// Query scans a partition in sort-key order.
func (s *BoltStore) Query(ctx context.Context, pk string, opts QueryOptions) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(pk))
		if b == nil {
			return nil
		}

		c := b.Cursor()
		prefix := []byte(opts.Prefix)

		appendRecord := func(k, v []byte) {
			value := make([]byte, len(v))
			copy(value, v)
			records = append(records, Record{PK: pk, SK: string(k), Value: value})
		}

		if opts.Reverse {
			for k, v := last(c, prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
				appendRecord(k, v)
				if opts.Limit > 0 && len(records) >= opts.Limit {
					return nil
				}
			}
			return nil
		}

		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			appendRecord(k, v)
			if opts.Limit > 0 && len(records) >= opts.Limit {
				return nil
			}
		}
		return nil
	})
	return records, err
}

// last positions the cursor on the greatest key matching prefix.
func last(c *bolt.Cursor, prefix []byte) ([]byte, []byte) {
	if len(prefix) == 0 {
		return c.Last()
	}

	// Seek past the prefix range, then step back.
	upper := upperBound(prefix)
	var k, v []byte
	if upper == nil {
		k, v = c.Last()
	} else {
		k, v = c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
	}
	if k != nil && bytes.HasPrefix(k, prefix) {
		return k, v
	}
	return nil, nil
}

// upperBound returns the smallest key greater than every key with the
// given prefix, or nil if no such key exists.
func upperBound(prefix []byte) []byte {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// Update reads the record, passes its value to fn and writes back the
// result in the same transaction.
func (s *BoltStore) Update(ctx context.Context, pk, sk string, fn func(old []byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(pk))
		if err != nil {
			return fmt.Errorf("failed to create partition %s: %w", pk, err)
		}

		old := b.Get([]byte(sk))
		updated, err := fn(old)
		if err != nil {
			return err
		}
		return b.Put([]byte(sk), updated)
	})
}

// Delete removes the record; deleting an absent record is a no-op.
func (s *BoltStore) Delete(ctx context.Context, pk, sk string) error {
	return s.Transact(ctx, Write{PK: pk, SK: sk, Delete: true})
}
