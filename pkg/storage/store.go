package storage

import (
	"context"
	"errors"
)

// ErrConditionFailed is returned when a write's existence condition does
// not hold. Call sites translate it into the registry error appropriate
// for the operation; there is no generic mapping.
var ErrConditionFailed = errors.New("storage: condition failed")

// Condition restricts when a write may apply.
type Condition int

const (
	// ConditionNone applies the write unconditionally.
	ConditionNone Condition = iota
	// ConditionNotExists requires that no record exists under the key.
	ConditionNotExists
	// ConditionExists requires that a record already exists under the key.
	ConditionExists
)

// Record is a stored document.
type Record struct {
	PK    string
	SK    string
	Value []byte
}

// Write is one element of a put or transactional commit. When Delete is
// set the record is removed instead of written.
type Write struct {
	PK        string
	SK        string
	Value     []byte
	Condition Condition
	Delete    bool
}

// QueryOptions control a partition scan.
type QueryOptions struct {
	// Prefix restricts the scan to sort keys with this prefix.
	Prefix string
	// Limit caps the number of returned records; zero means no cap.
	Limit int
	// Reverse scans in descending sort-key order.
	Reverse bool
}

// Store is the ordered document store contract the repositories build
// on.
type Store interface {
	// Get returns the record value, or nil when absent.
	Get(ctx context.Context, pk, sk string) ([]byte, error)

	// Put applies a single write, honoring its condition.
	Put(ctx context.Context, w Write) error

	// Transact applies all writes atomically; if any condition fails,
	// nothing is applied and ErrConditionFailed is returned.
	Transact(ctx context.Context, writes ...Write) error

	// Query scans a partition in sort-key order.
	Query(ctx context.Context, pk string, opts QueryOptions) ([]Record, error)

	// Update reads the record, passes its value (nil when absent) to fn
	// and writes back the result, all in one transaction. An error from
	// fn aborts the update and is returned unchanged.
	Update(ctx context.Context, pk, sk string, fn func(old []byte) ([]byte, error)) error

	// Delete removes the record; deleting an absent record is a no-op.
	Delete(ctx context.Context, pk, sk string) error

	// Close releases the underlying database.
	Close() error
}
