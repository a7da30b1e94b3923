/*
Package storage provides the ordered key-value document store backing
the registry.

All records live in a single namespace addressed by a partition key and
a sort key. Within a partition, records are ordered by sort key, which
is what the index read path and the user-id allocator rely on. Writes
can carry existence conditions, and multi-record writes commit
atomically; a failed condition surfaces as ErrConditionFailed so call
sites can translate it into the operation-specific registry error.

The production implementation is BoltStore on top of bbolt, with one
bucket per partition key and sort keys as bucket keys. bbolt serializes
writers, which makes the conditional-put and transactional semantics
straightforward to honor.
*/
package storage
