// Package store defines the key-value/hash/sorted-set storage contract the
// voting core issues its operations against, plus an in-memory
// implementation for tests and authoring-time tooling.
//
// Two primitives carry the correctness load: SetNX (set-if-not-exists) backs
// vote dedup (only one of two racing submissions claims the slot) and
// HashIncrBy/IncrBy back tally counters as true atomic increments, never
// read-modify-write of a serialized blob.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested key, field, or member is absent.
var ErrNotFound = errors.New("store: not found")

// Store is the abstract storage collaborator.
type Store interface {
	// Plain keys
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX sets key only if absent; reports whether the write won.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	// Hashes
	HashSet(ctx context.Context, key, field, value string) error
	HashGet(ctx context.Context, key, field string) (string, error)
	HashGetAll(ctx context.Context, key string) (map[string]string, error)
	HashIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// Sorted sets
	SortedSetAdd(ctx context.Context, key, member string, score float64) error
	SortedSetScore(ctx context.Context, key, member string) (float64, error)
	// SortedSetRank returns the 0-based descending rank (highest score =
	// rank 0). Consumers convert to 1-based for display.
	SortedSetRank(ctx context.Context, key, member string) (int64, error)
	SortedSetCard(ctx context.Context, key string) (int64, error)
	SortedSetRemove(ctx context.Context, key, member string) error
}
