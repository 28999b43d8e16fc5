package storage

import (
	"context"
	"time"

	"github.com/chronolens/chronolens/core"
)

// IndexStore is the durable per-project ordered record store. It provides
// idempotent upserts keyed by image ID, exact-sequence lookup, and vector
// similarity search. Implementations must be thread-safe and must make a
// single key's upsert atomic: readers never observe a partially written
// record.
type IndexStore interface {
	// StoreImage upserts a fully formed image record under its ImageID.
	// A second write with the same ImageID overwrites the prior record in
	// full; fields are never merged.
	StoreImage(ctx context.Context, record *core.ImageRecord) error

	// GetImage retrieves a record by image ID.
	// Returns ErrNotFound if no record exists.
	GetImage(ctx context.Context, imageID string) (*core.ImageRecord, error)

	// GetBySequence retrieves the record holding the given sequence number
	// within a project. Returns ErrNotFound if no record exists.
	GetBySequence(ctx context.Context, projectID string, seq uint64) (*core.ImageRecord, error)

	// GetByProject retrieves up to limit records for a project, ordered by
	// ascending sequence number.
	GetByProject(ctx context.Context, projectID string, limit int) ([]*core.ImageRecord, error)

	// GetSequenceCount returns the highest sequence number assigned so far
	// for the project (0 if none).
	GetSequenceCount(ctx context.Context, projectID string) (uint64, error)

	// NextSequence atomically assigns and returns the next sequence number
	// for the project. Two concurrent callers never receive the same value.
	NextSequence(ctx context.Context, projectID string) (uint64, error)

	// SearchSimilar returns up to k records of the project ordered by
	// descending cosine similarity to the query vector. Records without an
	// embedding are skipped.
	SearchSimilar(ctx context.Context, projectID string, vector []float32, k int) ([]*core.SearchResult, error)

	// Close closes the store and releases resources.
	Close() error
}

// ContentCache memoizes expensive computation results by key with a
// per-entry time to live. The cache is an optimization, never a
// correctness dependency: Set failures are expected to be logged and
// swallowed by callers, and a Get miss simply triggers recomputation.
// Implementations must be safe for concurrent use.
type ContentCache interface {
	// Get retrieves the value stored under key.
	// Returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for at most ttl. Best effort.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close closes the cache and releases resources.
	Close() error
}
