package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/storage"
)

// Read-increment of a project counter can lose a write-write race under
// Badger's SSI; the transaction fails with ErrConflict and is retried.
const maxSequenceRetries = 16

// IndexStore implements storage.IndexStore for BadgerDB.
type IndexStore struct {
	backend *Backend
}

var _ storage.IndexStore = (*IndexStore)(nil)

// NewIndexStore creates a new IndexStore on the given backend.
func NewIndexStore(backend *Backend) (storage.IndexStore, error) {
	return &IndexStore{backend: backend}, nil
}

// Close releases resources. The backend is owned by the caller.
func (s *IndexStore) Close() error {
	return nil
}

// StoreImage upserts a fully formed image record under its ImageID.
// The write replaces any prior record in full and keeps the per-project
// sequence index in step, all within one transaction.
func (s *IndexStore) StoreImage(ctx context.Context, record *core.ImageRecord) error {
	if err := core.ValidateImageRecord(record); err != nil {
		return err
	}

	record.IndexedAt = time.Now().UTC()
	if record.UploadedAt.IsZero() {
		record.UploadedAt = record.IndexedAt
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeImageRecordKey(record.ImageID)

		// Drop a stale sequence index entry if a prior version of this
		// record sat at a different sequence number.
		old, err := s.readImageRecord(tx, key)
		if err != nil {
			return err
		}
		if old != nil && (old.SequenceNumber != record.SequenceNumber || old.ProjectID != record.ProjectID) {
			if err := tx.Delete(makeSequenceKey(old.ProjectID, old.SequenceNumber)); err != nil {
				return err
			}
		}

		if err := tx.Set(key, storage.MarshalImageRecord(record)); err != nil {
			return err
		}

		seqKey := makeSequenceKey(record.ProjectID, record.SequenceNumber)
		if err := tx.Set(seqKey, []byte(record.ImageID)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// GetImage retrieves a record by image ID.
func (s *IndexStore) GetImage(ctx context.Context, imageID string) (*core.ImageRecord, error) {
	var result *core.ImageRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = s.readImageRecord(tx, makeImageRecordKey(imageID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetBySequence retrieves the record holding the given sequence number
// within a project.
func (s *IndexStore) GetBySequence(ctx context.Context, projectID string, seq uint64) (*core.ImageRecord, error) {
	var result *core.ImageRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSequenceKey(projectID, seq))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		var imageID string
		if err := item.Value(func(val []byte) error {
			imageID = string(val)
			return nil
		}); err != nil {
			return err
		}

		result, err = s.readImageRecord(tx, makeImageRecordKey(imageID))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetByProject retrieves up to limit records for a project, ordered by
// ascending sequence number.
func (s *IndexStore) GetByProject(ctx context.Context, projectID string, limit int) ([]*core.ImageRecord, error) {
	var results []*core.ImageRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeProjectSequencePrefix(projectID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}

			var imageID string
			if err := iter.Item().Value(func(val []byte) error {
				imageID = string(val)
				return nil
			}); err != nil {
				return err
			}

			record, err := s.readImageRecord(tx, makeImageRecordKey(imageID))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetSequenceCount returns the highest sequence number assigned so far
// for the project.
func (s *IndexStore) GetSequenceCount(ctx context.Context, projectID string) (uint64, error) {
	var count uint64
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		count, err = readCounter(tx, makeSequenceCountKey(projectID))
		return err
	}, false)
	return count, err
}

// NextSequence atomically assigns and returns the next sequence number
// for the project. Concurrent callers race on the counter key; Badger's
// transaction conflict detection rejects all but one, and the losers
// retry against the committed value.
func (s *IndexStore) NextSequence(ctx context.Context, projectID string) (uint64, error) {
	key := makeSequenceCountKey(projectID)

	for attempt := 0; attempt < maxSequenceRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var next uint64
		err := s.backend.WithTx(func(tx *badger.Txn) error {
			current, err := readCounter(tx, key)
			if err != nil {
				return err
			}
			next = current + 1

			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, next)
			if err := tx.Set(key, buf); err != nil {
				return err
			}
			return tx.Commit()
		}, true)

		if err == nil {
			return next, nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return 0, err
		}
	}

	return 0, storage.ErrSequenceConflict
}

// SearchSimilar returns up to k records of the project ordered by
// descending cosine similarity to the query vector. Both the query and
// the stored embeddings are expected to be unit length, so the dot
// product is the cosine similarity.
func (s *IndexStore) SearchSimilar(ctx context.Context, projectID string, vector []float32, k int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeProjectSequencePrefix(projectID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var imageID string
			if err := iter.Item().Value(func(val []byte) error {
				imageID = string(val)
				return nil
			}); err != nil {
				return err
			}

			record, err := s.readImageRecord(tx, makeImageRecordKey(imageID))
			if err != nil {
				return err
			}
			if record == nil || len(record.Embedding) == 0 {
				continue
			}

			results = append(results, &core.SearchResult{
				Record: record,
				Score:  dotProduct(vector, record.Embedding),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return bytes.Compare([]byte(a.Record.ImageID), []byte(b.Record.ImageID))
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// readImageRecord reads an image record from the transaction.
// Returns nil without error when the key is absent.
func (s *IndexStore) readImageRecord(tx *badger.Txn, key []byte) (*core.ImageRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.ImageRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalImageRecord(val)
		return unmarshalErr
	})
	return record, err
}

// readCounter reads a BigEndian uint64 counter, returning 0 for a
// missing key.
func readCounter(tx *badger.Txn, key []byte) (uint64, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var count uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return storage.ErrSerializationFailed
		}
		count = binary.BigEndian.Uint64(val)
		return nil
	})
	return count, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
