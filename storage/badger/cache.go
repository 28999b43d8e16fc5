// Copyright 2026 Chronolens Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/chronolens/chronolens/storage"
)

// ContentCache implements storage.ContentCache on Badger. Expiry is
// enforced by Badger's entry TTL; an expired key reads as absent.
type ContentCache struct {
	backend *Backend
}

var _ storage.ContentCache = (*ContentCache)(nil)

// NewContentCache creates a ContentCache on the given backend.
func NewContentCache(backend *Backend) (storage.ContentCache, error) {
	return &ContentCache{backend: backend}, nil
}

// Close releases resources. The backend is owned by the caller.
func (c *ContentCache) Close() error {
	return nil
}

// Get returns the cached value for key, or storage.ErrCacheMiss when
// the key is absent or has expired.
func (c *ContentCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCacheKey(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrCacheMiss
			}
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key. A ttl of zero stores the entry without
// expiry.
func (c *ContentCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		entry := badger.NewEntry(makeCacheKey(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		if err := tx.SetEntry(entry); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
