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

// Package natsobj implements blob.Store on a NATS JetStream ObjectStore
// bucket.
package natsobj

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/chronolens/chronolens/blob"
)

// Store is a blob.Store backed by a JetStream ObjectStore bucket.
type Store struct {
	bucket nats.ObjectStore
	logger *slog.Logger
}

var _ blob.Store = (*Store)(nil)

// NewStore binds to the named bucket, creating it if absent.
func NewStore(js nats.JetStreamContext, bucketName string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "blobstore")

	bucket, err := js.ObjectStore(bucketName)
	if errors.Is(err, nats.ErrStreamNotFound) || errors.Is(err, nats.ErrBucketNotFound) {
		bucket, err = js.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucketName,
			Description: "chronolens image objects",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object store bucket %q: %w", bucketName, err)
	}

	return &Store{bucket: bucket, logger: logger}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.GetBytes(key, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, blob.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object %q: %w", key, err)
	}
	return data, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.bucket.PutBytes(key, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}
	s.logger.Debug("stored object", "key", key, "size_bytes", len(data))
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(key)
	if err != nil && !errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	infos, err := s.bucket.List(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	var keys []string
	for _, info := range infos {
		if strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Close() error {
	return nil
}
