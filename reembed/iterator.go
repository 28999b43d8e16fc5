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


package reembed

import (
	"context"

	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/storage"
)

const (
	// DefaultBatchSize is the default number of records handed to fn per batch
	DefaultBatchSize = 100
)

// RecordIterator walks a project's image records in sequence order,
// yielding them in batches.
type RecordIterator struct {
	index     storage.IndexStore
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records yielded per batch (must be > 0)
func NewRecordIterator(index storage.IndexStore, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		index:     index,
		batchSize: batchSize,
	}
}

// ForEach iterates over all records of the project, calling fn for each
// batch. Iteration stops on the first error from fn. Context cancellation
// is checked between batches.
func (it *RecordIterator) ForEach(ctx context.Context, projectID string, fn func([]*core.ImageRecord) error) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// limit 0 fetches the whole project in sequence order
	records, err := it.index.GetByProject(ctx, projectID, 0)
	if err != nil {
		return err
	}

	for i := 0; i < len(records); i += it.batchSize {
		end := i + it.batchSize
		if end > len(records) {
			end = len(records)
		}

		if err := fn(records[i:end]); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	return nil
}
