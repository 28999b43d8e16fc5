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
	"fmt"
	"io"
	"time"

	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/storage"
	"github.com/chronolens/chronolens/worker"
)

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of images)
	ReportInterval int

	// Retry controls retries of transient embedding failures
	Retry worker.RetryPolicy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		Retry:          worker.RetryPolicy{MaxRetries: 3, BaseDelay: 1 * time.Second},
	}
}

// Reembedder orchestrates regenerating the embeddings of every image in
// a project.
type Reembedder struct {
	index     storage.IndexStore
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecordIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(index storage.IndexStore, blobs blob.Store, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		index:     index,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(index, blobs, embedder, config.Retry),
		iterator:  NewRecordIterator(index, config.BatchSize),
	}
}

// Run reembeds every image of the project with the configured embedder.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context, projectID string) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}

	records, err := r.index.GetByProject(ctx, projectID, 0)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}

	total := len(records)
	if total == 0 {
		fmt.Fprintf(r.progress, "No images found for project %s\n", projectID)
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d images (batch size: %d)\n",
		total, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, projectID, func(batch []*core.ImageRecord) error {
		if err := r.processor.Process(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}

		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d images in %v (%.1f images/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}
