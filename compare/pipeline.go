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


// Package compare implements the comparison pipeline: it resolves two
// sequence numbers within a project to their index records, fetches
// both originals from the blob store in parallel, asks the vision model
// to describe them, and classifies the differences. Results are cached
// per (project, sequence pair, question) for a configured TTL.
package compare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/queue"
	"github.com/chronolens/chronolens/storage"
)

// DefaultQuestion is used when a comparison request carries no
// free-text question.
const DefaultQuestion = "what changed"

// DefaultCacheTTL bounds how long a comparison result is reused for
// repeated identical queries.
const DefaultCacheTTL = 5 * time.Minute

// resultFormatVersion tags cached results; entries with another
// version read as cache misses.
const resultFormatVersion = 1

// ErrRecordNotFound indicates one of the requested sequence numbers
// does not resolve to an indexed record. This is terminal: retrying
// cannot make the record appear.
var ErrRecordNotFound = errors.New("record not found")

// ImageInfo identifies one side of a comparison.
type ImageInfo struct {
	ImageID        string `json:"image_id"`
	SequenceNumber uint64 `json:"sequence_number"`
	Filename       string `json:"filename"`
	Description    string `json:"description"`
}

// Result is the structured outcome of a comparison.
type Result struct {
	Version    int           `json:"version"`
	Image1     ImageInfo     `json:"image1"`
	Image2     ImageInfo     `json:"image2"`
	Changes    []core.Change `json:"changes"`
	Summary    string        `json:"summary"`
	Confidence float64       `json:"confidence"`
}

// Pipeline compares two indexed images within a project.
type Pipeline struct {
	index     storage.IndexStore
	blobs     blob.Store
	captioner ai.Captioner
	cache     storage.ContentCache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewPipeline creates a comparison pipeline.
func NewPipeline(index storage.IndexStore, blobs blob.Store, captioner ai.Captioner,
	cache storage.ContentCache, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		index:     index,
		blobs:     blobs,
		captioner: captioner,
		cache:     cache,
		cacheTTL:  DefaultCacheTTL,
		logger:    logger.With("component", "compare"),
	}
}

// Process runs the pipeline for one comparison invocation.
func (p *Pipeline) Process(ctx context.Context, inv queue.CompareInvocation) (*Result, error) {
	question := inv.Question
	if question == "" {
		question = DefaultQuestion
	}

	cacheKey := resultCacheKey(inv.ProjectID, inv.Sequence1, inv.Sequence2, question)
	if cached, err := p.cache.Get(ctx, cacheKey); err == nil {
		if result := decodeResult(cached); result != nil {
			p.logger.Debug("comparison cache hit",
				"project_id", inv.ProjectID,
				"sequence1", inv.Sequence1,
				"sequence2", inv.Sequence2,
			)
			return result, nil
		}
		p.logger.Warn("discarding malformed cached comparison", "key", cacheKey)
	}

	record1, err := p.resolve(ctx, inv.ProjectID, inv.Sequence1)
	if err != nil {
		return nil, err
	}
	record2, err := p.resolve(ctx, inv.ProjectID, inv.Sequence2)
	if err != nil {
		return nil, err
	}

	// The two fetches are read-only and order-independent.
	var image1, image2 []byte
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		image1, err = p.blobs.Get(groupCtx, record1.S3Key)
		return err
	})
	group.Go(func() error {
		var err error
		image2, err = p.blobs.Get(groupCtx, record2.S3Key)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch image blobs: %w", err)
	}

	comparison, err := p.captioner.CompareImages(ctx, image1, image2, inv.Question)
	if err != nil {
		return nil, fmt.Errorf("comparison capability failed: %w", err)
	}

	result := &Result{
		Version:    resultFormatVersion,
		Image1:     imageInfo(record1, comparison.Description1),
		Image2:     imageInfo(record2, comparison.Description2),
		Changes:    classifyChanges(comparison.Description1, comparison.Description2),
		Summary:    comparison.Summary,
		Confidence: confidenceFor(comparison.Description1, comparison.Description2),
	}

	if encoded, err := json.Marshal(result); err == nil {
		// Cache failures are logged, never raised.
		if err := p.cache.Set(ctx, cacheKey, encoded, p.cacheTTL); err != nil {
			p.logger.Warn("failed to cache comparison result", "key", cacheKey, "err", err)
		}
	}

	p.logger.Info("compared images",
		"project_id", inv.ProjectID,
		"sequence1", inv.Sequence1,
		"sequence2", inv.Sequence2,
		"changes", len(result.Changes),
	)
	return result, nil
}

func (p *Pipeline) resolve(ctx context.Context, projectID string, seq uint64) (*core.ImageRecord, error) {
	record, err := p.index.GetBySequence(ctx, projectID, seq)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: project %q sequence %d", ErrRecordNotFound, projectID, seq)
		}
		return nil, err
	}
	return record, nil
}

func imageInfo(record *core.ImageRecord, description string) ImageInfo {
	return ImageInfo{
		ImageID:        record.ImageID,
		SequenceNumber: record.SequenceNumber,
		Filename:       record.Filename,
		Description:    description,
	}
}

func resultCacheKey(projectID string, seq1, seq2 uint64, question string) string {
	return fmt.Sprintf("compare:%s:%d:%d:%016x", projectID, seq1, seq2, uint64(core.IDFromContent(question)))
}

// decodeResult returns nil for undecodable or version-mismatched
// entries, which callers treat as cache misses.
func decodeResult(data []byte) *Result {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	if result.Version != resultFormatVersion {
		return nil
	}
	return &result
}
