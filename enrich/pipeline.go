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


// Package enrich implements the enrichment pipeline: for one uploaded
// image it fetches the original bytes, computes an embedding and a
// caption (consulting the content cache first), and writes the fully
// formed record to the index in a single upsert. Nothing is written to
// the index until every field is ready, so a failed or cancelled run
// leaves no partially indexed record.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/queue"
	"github.com/chronolens/chronolens/storage"
)

// DefaultCacheTTL is how long computed embeddings and captions stay
// reusable across enrichment retries.
const DefaultCacheTTL = time.Hour

// Pipeline enriches uploaded images into index records.
type Pipeline struct {
	blobs     blob.Store
	embedder  ai.Embedder
	captioner ai.Captioner
	index     storage.IndexStore
	cache     storage.ContentCache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewPipeline creates an enrichment pipeline.
func NewPipeline(blobs blob.Store, embedder ai.Embedder, captioner ai.Captioner,
	index storage.IndexStore, cache storage.ContentCache, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		blobs:     blobs,
		embedder:  embedder,
		captioner: captioner,
		index:     index,
		cache:     cache,
		cacheTTL:  DefaultCacheTTL,
		logger:    logger.With("component", "enrich"),
	}
}

// Process runs the pipeline for one enrichment invocation. Re-running
// the same invocation produces the same record content; the image ID is
// the idempotency key for the index write.
func (p *Pipeline) Process(ctx context.Context, inv queue.EnrichInvocation) error {
	image, err := p.blobs.Get(ctx, inv.S3Key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBlobFetch, err)
	}

	embedding, err := p.embeddingFor(ctx, inv.ImageID, image)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	caption, err := p.captionFor(ctx, inv.ImageID, image)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCaption, err)
	}

	record := &core.ImageRecord{
		ImageID:         inv.ImageID,
		ProjectID:       inv.ProjectID,
		SequenceNumber:  inv.SequenceNumber,
		S3Key:           inv.S3Key,
		Filename:        path.Base(inv.S3Key),
		Embedding:       embedding,
		TextDescription: caption,
		Metadata: map[string]string{
			"size_bytes": strconv.Itoa(len(image)),
		},
	}

	if err := p.index.StoreImage(ctx, record); err != nil {
		return fmt.Errorf("%w: %w", ErrIndexWrite, err)
	}

	p.logger.Info("enriched image",
		"image_id", inv.ImageID,
		"project_id", inv.ProjectID,
		"sequence", inv.SequenceNumber,
		"embedding_dimension", len(embedding),
	)
	return nil
}

// embeddingFor returns the image's embedding, consulting the cache
// before invoking the embedding capability. A hit short-circuits the
// capability call entirely; a malformed entry counts as a miss.
func (p *Pipeline) embeddingFor(ctx context.Context, imageID string, image []byte) ([]float32, error) {
	key := "embedding:" + imageID

	if cached, err := p.cache.Get(ctx, key); err == nil {
		if vector, err := storage.UnmarshalCachedVector(cached); err == nil {
			p.logger.Debug("embedding cache hit", "image_id", imageID)
			return vector, nil
		}
		p.logger.Warn("discarding malformed cached embedding", "image_id", imageID)
	}

	vector, err := p.embedder.EmbedImage(ctx, image)
	if err != nil {
		return nil, err
	}
	vector = NormalizeVector(vector)

	// Cache failures are logged, never raised: the computed value is
	// already in hand.
	if err := p.cache.Set(ctx, key, storage.MarshalCachedVector(vector), p.cacheTTL); err != nil {
		p.logger.Warn("failed to cache embedding", "image_id", imageID, "err", err)
	}
	return vector, nil
}

// captionFor returns the image's caption, consulting the cache before
// invoking the captioning capability.
func (p *Pipeline) captionFor(ctx context.Context, imageID string, image []byte) (string, error) {
	key := "caption:" + imageID

	if cached, err := p.cache.Get(ctx, key); err == nil {
		if text, err := storage.UnmarshalCachedText(cached); err == nil {
			p.logger.Debug("caption cache hit", "image_id", imageID)
			return text, nil
		}
		p.logger.Warn("discarding malformed cached caption", "image_id", imageID)
	}

	caption, err := p.captioner.Caption(ctx, image)
	if err != nil {
		return "", err
	}

	if err := p.cache.Set(ctx, key, storage.MarshalCachedText(caption), p.cacheTTL); err != nil {
		p.logger.Warn("failed to cache caption", "image_id", imageID, "err", err)
	}
	return caption, nil
}
