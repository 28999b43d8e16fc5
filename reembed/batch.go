package reembed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/enrich"
	"github.com/chronolens/chronolens/storage"
	"github.com/chronolens/chronolens/worker"
)

// BatchProcessor regenerates embeddings for batches of image records.
type BatchProcessor struct {
	index    storage.IndexStore
	blobs    blob.Store
	embedder ai.Embedder
	policy   worker.RetryPolicy
	logger   *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// policy controls retries of transient embedding failures.
func NewBatchProcessor(index storage.IndexStore, blobs blob.Store, embedder ai.Embedder, policy worker.RetryPolicy) *BatchProcessor {
	return &BatchProcessor{
		index:    index,
		blobs:    blobs,
		embedder: embedder,
		policy:   policy,
		logger:   slog.Default().With("component", "reembed"),
	}
}

// Process regenerates the embedding for every record in the batch and
// persists the updated records. Vectors are normalized before persisting
// so similarity search stays consistent with freshly enriched images.
// Records whose blob has gone missing are skipped with a warning rather
// than failing the whole run.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.ImageRecord) error {
	for _, record := range records {
		if err := bp.processOne(ctx, record); err != nil {
			if errors.Is(err, ErrMissingBlob) {
				bp.logger.Warn("skipping record with missing blob",
					"imageID", record.ImageID, "key", record.S3Key)
				continue
			}
			return err
		}
	}
	return nil
}

func (bp *BatchProcessor) processOne(ctx context.Context, record *core.ImageRecord) error {
	data, err := bp.blobs.Get(ctx, record.S3Key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrMissingBlob, record.S3Key)
		}
		return fmt.Errorf("failed to fetch blob for %s: %w", record.ImageID, err)
	}

	vector, err := bp.embedWithRetry(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to embed %s after %d attempts: %w",
			record.ImageID, bp.policy.MaxRetries+1, err)
	}

	record.Embedding = enrich.NormalizeVector(vector)
	if err := bp.index.StoreImage(ctx, record); err != nil {
		return fmt.Errorf("failed to store %s: %w", record.ImageID, err)
	}
	return nil
}

// embedWithRetry calls the embedder with the processor's retry policy:
// up to MaxRetries retries after the first attempt, sleeping
// BaseDelay * 2^retry between attempts.
func (bp *BatchProcessor) embedWithRetry(ctx context.Context, data []byte) ([]float32, error) {
	var lastErr error
	for retry := 0; retry <= bp.policy.MaxRetries; retry++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		vector, err := bp.embedder.EmbedImage(ctx, data)
		if err == nil {
			if retry > 0 {
				bp.logger.Debug("embedding succeeded after retry", "retries", retry)
			}
			return vector, nil
		}
		lastErr = err

		if retry == bp.policy.MaxRetries {
			break
		}

		timer := time.NewTimer(bp.policy.Delay(retry))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}
