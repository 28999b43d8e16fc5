package enrich

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/chronolens/chronolens/ai/mock"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/queue"
	badgerstore "github.com/chronolens/chronolens/storage/badger"
)

func TestPipelineEnrichesImage(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	blobs := blob.NewMemoryStore()
	s3Key := "proj-a/year=2026/month=08/day=31/img-1.jpg"
	if err := blobs.Put(ctx, s3Key, []byte("jpeg bytes")); err != nil {
		t.Fatalf("Failed to seed blob: %v", err)
	}

	embedder := mock.NewMockEmbedder()
	embedder.EmbedImageFunc = func(ctx context.Context, image []byte) ([]float32, error) {
		return []float32{0.1, 0.2}, nil
	}
	captioner := mock.NewMockCaptioner()
	captioner.CaptionFunc = func(ctx context.Context, image []byte) (string, error) {
		return "a cat", nil
	}

	pipeline := NewPipeline(blobs, embedder, captioner, index, cache, nil)

	inv := queue.EnrichInvocation{
		ImageID:        "img-1",
		ProjectID:      "proj-a",
		S3Key:          s3Key,
		SequenceNumber: 1,
	}
	if err := pipeline.Process(ctx, inv); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}

	record, err := index.GetImage(ctx, "img-1")
	if err != nil {
		t.Fatalf("Failed to read stored record: %v", err)
	}
	if record.SequenceNumber != 1 {
		t.Fatalf("Expected sequence 1, got %d", record.SequenceNumber)
	}
	if record.TextDescription != "a cat" {
		t.Fatalf("Expected 'a cat', got '%s'", record.TextDescription)
	}
	if record.Filename != "img-1.jpg" {
		t.Fatalf("Expected filename 'img-1.jpg', got '%s'", record.Filename)
	}
	if record.Metadata["size_bytes"] != "10" {
		t.Fatalf("Expected size_bytes '10', got '%s'", record.Metadata["size_bytes"])
	}

	// The stored embedding is the normalized input vector.
	norm := float32(math.Sqrt(0.1*0.1 + 0.2*0.2))
	if len(record.Embedding) != 2 {
		t.Fatalf("Expected 2-element embedding, got %d", len(record.Embedding))
	}
	if diff := record.Embedding[0] - 0.1/norm; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("Expected normalized embedding, got %v", record.Embedding)
	}
}

func TestPipelineCacheShortCircuitsCapabilities(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	blobs := blob.NewMemoryStore()
	s3Key := "proj-a/year=2026/month=08/day=31/img-1.jpg"
	if err := blobs.Put(ctx, s3Key, []byte("jpeg bytes")); err != nil {
		t.Fatalf("Failed to seed blob: %v", err)
	}

	embedder := mock.NewMockEmbedder()
	captioner := mock.NewMockCaptioner()
	pipeline := NewPipeline(blobs, embedder, captioner, index, cache, nil)

	inv := queue.EnrichInvocation{
		ImageID:        "img-1",
		ProjectID:      "proj-a",
		S3Key:          s3Key,
		SequenceNumber: 1,
	}
	if err := pipeline.Process(ctx, inv); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	firstEmbedCalls := embedder.CallCount()
	firstCaptionCalls := captioner.CallCount()

	// Immediate re-enrichment hits both caches; no capability calls.
	if err := pipeline.Process(ctx, inv); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if embedder.CallCount() != firstEmbedCalls {
		t.Fatalf("Expected no additional embed calls, got %d", embedder.CallCount()-firstEmbedCalls)
	}
	if captioner.CallCount() != firstCaptionCalls {
		t.Fatalf("Expected no additional caption calls, got %d", captioner.CallCount()-firstCaptionCalls)
	}
}

func TestPipelineMissingBlob(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	pipeline := NewPipeline(blob.NewMemoryStore(), mock.NewMockEmbedder(), mock.NewMockCaptioner(), index, cache, nil)

	inv := queue.EnrichInvocation{
		ImageID:        "img-1",
		ProjectID:      "proj-a",
		S3Key:          "missing.jpg",
		SequenceNumber: 1,
	}
	err = pipeline.Process(context.Background(), inv)
	if !errors.Is(err, ErrBlobFetch) {
		t.Fatalf("Expected ErrBlobFetch, got %v", err)
	}
	if !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("Expected wrapped blob.ErrNotFound, got %v", err)
	}
}

func TestPipelineNoPartialWriteOnCaptionFailure(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	blobs := blob.NewMemoryStore()
	s3Key := "proj-a/year=2026/month=08/day=31/img-1.jpg"
	if err := blobs.Put(ctx, s3Key, []byte("jpeg bytes")); err != nil {
		t.Fatalf("Failed to seed blob: %v", err)
	}

	captioner := mock.NewMockCaptioner()
	captioner.CaptionFunc = func(ctx context.Context, image []byte) (string, error) {
		return "", errors.New("vision service down")
	}

	pipeline := NewPipeline(blobs, mock.NewMockEmbedder(), captioner, index, cache, nil)

	inv := queue.EnrichInvocation{
		ImageID:        "img-1",
		ProjectID:      "proj-a",
		S3Key:          s3Key,
		SequenceNumber: 1,
	}
	if err := pipeline.Process(ctx, inv); !errors.Is(err, ErrCaption) {
		t.Fatalf("Expected ErrCaption, got %v", err)
	}

	// The index must not contain a partial record.
	if _, err := index.GetImage(ctx, "img-1"); err == nil {
		t.Fatal("Expected no record after failed enrichment")
	}
}

func TestNormalizeVector(t *testing.T) {
	normalized := NormalizeVector([]float32{3, 4})
	if diff := normalized[0] - 0.6; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("Expected 0.6, got %f", normalized[0])
	}
	if diff := normalized[1] - 0.8; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("Expected 0.8, got %f", normalized[1])
	}

	zero := NormalizeVector([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("Expected zero vector, got %v", zero)
	}

	if got := NormalizeVector(nil); len(got) != 0 {
		t.Fatalf("Expected empty result, got %v", got)
	}
}
