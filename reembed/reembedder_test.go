package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/chronolens/chronolens/ai/mock"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/storage"
	badgerstore "github.com/chronolens/chronolens/storage/badger"
	"github.com/chronolens/chronolens/worker"
)

type fixture struct {
	index    storage.IndexStore
	blobs    *blob.MemoryStore
	embedder *mock.MockEmbedder
	cleanup  func()
}

func newFixture(t *testing.T, count int) *fixture {
	t.Helper()

	index, _, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("failed to create stores: %v", err)
	}

	blobs := blob.NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= count; i++ {
		key := fmt.Sprintf("site-a/%d.jpg", i)
		if err := blobs.Put(ctx, key, []byte(fmt.Sprintf("image-bytes-%d", i))); err != nil {
			t.Fatalf("failed to put blob: %v", err)
		}
		record := &core.ImageRecord{
			ImageID:        fmt.Sprintf("img-%d", i),
			ProjectID:      "site-a",
			SequenceNumber: uint64(i),
			S3Key:          key,
			Filename:       fmt.Sprintf("%d.jpg", i),
			Embedding:      []float32{1, 0, 0}, // stale vector from the old model
		}
		if err := index.StoreImage(ctx, record); err != nil {
			t.Fatalf("failed to store record: %v", err)
		}
	}

	return &fixture{
		index:    index,
		blobs:    blobs,
		embedder: mock.NewMockEmbedder(),
		cleanup:  func() { backend.Close() },
	}
}

func TestReembedderUpdatesAllRecords(t *testing.T) {
	f := newFixture(t, 5)
	defer f.cleanup()

	f.embedder.EmbedImageFunc = func(ctx context.Context, image []byte) ([]float32, error) {
		return []float32{3, 4}, nil
	}

	r := NewReembedder(f.index, f.blobs, f.embedder, nil, io.Discard)
	if err := r.Run(context.Background(), "site-a"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if f.embedder.CallCount() != 5 {
		t.Errorf("expected 5 embedder calls, got %d", f.embedder.CallCount())
	}

	records, err := f.index.GetByProject(context.Background(), "site-a", 0)
	if err != nil {
		t.Fatalf("failed to read records back: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	for _, record := range records {
		if len(record.Embedding) != 2 {
			t.Fatalf("record %s: expected new 2-dim embedding, got %d dims",
				record.ImageID, len(record.Embedding))
		}
		// {3,4} normalized is {0.6,0.8}
		if math.Abs(float64(record.Embedding[0])-0.6) > 1e-6 ||
			math.Abs(float64(record.Embedding[1])-0.8) > 1e-6 {
			t.Errorf("record %s: expected normalized vector [0.6 0.8], got %v",
				record.ImageID, record.Embedding)
		}
	}
}

func TestReembedderEmptyProject(t *testing.T) {
	f := newFixture(t, 0)
	defer f.cleanup()

	r := NewReembedder(f.index, f.blobs, f.embedder, nil, io.Discard)
	if err := r.Run(context.Background(), "site-a"); err != nil {
		t.Fatalf("Run failed on empty project: %v", err)
	}
	if f.embedder.CallCount() != 0 {
		t.Errorf("expected no embedder calls, got %d", f.embedder.CallCount())
	}
}

func TestReembedderEmptyProjectID(t *testing.T) {
	f := newFixture(t, 0)
	defer f.cleanup()

	r := NewReembedder(f.index, f.blobs, f.embedder, nil, io.Discard)
	if err := r.Run(context.Background(), ""); err != ErrEmptyProjectID {
		t.Errorf("expected ErrEmptyProjectID, got %v", err)
	}
}

func TestBatchProcessorRetriesTransientFailures(t *testing.T) {
	f := newFixture(t, 1)
	defer f.cleanup()

	attempts := 0
	f.embedder.EmbedImageFunc = func(ctx context.Context, image []byte) ([]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("transient")
		}
		return []float32{1, 0}, nil
	}

	config := &Config{
		BatchSize:      10,
		ReportInterval: 10,
		Retry:          worker.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond},
	}
	r := NewReembedder(f.index, f.blobs, f.embedder, config, io.Discard)
	if err := r.Run(context.Background(), "site-a"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 embedding attempts, got %d", attempts)
	}

	record, err := f.index.GetImage(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("failed to read record: %v", err)
	}
	if len(record.Embedding) != 2 || record.Embedding[0] != 1 {
		t.Errorf("expected updated embedding [1 0], got %v", record.Embedding)
	}
}

func TestBatchProcessorGivesUpAfterRetryBudget(t *testing.T) {
	f := newFixture(t, 1)
	defer f.cleanup()

	attempts := 0
	f.embedder.EmbedImageFunc = func(ctx context.Context, image []byte) ([]float32, error) {
		attempts++
		return nil, errors.New("model offline")
	}

	config := &Config{
		BatchSize:      10,
		ReportInterval: 10,
		Retry:          worker.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
	}
	r := NewReembedder(f.index, f.blobs, f.embedder, config, io.Discard)
	err := r.Run(context.Background(), "site-a")
	if err == nil {
		t.Fatal("expected Run to fail when embedding keeps failing")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts (1 initial + 2 retries), got %d", attempts)
	}

	// The stale embedding must survive a failed run.
	record, getErr := f.index.GetImage(context.Background(), "img-1")
	if getErr != nil {
		t.Fatalf("failed to read record: %v", getErr)
	}
	if len(record.Embedding) != 3 {
		t.Errorf("expected original embedding to be untouched, got %v", record.Embedding)
	}
}

func TestBatchProcessorSkipsMissingBlobs(t *testing.T) {
	f := newFixture(t, 2)
	defer f.cleanup()

	if err := f.blobs.Delete(context.Background(), "site-a/1.jpg"); err != nil {
		t.Fatalf("failed to delete blob: %v", err)
	}

	f.embedder.EmbedImageFunc = func(ctx context.Context, image []byte) ([]float32, error) {
		return []float32{0, 1}, nil
	}

	r := NewReembedder(f.index, f.blobs, f.embedder, nil, io.Discard)
	if err := r.Run(context.Background(), "site-a"); err != nil {
		t.Fatalf("Run should skip missing blobs, got: %v", err)
	}

	first, err := f.index.GetImage(context.Background(), "img-1")
	if err != nil {
		t.Fatalf("failed to read record: %v", err)
	}
	if len(first.Embedding) != 3 {
		t.Errorf("expected skipped record to keep stale embedding, got %v", first.Embedding)
	}

	second, err := f.index.GetImage(context.Background(), "img-2")
	if err != nil {
		t.Fatalf("failed to read record: %v", err)
	}
	if len(second.Embedding) != 2 {
		t.Errorf("expected second record reembedded, got %v", second.Embedding)
	}
}
