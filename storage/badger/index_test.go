package badger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/storage"
)

func newTestRecord(imageID, projectID string, seq uint64) *core.ImageRecord {
	return &core.ImageRecord{
		ImageID:         imageID,
		ProjectID:       projectID,
		SequenceNumber:  seq,
		S3Key:           projectID + "/year=2026/month=08/day=31/" + imageID + ".jpg",
		Filename:        imageID + ".jpg",
		Embedding:       []float32{0.6, 0.8},
		TextDescription: "a test image",
		UploadedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestImageRecordBasics(t *testing.T) {
	// Create in-memory stores
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() {
		cache.Close()
		index.Close()
		backend.Close()
	}()

	ctx := context.Background()

	record := newTestRecord("img-1", "proj-a", 1)
	if err := index.StoreImage(ctx, record); err != nil {
		t.Fatalf("Failed to store image record: %v", err)
	}

	if record.IndexedAt.IsZero() {
		t.Fatal("Expected IndexedAt to be set")
	}

	retrieved, err := index.GetImage(ctx, "img-1")
	if err != nil {
		t.Fatalf("Failed to get image record: %v", err)
	}

	if retrieved.ProjectID != "proj-a" {
		t.Fatalf("Expected 'proj-a', got '%s'", retrieved.ProjectID)
	}
	if retrieved.SequenceNumber != 1 {
		t.Fatalf("Expected sequence 1, got %d", retrieved.SequenceNumber)
	}
	if len(retrieved.Embedding) != 2 {
		t.Fatalf("Expected 2-element embedding, got %d", len(retrieved.Embedding))
	}
}

func TestGetImageNotFound(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	_, err = index.GetImage(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreImageOverwrite(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	record := newTestRecord("img-1", "proj-a", 1)
	record.TextDescription = "first pass"
	if err := index.StoreImage(ctx, record); err != nil {
		t.Fatalf("Failed to store image record: %v", err)
	}

	// A re-run of enrichment replaces the record in full.
	updated := newTestRecord("img-1", "proj-a", 1)
	updated.TextDescription = "second pass"
	updated.Embedding = []float32{1, 0}
	if err := index.StoreImage(ctx, updated); err != nil {
		t.Fatalf("Failed to overwrite image record: %v", err)
	}

	retrieved, err := index.GetImage(ctx, "img-1")
	if err != nil {
		t.Fatalf("Failed to get image record: %v", err)
	}
	if retrieved.TextDescription != "second pass" {
		t.Fatalf("Expected 'second pass', got '%s'", retrieved.TextDescription)
	}
	if retrieved.Embedding[0] != 1 {
		t.Fatalf("Expected updated embedding, got %v", retrieved.Embedding)
	}
}

func TestGetBySequence(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	for i, id := range []string{"img-1", "img-2", "img-3"} {
		if err := index.StoreImage(ctx, newTestRecord(id, "proj-a", uint64(i+1))); err != nil {
			t.Fatalf("Failed to store image record: %v", err)
		}
	}

	retrieved, err := index.GetBySequence(ctx, "proj-a", 2)
	if err != nil {
		t.Fatalf("Failed to get by sequence: %v", err)
	}
	if retrieved.ImageID != "img-2" {
		t.Fatalf("Expected 'img-2', got '%s'", retrieved.ImageID)
	}

	// Sequence in a different project is not visible.
	_, err = index.GetBySequence(ctx, "proj-b", 2)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	_, err = index.GetBySequence(ctx, "proj-a", 99)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetByProjectOrdering(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	// Insert out of order; reads come back by ascending sequence.
	for _, seq := range []uint64{3, 1, 2} {
		record := newTestRecord("img-"+string(rune('0'+seq)), "proj-a", seq)
		if err := index.StoreImage(ctx, record); err != nil {
			t.Fatalf("Failed to store image record: %v", err)
		}
	}
	if err := index.StoreImage(ctx, newTestRecord("other", "proj-b", 1)); err != nil {
		t.Fatalf("Failed to store image record: %v", err)
	}

	records, err := index.GetByProject(ctx, "proj-a", 0)
	if err != nil {
		t.Fatalf("Failed to get by project: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, record := range records {
		if record.SequenceNumber != uint64(i+1) {
			t.Fatalf("Expected sequence %d at position %d, got %d", i+1, i, record.SequenceNumber)
		}
	}

	limited, err := index.GetByProject(ctx, "proj-a", 2)
	if err != nil {
		t.Fatalf("Failed to get by project with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(limited))
	}
}

func TestNextSequence(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		seq, err := index.NextSequence(ctx, "proj-a")
		if err != nil {
			t.Fatalf("Failed to assign sequence: %v", err)
		}
		if seq != want {
			t.Fatalf("Expected sequence %d, got %d", want, seq)
		}
	}

	// Counters are scoped per project.
	seq, err := index.NextSequence(ctx, "proj-b")
	if err != nil {
		t.Fatalf("Failed to assign sequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("Expected sequence 1 for new project, got %d", seq)
	}

	count, err := index.GetSequenceCount(ctx, "proj-a")
	if err != nil {
		t.Fatalf("Failed to get sequence count: %v", err)
	}
	if count != 3 {
		t.Fatalf("Expected count 3, got %d", count)
	}
}

func TestNextSequenceConcurrent(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()
	const workers = 8

	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := index.NextSequence(ctx, "proj-a")
			if err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("Concurrent sequence assignment failed: %v", err)
	}

	// Every worker got a distinct number and the range is contiguous.
	if len(seen) != workers {
		t.Fatalf("Expected %d distinct sequences, got %d", workers, len(seen))
	}
	for want := uint64(1); want <= workers; want++ {
		if !seen[want] {
			t.Fatalf("Missing sequence %d", want)
		}
	}
}

func TestSearchSimilar(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	ctx := context.Background()

	vectors := map[string][]float32{
		"img-1": {1, 0},
		"img-2": {0.8, 0.6},
		"img-3": {0, 1},
	}
	seq := uint64(0)
	for id, vec := range vectors {
		seq++
		record := newTestRecord(id, "proj-a", seq)
		record.Embedding = vec
		if err := index.StoreImage(ctx, record); err != nil {
			t.Fatalf("Failed to store image record: %v", err)
		}
	}

	results, err := index.SearchSimilar(ctx, "proj-a", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Record.ImageID != "img-1" {
		t.Fatalf("Expected 'img-1' first, got '%s'", results[0].Record.ImageID)
	}
	if results[1].Record.ImageID != "img-2" {
		t.Fatalf("Expected 'img-2' second, got '%s'", results[1].Record.ImageID)
	}
	if results[0].Score < results[1].Score {
		t.Fatal("Expected results in descending score order")
	}
}

func TestStoreImageInvalid(t *testing.T) {
	index, cache, backend, err := NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	record := newTestRecord("img-1", "proj-a", 1)
	record.ImageID = ""
	err = index.StoreImage(context.Background(), record)
	if !errors.Is(err, core.ErrEmptyImageID) {
		t.Fatalf("Expected ErrEmptyImageID, got %v", err)
	}
}
