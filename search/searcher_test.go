package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chronolens/chronolens/ai/mock"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	badgerstore "github.com/chronolens/chronolens/storage/badger"
)

func seedRecord(t *testing.T, index interface {
	StoreImage(ctx context.Context, record *core.ImageRecord) error
}, id string, seq uint64, embedding []float32) {
	t.Helper()

	record := &core.ImageRecord{
		ImageID:         id,
		ProjectID:       "proj-a",
		SequenceNumber:  seq,
		S3Key:           "proj-a/year=2026/month=08/day=31/" + id + ".jpg",
		Filename:        id + ".jpg",
		Embedding:       embedding,
		TextDescription: "seeded",
	}
	if err := index.StoreImage(context.Background(), record); err != nil {
		t.Fatalf("Failed to seed record: %v", err)
	}
}

func TestSearcherRanksBySimilarity(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	seedRecord(t, index, "img-1", 1, []float32{1, 0})
	seedRecord(t, index, "img-2", 2, []float32{0, 1})

	provider := mock.NewMockProvider()
	provider.(*mock.MockProvider).GetMockEmbedder().EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{2, 0}, nil
	}

	searcher, err := NewSearcher(index, blob.NewMemoryStore(), provider)
	if err != nil {
		t.Fatalf("Failed to create searcher: %v", err)
	}

	results, err := searcher.Search(context.Background(), "proj-a", "red crane", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Record.ImageID != "img-1" {
		t.Fatalf("Expected 'img-1' first, got '%s'", results[0].Record.ImageID)
	}
}

func TestSearcherRejectsEmptyQuery(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	searcher, err := NewSearcher(index, blob.NewMemoryStore(), mock.NewMockProvider())
	if err != nil {
		t.Fatalf("Failed to create searcher: %v", err)
	}

	if _, err := searcher.Search(context.Background(), "proj-a", "   ", 5); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("Expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearcherAnswersQuestion(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	seedRecord(t, index, "img-1", 1, []float32{1, 0})

	blobs := blob.NewMemoryStore()
	if err := blobs.Put(context.Background(), "proj-a/year=2026/month=08/day=31/img-1.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("Failed to seed blob: %v", err)
	}

	provider := mock.NewMockProvider()
	provider.(*mock.MockProvider).GetMockCaptioner().AnswerQuestionFunc = func(ctx context.Context, image []byte, question string) (string, error) {
		return "the crane is on the left", nil
	}

	searcher, err := NewSearcher(index, blobs, provider)
	if err != nil {
		t.Fatalf("Failed to create searcher: %v", err)
	}

	answer, err := searcher.AnswerQuestion(context.Background(), "proj-a", 1, "where is the crane")
	if err != nil {
		t.Fatalf("AnswerQuestion failed: %v", err)
	}
	if !strings.Contains(answer, "crane") {
		t.Fatalf("Unexpected answer: %s", answer)
	}
}

func TestSearcherQuestionMissingSequence(t *testing.T) {
	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}
	defer func() { cache.Close(); index.Close(); backend.Close() }()

	searcher, err := NewSearcher(index, blob.NewMemoryStore(), mock.NewMockProvider())
	if err != nil {
		t.Fatalf("Failed to create searcher: %v", err)
	}

	if _, err := searcher.AnswerQuestion(context.Background(), "proj-a", 42, "anything there?"); err == nil {
		t.Fatal("Expected error for missing sequence")
	}
}
