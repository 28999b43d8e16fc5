package compare

import (
	"context"
	"errors"
	"testing"

	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/ai/mock"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/queue"
	badgerstore "github.com/chronolens/chronolens/storage/badger"
)

type compareFixture struct {
	pipeline  *Pipeline
	captioner *mock.MockCaptioner
	cleanup   func()
}

func newCompareFixture(t *testing.T) *compareFixture {
	t.Helper()

	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}

	ctx := context.Background()
	blobs := blob.NewMemoryStore()

	for seq, id := range map[uint64]string{1: "img-1", 2: "img-2"} {
		s3Key := "proj-a/year=2026/month=08/day=31/" + id + ".jpg"
		if err := blobs.Put(ctx, s3Key, []byte(id+" bytes")); err != nil {
			t.Fatalf("Failed to seed blob: %v", err)
		}
		record := &core.ImageRecord{
			ImageID:        id,
			ProjectID:      "proj-a",
			SequenceNumber: seq,
			S3Key:          s3Key,
			Filename:       id + ".jpg",
		}
		if err := index.StoreImage(ctx, record); err != nil {
			t.Fatalf("Failed to seed record: %v", err)
		}
	}

	captioner := mock.NewMockCaptioner()
	return &compareFixture{
		pipeline:  NewPipeline(index, blobs, captioner, cache, nil),
		captioner: captioner,
		cleanup: func() {
			cache.Close()
			index.Close()
			backend.Close()
		},
	}
}

func TestPipelineCompare(t *testing.T) {
	f := newCompareFixture(t)
	defer f.cleanup()

	f.captioner.CompareImagesFunc = func(ctx context.Context, image1, image2 []byte, question string) (*ai.Comparison, error) {
		return &ai.Comparison{
			Description1: "empty lot with bare ground",
			Description2: "empty lot with concrete foundation",
			Summary:      "Image 1: empty lot with bare ground. Image 2: empty lot with concrete foundation.",
		}, nil
	}

	result, err := f.pipeline.Process(context.Background(), queue.CompareInvocation{
		ProjectID: "proj-a",
		Sequence1: 1,
		Sequence2: 2,
	})
	if err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}

	if result.Image1.ImageID != "img-1" || result.Image2.ImageID != "img-2" {
		t.Fatalf("Unexpected image infos: %+v / %+v", result.Image1, result.Image2)
	}
	if result.Confidence != 0.9 {
		t.Fatalf("Expected confidence 0.9, got %f", result.Confidence)
	}
	if len(result.Changes) == 0 {
		t.Fatal("Expected at least one change entry")
	}

	foundAddition := false
	for _, change := range result.Changes {
		if change.Type == core.ChangeAddition {
			foundAddition = true
		}
	}
	if !foundAddition {
		t.Fatalf("Expected an addition change, got %v", result.Changes)
	}
}

func TestPipelineRecordNotFoundIsTerminal(t *testing.T) {
	f := newCompareFixture(t)
	defer f.cleanup()

	_, err := f.pipeline.Process(context.Background(), queue.CompareInvocation{
		ProjectID: "proj-a",
		Sequence1: 1,
		Sequence2: 99,
	})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestPipelineResultCached(t *testing.T) {
	f := newCompareFixture(t)
	defer f.cleanup()

	ctx := context.Background()
	inv := queue.CompareInvocation{ProjectID: "proj-a", Sequence1: 1, Sequence2: 2}

	if _, err := f.pipeline.Process(ctx, inv); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	callsAfterFirst := f.captioner.CallCount()

	result, err := f.pipeline.Process(ctx, inv)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if f.captioner.CallCount() != callsAfterFirst {
		t.Fatal("Expected cached result to skip the comparison capability")
	}
	if result.Summary == "" {
		t.Fatal("Expected summary in cached result")
	}
}

func TestPipelineDistinctQuestionsNotShared(t *testing.T) {
	f := newCompareFixture(t)
	defer f.cleanup()

	ctx := context.Background()

	if _, err := f.pipeline.Process(ctx, queue.CompareInvocation{ProjectID: "proj-a", Sequence1: 1, Sequence2: 2}); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	callsAfterFirst := f.captioner.CallCount()

	// A different question must not reuse the general comparison.
	if _, err := f.pipeline.Process(ctx, queue.CompareInvocation{
		ProjectID: "proj-a", Sequence1: 1, Sequence2: 2, Question: "did the crane move",
	}); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if f.captioner.CallCount() == callsAfterFirst {
		t.Fatal("Expected a fresh comparison for a different question")
	}
}
