package upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"
	"time"

	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/queue"
	badgerstore "github.com/chronolens/chronolens/storage/badger"
)

func encodeTestImage(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func newUploadFixture(t *testing.T) (*Service, *blob.MemoryStore, *queue.MemoryQueue, func()) {
	t.Helper()

	index, cache, backend, err := badgerstore.NewMemoryStores()
	if err != nil {
		t.Fatalf("Failed to create stores: %v", err)
	}

	blobs := blob.NewMemoryStore()
	q := queue.NewMemoryQueue(8)
	service := NewService(blobs, index, q, nil)
	service.now = func() time.Time {
		return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	}

	cleanup := func() {
		q.Close()
		cache.Close()
		index.Close()
		backend.Close()
	}
	return service, blobs, q, cleanup
}

func TestUploadStoresBlobAndEnqueues(t *testing.T) {
	service, blobs, q, cleanup := newUploadFixture(t)
	defer cleanup()

	ctx := context.Background()

	receipt, err := service.Upload(ctx, "proj-a", encodeTestImage(t, 640, 480))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if receipt.SequenceNumber != 1 {
		t.Fatalf("Expected sequence 1, got %d", receipt.SequenceNumber)
	}
	if !strings.HasPrefix(receipt.S3Key, "proj-a/year=2026/month=08/day=31/") {
		t.Fatalf("Unexpected key: %s", receipt.S3Key)
	}
	if !strings.HasSuffix(receipt.S3Key, ".jpg") {
		t.Fatalf("Expected .jpg key, got %s", receipt.S3Key)
	}

	stored, err := blobs.Get(ctx, receipt.S3Key)
	if err != nil {
		t.Fatalf("Failed to read stored blob: %v", err)
	}
	if len(stored) != receipt.SizeBytes {
		t.Fatalf("Expected %d bytes, got %d", receipt.SizeBytes, len(stored))
	}

	// The sidecar carries the hex md5 of the stored bytes.
	sidecar, err := blobs.Get(ctx, receipt.S3Key+".md5")
	if err != nil {
		t.Fatalf("Failed to read md5 sidecar: %v", err)
	}
	expected := md5.Sum(stored)
	if string(sidecar) != hex.EncodeToString(expected[:]) {
		t.Fatalf("Checksum mismatch: %s", sidecar)
	}
	if receipt.MD5 != string(sidecar) {
		t.Fatalf("Receipt md5 %s does not match sidecar %s", receipt.MD5, sidecar)
	}

	select {
	case d := <-q.Deliveries():
		inv, err := queue.DecodeInvocation(d.Body())
		if err != nil {
			t.Fatalf("Failed to decode enqueued invocation: %v", err)
		}
		enrich := inv.(queue.EnrichInvocation)
		if enrich.ImageID != receipt.ImageID || enrich.SequenceNumber != 1 || enrich.S3Key != receipt.S3Key {
			t.Fatalf("Unexpected invocation: %+v", enrich)
		}
		d.Ack()
	case <-time.After(time.Second):
		t.Fatal("Expected an enqueued enrichment task")
	}
}

func TestUploadAssignsIncreasingSequences(t *testing.T) {
	service, _, q, cleanup := newUploadFixture(t)
	defer cleanup()

	ctx := context.Background()
	img := encodeTestImage(t, 320, 240)

	for want := uint64(1); want <= 3; want++ {
		receipt, err := service.Upload(ctx, "proj-a", img)
		if err != nil {
			t.Fatalf("Upload %d failed: %v", want, err)
		}
		if receipt.SequenceNumber != want {
			t.Fatalf("Expected sequence %d, got %d", want, receipt.SequenceNumber)
		}
		(<-q.Deliveries()).Ack()
	}

	// A different project starts at 1.
	receipt, err := service.Upload(ctx, "proj-b", img)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if receipt.SequenceNumber != 1 {
		t.Fatalf("Expected sequence 1 for new project, got %d", receipt.SequenceNumber)
	}
}

func TestUploadRecompressesOversizedImage(t *testing.T) {
	service, blobs, _, cleanup := newUploadFixture(t)
	defer cleanup()

	ctx := context.Background()

	receipt, err := service.Upload(ctx, "proj-a", encodeTestImage(t, 3840, 2160))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	stored, err := blobs.Get(ctx, receipt.S3Key)
	if err != nil {
		t.Fatalf("Failed to read stored blob: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(stored))
	if err != nil {
		t.Fatalf("Stored blob is not a valid image: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > 1920 || bounds.Dy() > 1080 {
		t.Fatalf("Expected image within 1920x1080, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestUploadRejectsInvalidInput(t *testing.T) {
	service, _, _, cleanup := newUploadFixture(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.Upload(ctx, "proj-a", nil); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("Expected ErrEmptyImage, got %v", err)
	}
	if _, err := service.Upload(ctx, "proj-a", []byte("not an image")); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("Expected ErrInvalidImage, got %v", err)
	}
	if _, err := service.Upload(ctx, "", encodeTestImage(t, 10, 10)); err == nil {
		t.Fatal("Expected error for empty project")
	}
}
