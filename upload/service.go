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


// Package upload implements the ingest side of the system: it accepts
// raw image bytes, recompresses oversized images, writes the blob and
// its checksum sidecar to the blob store, assigns the per-project
// sequence number, and enqueues the enrichment task. Sequence
// assignment happens once here, outside the retryable pipeline.
package upload

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/queue"
	"github.com/chronolens/chronolens/storage"
)

// Recompression bounds for uploaded images.
const (
	maxWidth    = 1920
	maxHeight   = 1080
	jpegQuality = 85
)

// Receipt describes an accepted upload.
type Receipt struct {
	ImageID        string    `json:"image_id"`
	ProjectID      string    `json:"project_id"`
	S3Key          string    `json:"s3_key"`
	SequenceNumber uint64    `json:"sequence_number"`
	SizeBytes      int       `json:"size_bytes"`
	MD5            string    `json:"md5"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Service accepts image uploads and hands them to the enrichment queue.
type Service struct {
	blobs  blob.Store
	index  storage.IndexStore
	queue  queue.Queue
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an upload service.
func NewService(blobs blob.Store, index storage.IndexStore, q queue.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		blobs:  blobs,
		index:  index,
		queue:  q,
		logger: logger.With("component", "upload"),
		now:    time.Now,
	}
}

// Upload accepts one image for a project. The image is recompressed if
// it exceeds the size bounds, stored under a date-partitioned key with
// an md5 sidecar, assigned the next sequence number, and queued for
// enrichment.
func (s *Service) Upload(ctx context.Context, projectID string, data []byte) (*Receipt, error) {
	if projectID == "" {
		return nil, core.ErrEmptyProjectID
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	prepared, err := prepareImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	uploadedAt := s.now().UTC()
	imageID := core.NewImageID()
	s3Key := temporalKey(projectID, imageID, uploadedAt)

	if err := s.blobs.Put(ctx, s3Key, prepared); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlobWrite, err)
	}

	checksum := md5.Sum(prepared)
	digest := hex.EncodeToString(checksum[:])
	if err := s.blobs.Put(ctx, s3Key+".md5", []byte(digest)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlobWrite, err)
	}

	seq, err := s.index.NextSequence(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSequenceAssign, err)
	}

	inv := queue.EnrichInvocation{
		ImageID:        imageID,
		ProjectID:      projectID,
		S3Key:          s3Key,
		SequenceNumber: seq,
	}
	if err := s.queue.Enqueue(ctx, inv); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnqueue, err)
	}

	s.logger.Info("accepted upload",
		"image_id", imageID,
		"project_id", projectID,
		"sequence", seq,
		"size_bytes", len(prepared),
	)

	return &Receipt{
		ImageID:        imageID,
		ProjectID:      projectID,
		S3Key:          s3Key,
		SequenceNumber: seq,
		SizeBytes:      len(prepared),
		MD5:            digest,
		UploadedAt:     uploadedAt,
	}, nil
}

// temporalKey builds the date-partitioned blob key for an upload.
func temporalKey(projectID, imageID string, at time.Time) string {
	return fmt.Sprintf("%s/year=%04d/month=%02d/day=%02d/%s.jpg",
		projectID, at.Year(), int(at.Month()), at.Day(), imageID)
}

// prepareImage decodes the upload and re-encodes it as JPEG, scaling
// down anything larger than the configured bounds. Images already
// within bounds still pass through one encode so every stored blob is a
// JPEG.
func prepareImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
