package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a content-derived identifier used for cache keys and deduplication.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NewImageID returns a new time-sortable image identifier (UUID v7).
// Falls back to a random UUID if the monotonic clock source fails.
func NewImageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ImageRecord is the fully enriched index entry for one uploaded image.
// A record does not exist in the index until enrichment completes; there
// is no partially-indexed visible state. Re-enrichment overwrites via the
// same ImageID key.
type ImageRecord struct {
	ImageID         string
	ProjectID       string
	SequenceNumber  uint64 // strictly increasing per project, assigned at upload
	S3Key           string
	Filename        string
	Embedding       []float32 // normalized to unit length before persist
	TextDescription string
	Metadata        map[string]string
	UploadedAt      time.Time
	IndexedAt       time.Time
}

// SearchResult pairs an image record with a similarity score.
type SearchResult struct {
	Record *ImageRecord
	Score  float32
}

// ChangeType classifies a detected difference between two images.
type ChangeType string

const (
	ChangeAddition     ChangeType = "addition"
	ChangeRemoval      ChangeType = "removal"
	ChangeModification ChangeType = "modification"
	ChangeSimilar      ChangeType = "similar"
)

// Change is one classified difference between two image descriptions.
type Change struct {
	Type        ChangeType `json:"type"`
	Description string     `json:"description"`
}
