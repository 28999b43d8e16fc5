package enrich

import "errors"

var (
	// ErrBlobFetch indicates the original image bytes could not be
	// retrieved from the blob store.
	ErrBlobFetch = errors.New("failed to fetch image blob")

	// ErrEmbedding indicates the embedding capability failed.
	ErrEmbedding = errors.New("failed to generate embedding")

	// ErrCaption indicates the captioning capability failed.
	ErrCaption = errors.New("failed to generate caption")

	// ErrIndexWrite indicates the final index upsert failed.
	ErrIndexWrite = errors.New("failed to write index record")
)
