package upload

import "errors"

var (
	// ErrEmptyImage indicates an upload with no bytes.
	ErrEmptyImage = errors.New("empty image upload")

	// ErrInvalidImage indicates bytes that do not decode as an image.
	ErrInvalidImage = errors.New("invalid image data")

	// ErrBlobWrite indicates the blob store rejected the upload.
	ErrBlobWrite = errors.New("failed to store image blob")

	// ErrSequenceAssign indicates the sequence counter could not be
	// advanced.
	ErrSequenceAssign = errors.New("failed to assign sequence number")

	// ErrEnqueue indicates the enrichment task could not be queued.
	ErrEnqueue = errors.New("failed to enqueue enrichment task")
)
