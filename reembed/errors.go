package reembed

import "errors"

var (
	// ErrEmptyProjectID is returned when no project is given to reembed.
	ErrEmptyProjectID = errors.New("projectID cannot be empty")

	// ErrMissingBlob is returned when a record's stored image bytes
	// cannot be found in the blob store.
	ErrMissingBlob = errors.New("image blob not found")
)
