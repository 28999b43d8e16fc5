package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	imageRecordPrefix   = "imgrec"
	imageSequencePrefix = "imgseq"
	sequenceCountPrefix = "imgcnt"
	cacheEntryPrefix    = "cache"
)

// makeImageRecordKey generates a key for an image record by ID.
func makeImageRecordKey(imageID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", imageRecordPrefix, imageID))
}

// makeSequenceKey generates a composite key for the per-project sequence index.
// Format: prefix:projectID:sequence
// The sequence number is written in BigEndian order so lexicographic
// iteration yields ascending chronological order.
func makeSequenceKey(projectID string, seq uint64) []byte {
	prefix := makeProjectSequencePrefix(projectID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeProjectSequencePrefix generates the iteration prefix for one
// project's sequence index.
// Format: prefix:projectID:
func makeProjectSequencePrefix(projectID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", imageSequencePrefix, projectID))
}

// makeSequenceCountKey generates the key holding a project's sequence counter.
func makeSequenceCountKey(projectID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", sequenceCountPrefix, projectID))
}

// makeCacheKey generates a key for a content cache entry.
func makeCacheKey(key string) []byte {
	return []byte(fmt.Sprintf("%s:%s", cacheEntryPrefix, key))
}
