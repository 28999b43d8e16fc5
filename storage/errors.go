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


package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	// Callers resolving user-supplied sequence numbers treat this as a
	// terminal not-found condition, never as a transient failure.
	ErrNotFound = errors.New("record not found")

	// ErrCacheMiss indicates the cache has no live entry for the key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrSequenceConflict indicates sequence assignment lost a transaction
	// conflict race too many times in a row.
	ErrSequenceConflict = errors.New("sequence assignment conflict")
)
