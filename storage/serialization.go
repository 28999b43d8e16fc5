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

import (
	"github.com/chronolens/chronolens/core"
)

// MarshalImageRecord serializes an ImageRecord to bytes.
func MarshalImageRecord(record *core.ImageRecord) []byte {
	buf := make([]byte, core.ImageRecordMUS.Size(*record))
	core.ImageRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalImageRecord deserializes an ImageRecord from bytes.
func UnmarshalImageRecord(data []byte) (*core.ImageRecord, error) {
	record, _, err := core.ImageRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalCachedVector serializes an embedding vector for cache storage.
// The value carries a version tag so stale entries decode-fail cleanly.
func MarshalCachedVector(vector []float32) []byte {
	buf := make([]byte, core.CachedVectorMUS.Size(vector))
	core.CachedVectorMUS.Marshal(vector, buf)
	return buf
}

// UnmarshalCachedVector deserializes a cached embedding vector.
// Any error means the entry must be treated as a cache miss.
func UnmarshalCachedVector(data []byte) ([]float32, error) {
	vector, _, err := core.CachedVectorMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// MarshalCachedText serializes a caption for cache storage.
func MarshalCachedText(text string) []byte {
	buf := make([]byte, core.CachedTextMUS.Size(text))
	core.CachedTextMUS.Marshal(text, buf)
	return buf
}

// UnmarshalCachedText deserializes a cached caption.
// Any error means the entry must be treated as a cache miss.
func UnmarshalCachedText(data []byte) (string, error) {
	text, _, err := core.CachedTextMUS.Unmarshal(data)
	if err != nil {
		return "", err
	}
	return text, nil
}
