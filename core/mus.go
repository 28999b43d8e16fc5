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


package core

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Serialization format versions. Every persisted value starts with a
// varint version tag so that stale or foreign bytes are detected up
// front instead of producing garbage records downstream.
const (
	imageRecordFormatV1  uint64 = 1
	cachedVectorFormatV1 uint64 = 1
	cachedTextFormatV1   uint64 = 1
)

// ErrUnknownFormatVersion indicates serialized data with an unrecognized
// version tag. Callers treating the bytes as a cache entry must handle
// this as a cache miss.
var ErrUnknownFormatVersion = errors.New("unknown serialization format version")

// Serializer values for the domain types. Hand-written against the
// mus-go primitives; the layouts carry version tags and the timestamps
// are stored as Unix microseconds.
var (
	ImageRecordMUS  = imageRecordSer{}
	CachedVectorMUS = cachedVectorSer{}
	CachedTextMUS   = cachedTextSer{}
)

type imageRecordSer struct{}

func (imageRecordSer) Size(r ImageRecord) int {
	size := varint.Uint64.Size(imageRecordFormatV1)
	size += ord.String.Size(r.ImageID)
	size += ord.String.Size(r.ProjectID)
	size += varint.Uint64.Size(r.SequenceNumber)
	size += ord.String.Size(r.S3Key)
	size += ord.String.Size(r.Filename)
	size += sizeVector(r.Embedding)
	size += ord.String.Size(r.TextDescription)
	size += varint.Int.Size(len(r.Metadata))
	for k, v := range r.Metadata {
		size += ord.String.Size(k)
		size += ord.String.Size(v)
	}
	size += varint.Int64.Size(r.UploadedAt.UnixMicro())
	size += varint.Int64.Size(r.IndexedAt.UnixMicro())
	return size
}

func (imageRecordSer) Marshal(r ImageRecord, bs []byte) (n int) {
	n = varint.Uint64.Marshal(imageRecordFormatV1, bs)
	n += ord.String.Marshal(r.ImageID, bs[n:])
	n += ord.String.Marshal(r.ProjectID, bs[n:])
	n += varint.Uint64.Marshal(r.SequenceNumber, bs[n:])
	n += ord.String.Marshal(r.S3Key, bs[n:])
	n += ord.String.Marshal(r.Filename, bs[n:])
	n += marshalVector(r.Embedding, bs[n:])
	n += ord.String.Marshal(r.TextDescription, bs[n:])
	n += varint.Int.Marshal(len(r.Metadata), bs[n:])
	for k, v := range r.Metadata {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(v, bs[n:])
	}
	n += varint.Int64.Marshal(r.UploadedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(r.IndexedAt.UnixMicro(), bs[n:])
	return n
}

func (imageRecordSer) Unmarshal(bs []byte) (r ImageRecord, n int, err error) {
	version, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	if version != imageRecordFormatV1 {
		err = fmt.Errorf("%w: %d", ErrUnknownFormatVersion, version)
		return
	}
	var n1 int
	r.ImageID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.ProjectID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.SequenceNumber, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.S3Key, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Filename, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Embedding, n1, err = unmarshalVector(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.TextDescription, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var count int
	count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count < 0 {
		err = fmt.Errorf("negative metadata length: %d", count)
		return
	}
	if count > 0 {
		r.Metadata = make(map[string]string, count)
		for i := 0; i < count; i++ {
			var k, v string
			k, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			v, n1, err = ord.String.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
			r.Metadata[k] = v
		}
	}
	var micros int64
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.UploadedAt = time.UnixMicro(micros).UTC()
	micros, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.IndexedAt = time.UnixMicro(micros).UTC()
	return
}

type cachedVectorSer struct{}

func (cachedVectorSer) Size(v []float32) int {
	return varint.Uint64.Size(cachedVectorFormatV1) + sizeVector(v)
}

func (cachedVectorSer) Marshal(v []float32, bs []byte) (n int) {
	n = varint.Uint64.Marshal(cachedVectorFormatV1, bs)
	n += marshalVector(v, bs[n:])
	return n
}

func (cachedVectorSer) Unmarshal(bs []byte) (v []float32, n int, err error) {
	version, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	if version != cachedVectorFormatV1 {
		err = fmt.Errorf("%w: %d", ErrUnknownFormatVersion, version)
		return
	}
	var n1 int
	v, n1, err = unmarshalVector(bs[n:])
	n += n1
	return
}

type cachedTextSer struct{}

func (cachedTextSer) Size(s string) int {
	return varint.Uint64.Size(cachedTextFormatV1) + ord.String.Size(s)
}

func (cachedTextSer) Marshal(s string, bs []byte) (n int) {
	n = varint.Uint64.Marshal(cachedTextFormatV1, bs)
	n += ord.String.Marshal(s, bs[n:])
	return n
}

func (cachedTextSer) Unmarshal(bs []byte) (s string, n int, err error) {
	version, n, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return
	}
	if version != cachedTextFormatV1 {
		err = fmt.Errorf("%w: %d", ErrUnknownFormatVersion, version)
		return
	}
	var n1 int
	s, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

// Vectors are stored as a length-prefixed run of IEEE 754 bit patterns.

func sizeVector(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Uint32.Size(math.Float32bits(f))
	}
	return size
}

func marshalVector(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Uint32.Marshal(math.Float32bits(f), bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (v []float32, n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	if count < 0 {
		err = fmt.Errorf("negative vector length: %d", count)
		return
	}
	if count == 0 {
		return nil, n, nil
	}
	v = make([]float32, count)
	var n1 int
	var bits uint32
	for i := 0; i < count; i++ {
		bits, n1, err = varint.Uint32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v[i] = math.Float32frombits(bits)
	}
	return
}
