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


package queue

import (
	"encoding/json"
	"fmt"
)

// Invocation kinds routed by the worker dispatcher.
const (
	KindEnrichImage   = "enrich_image"
	KindCompareImages = "compare_images"
)

// Invocation is a unit of asynchronous work placed on the task queue.
type Invocation interface {
	// Kind identifies the handler responsible for this invocation.
	Kind() string
}

// EnrichInvocation requests enrichment of a single uploaded image.
type EnrichInvocation struct {
	ImageID        string `json:"image_id"`
	ProjectID      string `json:"project_id"`
	S3Key          string `json:"s3_key"`
	SequenceNumber uint64 `json:"sequence_number"`
}

func (EnrichInvocation) Kind() string { return KindEnrichImage }

// CompareInvocation requests a comparison of two images within a
// project, addressed by their sequence numbers.
type CompareInvocation struct {
	ProjectID string `json:"project_id"`
	Sequence1 uint64 `json:"sequence1"`
	Sequence2 uint64 `json:"sequence2"`

	// Question optionally focuses the comparison; empty means a
	// general comparison.
	Question string `json:"question,omitempty"`
}

func (CompareInvocation) Kind() string { return KindCompareImages }

// envelope is the wire form of an invocation.
type envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeInvocation serializes an invocation for transport.
func EncodeInvocation(inv Invocation) ([]byte, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	data, err := json.Marshal(envelope{Kind: inv.Kind(), Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return data, nil
}

// DecodeInvocation deserializes an invocation from its wire form.
// Unknown kinds and malformed payloads return ErrMalformedInvocation.
func DecodeInvocation(data []byte) (Invocation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInvocation, err)
	}

	switch env.Kind {
	case KindEnrichImage:
		var inv EnrichInvocation
		if err := json.Unmarshal(env.Payload, &inv); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInvocation, err)
		}
		return inv, nil
	case KindCompareImages:
		var inv CompareInvocation
		if err := json.Unmarshal(env.Payload, &inv); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInvocation, err)
		}
		return inv, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformedInvocation, env.Kind)
	}
}
