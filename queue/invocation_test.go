package queue

import (
	"errors"
	"testing"
)

func TestInvocationRoundTrip(t *testing.T) {
	enrich := EnrichInvocation{
		ImageID:        "img-1",
		ProjectID:      "proj-a",
		S3Key:          "proj-a/year=2026/month=08/day=31/img-1.jpg",
		SequenceNumber: 5,
	}

	data, err := EncodeInvocation(enrich)
	if err != nil {
		t.Fatalf("Failed to encode invocation: %v", err)
	}

	decoded, err := DecodeInvocation(data)
	if err != nil {
		t.Fatalf("Failed to decode invocation: %v", err)
	}

	got, ok := decoded.(EnrichInvocation)
	if !ok {
		t.Fatalf("Expected EnrichInvocation, got %T", decoded)
	}
	if got != enrich {
		t.Fatalf("Expected %+v, got %+v", enrich, got)
	}
}

func TestCompareInvocationRoundTrip(t *testing.T) {
	compare := CompareInvocation{
		ProjectID: "proj-a",
		Sequence1: 3,
		Sequence2: 7,
		Question:  "did the crane move",
	}

	data, err := EncodeInvocation(compare)
	if err != nil {
		t.Fatalf("Failed to encode invocation: %v", err)
	}

	decoded, err := DecodeInvocation(data)
	if err != nil {
		t.Fatalf("Failed to decode invocation: %v", err)
	}

	got, ok := decoded.(CompareInvocation)
	if !ok {
		t.Fatalf("Expected CompareInvocation, got %T", decoded)
	}
	if got != compare {
		t.Fatalf("Expected %+v, got %+v", compare, got)
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := DecodeInvocation([]byte(`{"kind":"purge_everything","payload":{}}`))
	if !errors.Is(err, ErrMalformedInvocation) {
		t.Fatalf("Expected ErrMalformedInvocation, got %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeInvocation([]byte("not json at all"))
	if !errors.Is(err, ErrMalformedInvocation) {
		t.Fatalf("Expected ErrMalformedInvocation, got %v", err)
	}
}
