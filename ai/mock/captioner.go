package mock

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/chronolens/chronolens/ai"
)

// MockCaptioner is a test double for ai.Captioner.
// It allows custom behavior injection via function fields.
type MockCaptioner struct {
	// CaptionFunc is called by Caption if set.
	// If nil, uses default deterministic behavior.
	CaptionFunc func(ctx context.Context, image []byte) (string, error)

	// AnswerQuestionFunc is called by AnswerQuestion if set.
	// If nil, uses default deterministic behavior.
	AnswerQuestionFunc func(ctx context.Context, image []byte, question string) (string, error)

	// CompareImagesFunc is called by CompareImages if set.
	// If nil, uses default deterministic behavior.
	CompareImagesFunc func(ctx context.Context, image1, image2 []byte, question string) (*ai.Comparison, error)

	callCount int
}

// NewMockCaptioner creates a mock captioner with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockCaptioner() *MockCaptioner {
	return &MockCaptioner{}
}

// Caption returns a deterministic caption derived from the image hash.
func (m *MockCaptioner) Caption(ctx context.Context, image []byte) (string, error) {
	m.callCount++

	if m.CaptionFunc != nil {
		return m.CaptionFunc(ctx, image)
	}

	return deterministicCaption(image), nil
}

// AnswerQuestion returns a deterministic answer referencing the question.
func (m *MockCaptioner) AnswerQuestion(ctx context.Context, image []byte, question string) (string, error) {
	m.callCount++

	if m.AnswerQuestionFunc != nil {
		return m.AnswerQuestionFunc(ctx, image, question)
	}

	return fmt.Sprintf("answer about %s for %s", deterministicCaption(image), question), nil
}

// CompareImages returns a deterministic comparison of the two images.
func (m *MockCaptioner) CompareImages(ctx context.Context, image1, image2 []byte, question string) (*ai.Comparison, error) {
	m.callCount++

	if m.CompareImagesFunc != nil {
		return m.CompareImagesFunc(ctx, image1, image2, question)
	}

	desc1 := deterministicCaption(image1)
	desc2 := deterministicCaption(image2)
	return &ai.Comparison{
		Description1: desc1,
		Description2: desc2,
		Summary:      fmt.Sprintf("Image 1: %s. Image 2: %s.", desc1, desc2),
	}, nil
}

// CallCount returns the number of times any method was called.
func (m *MockCaptioner) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockCaptioner) Reset() {
	m.callCount = 0
	m.CaptionFunc = nil
	m.AnswerQuestionFunc = nil
	m.CompareImagesFunc = nil
}

// deterministicCaption produces a stable caption from the image bytes.
func deterministicCaption(image []byte) string {
	h := fnv.New32a()
	h.Write(image)
	return fmt.Sprintf("image with content hash %08x", h.Sum32())
}
