package mock

import "github.com/chronolens/chronolens/ai"

// MockProvider is a test double for ai.Provider aggregating mock services.
type MockProvider struct {
	embedder  *MockEmbedder
	captioner *MockCaptioner
}

// NewMockProvider creates a provider backed by fresh mock services.
func NewMockProvider() ai.Provider {
	return &MockProvider{
		embedder:  NewMockEmbedder(),
		captioner: NewMockCaptioner(),
	}
}

// Embedder returns the mock embedding service.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Captioner returns the mock vision service.
func (p *MockProvider) Captioner() ai.Captioner {
	return p.captioner
}

// GetMockEmbedder returns the concrete mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockCaptioner returns the concrete mock captioner for test assertions.
func (p *MockProvider) GetMockCaptioner() *MockCaptioner {
	return p.captioner
}

// Close is a no-op for mocks.
func (p *MockProvider) Close() error {
	return nil
}
