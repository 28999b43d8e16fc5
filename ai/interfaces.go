package ai

import "context"

// Embedder generates vector embeddings for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedImage generates a vector embedding for raw image bytes.
	// The returned vector represents the visual content of the image.
	// Returns an error if the embedding generation fails.
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)

	// EmbedText generates a vector embedding for a text query in the same
	// vector space as image embeddings, enabling text-to-image search.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Captioner generates natural-language descriptions of images using a
// vision-language model. Implementations must be thread-safe for
// concurrent use.
type Captioner interface {
	// Caption generates a descriptive caption for the image.
	// Returns an error if caption generation fails.
	Caption(ctx context.Context, image []byte) (string, error)

	// AnswerQuestion answers a free-form question about the image.
	// Returns an error if answer generation fails.
	AnswerQuestion(ctx context.Context, image []byte, question string) (string, error)

	// CompareImages describes both images and summarizes how they differ.
	// An optional question focuses the comparison on a particular aspect;
	// pass the empty string for a general comparison.
	// Returns an error if any of the underlying generations fail.
	CompareImages(ctx context.Context, image1, image2 []byte, question string) (*Comparison, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Captioner instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the image/text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Captioner returns the vision-language description service.
	// The returned Captioner is safe for concurrent use.
	Captioner() Captioner

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
