package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/chronolens/chronolens/ai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Image inputs are sent as base64 data URIs, the convention CLIP-style
// embedding servers accept on the standard embeddings endpoint.
type Embedder struct {
	client *goopenai.Client
	model  string
	logger *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	clientConfig := goopenai.DefaultConfig("none")
	clientConfig.BaseURL = config.EmbeddingHost
	clientConfig.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	return &Embedder{
		client: goopenai.NewClientWithConfig(clientConfig),
		model:  config.EmbeddingModel,
		logger: slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedImage generates a vector embedding for raw image bytes.
func (e *Embedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	e.logger.Debug("generating embedding for image", "size_bytes", len(image))

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	return e.embed(ctx, dataURI)
}

// EmbedText generates a vector embedding for a text query. The embedding
// model maps text and images into the same vector space.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for text", "length", len(text))

	return e.embed(ctx, text)
}

func (e *Embedder) embed(ctx context.Context, input string) ([]float32, error) {
	req := goopenai.EmbeddingRequest{
		Input: []string{input},
		Model: goopenai.EmbeddingModel(e.model),
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, fmt.Errorf("embedding API call failed: %w", err)
	}

	if len(resp.Data) == 0 {
		e.logger.Warn("embedder returned empty result")
		return []float32{}, nil
	}

	return resp.Data[0].Embedding, nil
}
