package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/core"
	"github.com/chronolens/chronolens/enrich"
	"github.com/chronolens/chronolens/storage"
)

// DefaultLimit is the result count used when a query asks for none.
const DefaultLimit = 10

// Searcher answers semantic queries and image questions for a project.
type Searcher struct {
	index     storage.IndexStore
	blobs     blob.Store
	embedder  ai.Embedder
	captioner ai.Captioner
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(index storage.IndexStore, blobs blob.Store, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, ErrIndexStoreRequired
	}
	if blobs == nil {
		return nil, ErrBlobStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		index:     index,
		blobs:     blobs,
		embedder:  provider.Embedder(),
		captioner: provider.Captioner(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search embeds the query text and returns the project's top records by
// vector similarity.
func (s *Searcher) Search(ctx context.Context, projectID, query string, limit int) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	vector = enrich.NormalizeVector(vector)

	results, err := s.index.SearchSimilar(ctx, projectID, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	s.logger.Debug("semantic search",
		"project_id", projectID,
		"query_len", len(query),
		"results", len(results),
	)
	return results, nil
}

// AnswerQuestion answers a free-form question about the image at the
// given sequence number.
func (s *Searcher) AnswerQuestion(ctx context.Context, projectID string, seq uint64, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuery
	}

	record, err := s.index.GetBySequence(ctx, projectID, seq)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("project %q sequence %d: %w", projectID, seq, err)
		}
		return "", err
	}

	image, err := s.blobs.Get(ctx, record.S3Key)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image blob: %w", err)
	}

	return s.captioner.AnswerQuestion(ctx, image, question)
}

// ListProject returns up to limit records of a project in sequence
// order.
func (s *Searcher) ListProject(ctx context.Context, projectID string, limit int) ([]*core.ImageRecord, error) {
	return s.index.GetByProject(ctx, projectID, limit)
}
