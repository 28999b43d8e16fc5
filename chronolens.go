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


package chronolens

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/chronolens/chronolens/ai"
	"github.com/chronolens/chronolens/ai/openai"
	"github.com/chronolens/chronolens/blob"
	"github.com/chronolens/chronolens/compare"
	"github.com/chronolens/chronolens/enrich"
	"github.com/chronolens/chronolens/queue"
	"github.com/chronolens/chronolens/reembed"
	"github.com/chronolens/chronolens/search"
	"github.com/chronolens/chronolens/storage"
	"github.com/chronolens/chronolens/storage/badger"
	"github.com/chronolens/chronolens/upload"
	"github.com/chronolens/chronolens/worker"
)

// System wires the index store, content cache, blob store, task queue,
// and AI provider into one unit with a shared lifecycle.
type System struct {
	backend  *badger.Backend
	index    storage.IndexStore
	cache    storage.ContentCache
	blobs    blob.Store
	queue    queue.Queue
	provider ai.Provider
	logger   *slog.Logger
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	aiConfig *ai.Config
	provider ai.Provider
	blobs    blob.Store
	queue    queue.Queue
	logger   *slog.Logger
}

// WithAIConfig overrides the default AI service endpoints and models.
func WithAIConfig(config *ai.Config) SystemOption {
	return func(o *systemOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built AI provider, bypassing the default
// OpenAI-compatible one. The System takes ownership and closes it.
func WithProvider(provider ai.Provider) SystemOption {
	return func(o *systemOptions) {
		o.provider = provider
	}
}

// WithBlobStore injects the blob store. Default is an in-memory store;
// production deployments pass a NATS ObjectStore-backed one.
func WithBlobStore(blobs blob.Store) SystemOption {
	return func(o *systemOptions) {
		o.blobs = blobs
	}
}

// WithQueue injects the task queue. Default is an in-process queue;
// production deployments pass a JetStream-backed one.
func WithQueue(q queue.Queue) SystemOption {
	return func(o *systemOptions) {
		o.queue = q
	}
}

// WithSystemLogger sets the logger used by all components.
func WithSystemLogger(logger *slog.Logger) SystemOption {
	return func(o *systemOptions) {
		o.logger = logger
	}
}

// NewSystem opens the index at filePath and assembles the system.
func NewSystem(filePath string, opts ...SystemOption) (*System, error) {
	options := &systemOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.logger
	if logger == nil {
		logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, filePath == "")
	if err != nil {
		return nil, err
	}

	index, err := badger.NewIndexStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	cache, err := badger.NewContentCache(backend)
	if err != nil {
		index.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			cache.Close()
			index.Close()
			backend.Close()
			return nil, err
		}
	}

	blobs := options.blobs
	if blobs == nil {
		blobs = blob.NewMemoryStore()
	}

	q := options.queue
	if q == nil {
		q = queue.NewMemoryQueue(0)
	}

	return &System{
		backend:  backend,
		index:    index,
		cache:    cache,
		blobs:    blobs,
		queue:    q,
		provider: provider,
		logger:   logger,
	}, nil
}

// Close shuts components down in reverse dependency order.
func (s *System) Close() error {
	if err := s.queue.Close(); err != nil {
		s.logger.Error("error closing queue", "err", err)
	}
	if err := s.blobs.Close(); err != nil {
		s.logger.Error("error closing blob store", "err", err)
	}
	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("error closing content cache", "err", err)
		return err
	}
	if err := s.index.Close(); err != nil {
		s.logger.Error("error closing index store", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// IndexStore exposes the image record store.
func (s *System) IndexStore() storage.IndexStore {
	return s.index
}

// BlobStore exposes the object store holding image bytes.
func (s *System) BlobStore() blob.Store {
	return s.blobs
}

// Queue exposes the task queue.
func (s *System) Queue() queue.Queue {
	return s.queue
}

// NewUploadService creates the ingest-side service.
func (s *System) NewUploadService() *upload.Service {
	return upload.NewService(s.blobs, s.index, s.queue, s.logger)
}

// NewSearcher creates a query-time searcher.
func (s *System) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(s.index, s.blobs, s.provider, opts...)
}

// NewEnrichPipeline creates the enrichment pipeline.
func (s *System) NewEnrichPipeline() *enrich.Pipeline {
	return enrich.NewPipeline(s.blobs, s.provider.Embedder(), s.provider.Captioner(),
		s.index, s.cache, s.logger)
}

// NewComparePipeline creates the comparison pipeline.
func (s *System) NewComparePipeline() *compare.Pipeline {
	return compare.NewPipeline(s.index, s.blobs, s.provider.Captioner(), s.cache, s.logger)
}

// NewReembedder creates a maintenance runner that regenerates the
// stored embeddings of a project, typically after an embedding model
// change. Progress is written to progress.
func (s *System) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(s.index, s.blobs, s.provider.Embedder(), config, progress)
}

// NewDispatcher creates a worker dispatcher with both pipelines
// registered. Comparison lookups against absent sequence numbers are
// marked permanent so the dispatcher never retries them.
func (s *System) NewDispatcher(opts ...worker.Option) (*worker.Dispatcher, error) {
	dispatcher, err := worker.NewDispatcher(s.queue, opts...)
	if err != nil {
		return nil, err
	}

	enrichPipeline := s.NewEnrichPipeline()
	dispatcher.Register(queue.KindEnrichImage, func(ctx context.Context, inv queue.Invocation) error {
		return enrichPipeline.Process(ctx, inv.(queue.EnrichInvocation))
	})

	comparePipeline := s.NewComparePipeline()
	dispatcher.Register(queue.KindCompareImages, func(ctx context.Context, inv queue.Invocation) error {
		_, err := comparePipeline.Process(ctx, inv.(queue.CompareInvocation))
		if errors.Is(err, compare.ErrRecordNotFound) {
			return worker.Permanent(err)
		}
		return err
	})

	return dispatcher, nil
}
