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


// Package ai provides abstractions for the AI services used in Chronolens.
//
// This package defines interfaces for image embeddings and vision-language
// description. The enrichment and comparison pipelines depend on these
// abstractions rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings from images and text queries
//   - Captioner: Generates descriptions and comparisons via a vision model
//   - Provider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
// The ai package includes two implementation sub-packages:
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations.
//
//	provider, err := openai.NewProvider(config)  // returns ai.Provider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockCaptioner)
// return CONCRETE types to enable test assertions and behavior injection via
// the mock's public fields (function overrides, CallCount, Reset).
//
//	mockEmbed := mock.NewMockEmbedder()   // returns *mock.MockEmbedder
//	mockEmbed.EmbedImageFunc = ...        // needs concrete type
//	count := mockEmbed.CallCount()        // test assertion
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedImage(ctx, imageBytes)
//	caption, err := provider.Captioner().Caption(ctx, imageBytes)
package ai
