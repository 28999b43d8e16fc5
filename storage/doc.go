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


// Package storage provides the storage abstraction layer for chronolens.
//
// This package defines the IndexStore and ContentCache interfaces that
// decouple storage implementation from the enrichment and comparison
// pipelines. It allows different storage backends (BadgerDB, in-memory,
// etc.) to be used interchangeably.
//
// # Constructor Return Type Pattern
//
// This package follows a strict "return interface" pattern for all public
// constructors to enforce abstraction and enable multiple storage backend
// implementations:
//
//	index, err := badger.NewIndexStore(backend) // returns storage.IndexStore
//
// # Architecture
//
//   - IndexStore: per-project ordered image records, idempotent upsert by
//     image ID, exact-sequence lookup, atomic sequence assignment, and
//     vector similarity search
//   - ContentCache: TTL-bounded memoization of enrichment results
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines. A single key's upsert must be atomic.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout
// support.
package storage
