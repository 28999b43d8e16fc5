// Package mock provides test doubles for the ai interfaces.
//
// Mocks default to deterministic behavior derived from input hashes, so
// tests get stable embeddings and captions without external services.
// Behavior can be overridden per test via the exported function fields.
package mock
