// Package reembed regenerates the stored embeddings of a project's
// images, typically after switching to a different embedding model.
//
// Records are walked in sequence order and processed in batches with
// progress tracking and per-image retry with exponential backoff.
// Vectors are normalized before persisting so cosine similarity search
// keeps working across model changes.
package reembed
