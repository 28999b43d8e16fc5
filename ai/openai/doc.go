// Package openai implements the ai interfaces against OpenAI-compatible
// HTTP APIs (Ollama, LocalAI, vLLM, or OpenAI itself).
//
// Embeddings go through the standard embeddings endpoint; image inputs
// are sent as base64 data URIs, which CLIP-style embedding servers
// accept. Captioning and comparison use the chat completions endpoint
// with an image part per message.
package openai
