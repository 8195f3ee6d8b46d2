// Package embedder provides the embedding capability injected into the
// Indexer and Retriever, with implementations talking to different backends
// (Ollama, OpenAI-compatible) via plain HTTP — no SDK dependencies.
//
// The capability is optional: a nil Embedder means "embedding unavailable"
// and callers degrade to lexical lookup or zero-vector indexing instead of
// failing. Availability is decided once at construction time; callers branch
// on the nil check, never on caught errors.
package embedder

import "context"

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
