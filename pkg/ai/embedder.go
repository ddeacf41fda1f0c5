package ai

import "context"

// Embedder computes embedding vectors for a batch of text chunks.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding model, used to detect on-disk index
	// incompatibility.
	Model() string
}
