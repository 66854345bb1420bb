// Package embedding provides text embedding backends for the index.
package embedding

import "context"

// Embedder converts text into dense vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the size of the vectors this embedder produces.
	Dimensions() int

	// Close releases resources held by the embedder.
	Close() error
}
