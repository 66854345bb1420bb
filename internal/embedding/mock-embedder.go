package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder produces deterministic pseudo-embeddings from a hash of the
// input text. Useful for tests and for running without a model backend.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a mock embedder emitting vectors of the given size.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 64
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed generates a normalized vector seeded by the FNV hash of text. The
// same text always maps to the same vector.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	var norm float64
	state := seed
	for i := range vec {
		// xorshift keeps components spread without importing math/rand.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state)) / float64(math.MaxInt64)
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Dimensions reports the configured vector size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// Close is a no-op.
func (m *MockEmbedder) Close() error {
	return nil
}
