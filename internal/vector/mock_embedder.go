package vector

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
)

// MockEmbedder creates deterministic but simplistic embeddings. It needs no
// network access and is the default provider for local use and tests.
type MockEmbedder struct {
	dimensions int
}

var _ Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a new MockEmbedder with the specified dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 128
	}
	return &MockEmbedder{
		dimensions: dimensions,
	}
}

// Initialize sets up the embedder with any required configuration.
func (e *MockEmbedder) Initialize() error {
	return nil
}

// Name returns the provider name.
func (e *MockEmbedder) Name() string {
	return ProviderMock
}

// CreateEmbedding generates a mock embedding for the given text.
// The same text always produces the same unit-length embedding.
func (e *MockEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding := make([]float32, e.dimensions)
	hash := md5.Sum([]byte(text))

	// Wrap around the hash, 4 bytes per dimension
	for i := 0; i < e.dimensions; i++ {
		hashIdx := (i * 4) % len(hash)
		seed := binary.LittleEndian.Uint32(append(hash[hashIdx:], hash[:4]...))

		// Value between -1 and 1
		embedding[i] = float32(seed%1000)/500.0 - 1.0
	}

	normalize(embedding)
	return embedding, nil
}

// normalize scales the embedding to unit length in place.
func normalize(embedding []float32) {
	var sumSquares float32
	for _, val := range embedding {
		sumSquares += val * val
	}

	magnitude := float32(math.Sqrt(float64(sumSquares)))
	if magnitude == 0 {
		return
	}
	for i := range embedding {
		embedding[i] /= magnitude
	}
}
