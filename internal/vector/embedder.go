// Package vector provides the embedding client abstraction and the numeric
// helpers shared by the vector index and its persistence layer.
package vector

import "context"

const (
	// DefaultEmbeddingDimensions is the vector size produced by the mock
	// embedder when no dimension is configured.
	DefaultEmbeddingDimensions = 1536
)

// Embedder maps text to a fixed-length vector through an external provider.
//
// Implementations hold no local mutable state and must be safe for
// concurrent use. They do not retry or cache; failures surface as
// errortypes provider errors.
type Embedder interface {
	// CreateEmbedding converts text into a vector representation.
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Initialize validates configuration before first use.
	Initialize() error

	// Name returns the provider name, e.g. "openai".
	Name() string
}
