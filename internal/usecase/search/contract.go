package search

import (
	"context"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// Index performs KNN lookups over one collection's vector index.
type Index interface {
	SearchKNN(ctx context.Context, c collection.Collection, vector []float32, k int) ([]domain.SearchHit, error)
}

// Embedder vectorizes query text with the collection's embedding profile.
type Embedder interface {
	Embed(ctx context.Context, c collection.Collection, text string) (domain.EmbeddingResult, error)
}
