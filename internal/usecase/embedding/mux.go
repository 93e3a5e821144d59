// Package embedding routes vectorization through per-profile embedder
// chains. Each collection owns an embedding profile; the mux resolves the
// profile and delegates to its chain (provider transport, cache, instruction
// prefix), so the sync engine and the search surface never see providers.
package embedding

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// Mux dispatches Embed calls to the embedder chain configured for the
// collection's profile.
type Mux struct {
	byProfile map[collection.Profile]domain.Embedder
}

// NewMux creates a profile mux. Every collection's profile must be present.
func NewMux(byProfile map[collection.Profile]domain.Embedder) (*Mux, error) {
	for _, c := range collection.All() {
		if _, ok := byProfile[c.VectorProfile()]; !ok {
			return nil, fmt.Errorf("no embedder for profile %s (collection %s)", c.VectorProfile(), c)
		}
	}
	return &Mux{byProfile: byProfile}, nil
}

// Embed vectorizes text with the profile chain of c.
func (m *Mux) Embed(ctx context.Context, c collection.Collection, text string) (domain.EmbeddingResult, error) {
	e, ok := m.byProfile[c.VectorProfile()]
	if !ok {
		return domain.EmbeddingResult{}, fmt.Errorf("collection %s: %w", c, domain.ErrUnknownCollection)
	}
	res, err := e.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("profile %s: %w", c.VectorProfile(), err)
	}
	return res, nil
}
