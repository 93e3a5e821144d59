package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = errors.New("query must not be empty")

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Request describes one search call.
type Request struct {
	// Query is the free-text query to vectorize.
	Query string
	// Collection restricts the search to one collection. Empty searches
	// all collections and fuses the per-collection rankings.
	Collection string
	// Limit caps the number of returned hits.
	Limit int
	// MinSimilarity drops hits whose cosine similarity falls below it.
	MinSimilarity float64
}

// Hit is one fused search result.
type Hit struct {
	ID string `json:"id"`
	// Collection names the collection the hit surfaced from; for fused
	// results it is the collection where the tool ranked best.
	Collection string `json:"collection"`
	// Score orders the results. For a single-collection search it equals
	// Similarity; for a fused search it is the RRF score.
	Score float64 `json:"score"`
	// Similarity is the cosine similarity of the best-ranked occurrence.
	Similarity float64           `json:"similarity"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// Service answers queries against the per-collection vector indexes.
type Service struct {
	index  Index
	embed  Embedder
	logger *zap.Logger
}

// NewService creates a search service.
func NewService(index Index, embed Embedder, logger *zap.Logger) *Service {
	return &Service{index: index, embed: embed, logger: logger}
}

// Search vectorizes the query and runs KNN over the requested collection,
// or over every collection with reciprocal rank fusion when no collection
// is named.
func (s *Service) Search(ctx context.Context, req *Request) ([]Hit, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if req.Collection != "" {
		c, ok := collection.Parse(req.Collection)
		if !ok {
			return nil, fmt.Errorf("collection %q: %w", req.Collection, domain.ErrUnknownCollection)
		}
		hits, err := s.searchOne(ctx, c, req.Query, limit)
		if err != nil {
			return nil, err
		}
		out := make([]Hit, 0, len(hits))
		for _, h := range hits {
			out = append(out, Hit{
				ID:         h.ID,
				Collection: c.String(),
				Score:      h.Score,
				Similarity: h.Score,
				Payload:    h.Payload,
			})
		}
		return filterSimilarity(out, req.MinSimilarity), nil
	}

	fused, err := s.searchAll(ctx, req.Query, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fused search",
		zap.String("query", req.Query),
		zap.Int("hits", len(fused)))
	return filterSimilarity(fused, req.MinSimilarity), nil
}

// searchAll queries every collection concurrently. Each collection embeds
// the query with its own profile, so vectors are not shared across
// collections. A collection that fails fails the whole search.
func (s *Service) searchAll(ctx context.Context, query string, limit int) ([]Hit, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		lists    = make(map[string][]domain.SearchHit)
	)

	for _, c := range collection.All() {
		wg.Add(1)
		go func(c collection.Collection) {
			defer wg.Done()
			hits, err := s.searchOne(ctx, c, query, limit)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if len(hits) > 0 {
				lists[c.String()] = hits
			}
		}(c)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return fuseRRF(lists, limit), nil
}

func (s *Service) searchOne(
	ctx context.Context, c collection.Collection, query string, k int,
) ([]domain.SearchHit, error) {
	emb, err := s.embed.Embed(ctx, c, query)
	if err != nil {
		return nil, fmt.Errorf("embed query for %s: %w", c, err)
	}
	hits, err := s.index.SearchKNN(ctx, c, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("knn %s: %w", c, err)
	}
	return hits, nil
}

func filterSimilarity(hits []Hit, min float64) []Hit {
	if min <= 0 {
		return hits
	}
	out := hits[:0]
	for _, h := range hits {
		if h.Similarity >= min {
			out = append(out, h)
		}
	}
	return out
}
