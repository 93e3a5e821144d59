// Package vector maintains the four per-collection vector indexes: hash
// documents carrying an HNSW-indexed embedding plus the payload fields
// echoed on search hits.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/toolsync/internal/db"
	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// store is the consumer interface for vector documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config holds the index geometry shared by all four collections.
type Config struct {
	Dim         int
	M           int // HNSW max edges per node
	EFConstruct int // HNSW build-time candidate list size
}

// ApplyDefaults fills zero fields with the usual HNSW parameters.
func (c *Config) ApplyDefaults() {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EFConstruct <= 0 {
		c.EFConstruct = 200
	}
}

// Repo implements the sync engine's VectorIndex contract and the search
// layer's KNN lookup.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector repository.
func New(s store, cfg Config) (*Repo, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("vector dim must be positive, got %d", cfg.Dim)
	}
	cfg.ApplyDefaults()
	return &Repo{store: s, cfg: cfg}, nil
}

// EnsureIndexes creates the per-collection FT indexes that do not exist yet.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	for _, c := range collection.All() {
		exists, err := r.store.IndexExists(ctx, indexName(c))
		if err != nil {
			return fmt.Errorf("check index %s: %w", indexName(c), err)
		}
		if exists {
			continue
		}
		if err := r.store.CreateIndex(ctx, r.buildIndex(c)); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", indexName(c), err)
		}
	}
	return nil
}

// Upsert writes the embedding and the payload for one tool in one collection.
// HSET replaces listed fields and keeps the key, so repeated upserts are
// idempotent.
func (r *Repo) Upsert(
	ctx context.Context, c collection.Collection, id string, vector []float32, payload map[string]string,
) error {
	if len(vector) != r.cfg.Dim {
		return fmt.Errorf("vector for %s/%s has dim %d, index expects %d", c, id, len(vector), r.cfg.Dim)
	}

	fields := make(map[string]string, len(payload)+1)
	for k, v := range payload {
		fields[k] = v
	}
	fields["__vector"] = db.VectorBytes(vector)

	if err := r.store.HSet(ctx, vectorKey(c, id), fields); err != nil {
		return fmt.Errorf("upsert vector %s/%s: %w", c, id, err)
	}
	return nil
}

// UpdatePayload rewrites the payload fields without touching the embedding.
// A plain HSET over the payload keys is a partial update by construction.
func (r *Repo) UpdatePayload(
	ctx context.Context, c collection.Collection, id string, payload map[string]string,
) error {
	if len(payload) == 0 {
		return nil
	}
	if err := r.store.HSet(ctx, vectorKey(c, id), payload); err != nil {
		return fmt.Errorf("update payload %s/%s: %w", c, id, err)
	}
	return nil
}

// Delete removes the vector document for one tool in one collection.
// Deleting an absent key is a no-op.
func (r *Repo) Delete(ctx context.Context, c collection.Collection, id string) error {
	if err := r.store.Del(ctx, vectorKey(c, id)); err != nil {
		return fmt.Errorf("delete vector %s/%s: %w", c, id, err)
	}
	return nil
}

// SearchKNN returns the k nearest tools in one collection.
func (r *Repo) SearchKNN(
	ctx context.Context, c collection.Collection, vector []float32, k int,
) ([]domain.SearchHit, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: indexName(c),
		Vector:    vector,
		K:         k,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", c, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	prefix := keyPrefix(c)
	hits := make([]domain.SearchHit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		// Cleared metadata is stored as the empty string; hide it from hits.
		payload := make(map[string]string, len(entry.Fields))
		for k, v := range entry.Fields {
			if k == "__vector" || v == "" {
				continue
			}
			payload[k] = v
		}
		hits = append(hits, domain.SearchHit{
			ID:      strings.TrimPrefix(entry.Key, prefix),
			Score:   entry.Score,
			Payload: payload,
		})
	}
	return hits, nil
}

func (r *Repo) buildIndex(c collection.Collection) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:        indexName(c),
		StorageType: db.StorageHash,
		Prefixes:    []string{keyPrefix(c)},
		Fields: []db.IndexField{
			{Name: "tool_id", Type: db.IndexFieldTag},
			{Name: "slug", Type: db.IndexFieldTag},
			{
				Name:              "__vector",
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.cfg.Dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.cfg.M,
				VectorEFConstruct: r.cfg.EFConstruct,
			},
		},
	}
}

func keyPrefix(c collection.Collection) string {
	return domain.KeyPrefix + "vec:" + string(c) + ":"
}

func vectorKey(c collection.Collection, id string) string {
	return keyPrefix(c) + id
}

func indexName(c collection.Collection) string {
	return domain.KeyPrefix + "vec:" + string(c) + ":idx"
}
