package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/toolsync/internal/db"
	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// EnsureIndex creates the FT JSON index over tool documents if it does not
// exist yet. Existing indexes are left untouched.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName(), err)
	}
	if exists {
		return nil
	}

	if err := r.store.CreateIndex(ctx, buildIndex()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", indexName(), err)
	}
	return nil
}

// buildIndex declares TAG fields for every filter the worker and the catalog
// layer query on: approval, slug, overall status and each collection's
// status.
func buildIndex() *db.IndexDefinition {
	b := db.NewIndex(indexName()).
		OnJSON().
		Prefix(domain.KeyPrefix + "tool:").
		TagAs("$.approved", "approved").
		TagAs("$.slug", "slug").
		TagAs("$.syncMetadata.overallStatus", "sync_status")

	for _, c := range collection.All() {
		b = b.TagAs("$.syncMetadata.collections."+string(c)+".status", collectionStatusAlias(c))
	}
	return b.MustBuild()
}
