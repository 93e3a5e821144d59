package sync

import (
	"context"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
)

// ToolStore is the primary-store contract the sync engine depends on.
type ToolStore interface {
	FindByID(ctx context.Context, id string) (*tool.Tool, error)
	// FindSyncCandidates returns approved tools whose overall status is
	// pending, failed or stale, bounded by limit.
	FindSyncCandidates(ctx context.Context, limit int) ([]*tool.Tool, error)
	// FindFailed returns approved tools whose overall status is failed.
	FindFailed(ctx context.Context, limit int) ([]*tool.Tool, error)
	// ApplySyncPatch writes dot-path partial updates into the tool's sync
	// metadata sub-record without rewriting the rest of the document.
	ApplySyncPatch(ctx context.Context, id string, p *domsync.Patch) error
	// SyncStats scans sync metadata and counts tools by status.
	SyncStats(ctx context.Context) (domsync.Stats, error)
}

// ContentGenerator builds collection-specific text and index payloads.
type ContentGenerator interface {
	Generate(t *tool.Tool, c collection.Collection) (string, error)
	Payload(t *tool.Tool) map[string]string
}

// Embedder vectorizes collection content using the collection's profile.
type Embedder interface {
	Embed(ctx context.Context, c collection.Collection, text string) (domain.EmbeddingResult, error)
}

// VectorIndex is the derived-index contract: one named index per collection.
type VectorIndex interface {
	Upsert(ctx context.Context, c collection.Collection, id string, vector []float32, payload map[string]string) error
	UpdatePayload(ctx context.Context, c collection.Collection, id string, payload map[string]string) error
	Delete(ctx context.Context, c collection.Collection, id string) error
}
