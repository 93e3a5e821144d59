package catalog

import (
	"context"

	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	"github.com/kailas-cloud/toolsync/internal/usecase/sync"
)

// Store is the primary-store contract the catalog layer depends on.
type Store interface {
	Insert(ctx context.Context, t *tool.Tool) error
	// Save rewrites an existing tool document in full.
	Save(ctx context.Context, t *tool.Tool) error
	FindByID(ctx context.Context, id string) (*tool.Tool, error)
	FindBySlug(ctx context.Context, slug string) (*tool.Tool, error)
	List(ctx context.Context, offset, limit int) ([]*tool.Tool, int, error)
	Delete(ctx context.Context, id string) error
}

// Syncer is the slice of the sync orchestrator the catalog drives after a
// mutation lands in the primary store.
type Syncer interface {
	SyncTool(ctx context.Context, t *tool.Tool, opts sync.Options) (domsync.Result, error)
	SyncAffectedCollections(ctx context.Context, t *tool.Tool, changed []string) (domsync.Result, error)
	DeleteTool(ctx context.Context, id string) domsync.Result
	// Lock serializes a catalog read-modify-write on the tool's document
	// with the sync pipeline's partial patches. Release before calling any
	// sync operation on the same tool.
	Lock(id string) func()
}
