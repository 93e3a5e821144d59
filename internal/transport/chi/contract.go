package chi

import (
	"context"

	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	cataloguc "github.com/kailas-cloud/toolsync/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/toolsync/internal/usecase/health"
	searchuc "github.com/kailas-cloud/toolsync/internal/usecase/search"
	syncuc "github.com/kailas-cloud/toolsync/internal/usecase/sync"
)

// CatalogService is the curation surface the HTTP layer exposes.
type CatalogService interface {
	Create(ctx context.Context, in *cataloguc.CreateInput) (*tool.Tool, error)
	Update(ctx context.Context, id string, in *cataloguc.UpdateInput) (*tool.Tool, []string, error)
	Approve(ctx context.Context, id string) (*tool.Tool, error)
	Reject(ctx context.Context, id string) (*tool.Tool, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*tool.Tool, error)
	GetBySlug(ctx context.Context, slug string) (*tool.Tool, error)
	List(ctx context.Context, offset, limit int) ([]*tool.Tool, int, error)
}

// SearchService answers vector search queries.
type SearchService interface {
	Search(ctx context.Context, req *searchuc.Request) ([]searchuc.Hit, error)
}

// SyncAdmin is the operator surface of the background sync worker.
type SyncAdmin interface {
	Status() syncuc.WorkerStatus
	TriggerSweep(ctx context.Context) domsync.SweepResult
	ForceRetryTool(ctx context.Context, id string) (domsync.Result, error)
	ForceRetryAllFailed(ctx context.Context) (domsync.RetryReport, error)
	ResetRetryCount(ctx context.Context, id string) (bool, error)
	MarkToolAsStale(ctx context.Context, id string) (bool, error)
	SyncStats(ctx context.Context) (domsync.Stats, error)
}

// HealthService aggregates component health checks.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}
