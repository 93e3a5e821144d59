package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// WorkerInspector reports whether the background sync worker loop is alive.
type WorkerInspector interface {
	Running() bool
}
