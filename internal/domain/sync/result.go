package sync

import (
	"time"

	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// Outcome is the processing result for one collection within a sync call.
type Outcome string

const (
	// OutcomeSynced means content was embedded and upserted.
	OutcomeSynced Outcome = "synced"
	// OutcomeFailed means at least one pipeline step failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means the stored content hash already matched.
	OutcomeSkipped Outcome = "skipped"
)

// CollectionResult is the outcome of processing a single collection.
type CollectionResult struct {
	Collection collection.Collection `json:"collection"`
	Outcome    Outcome               `json:"outcome"`
	ErrorCode  ErrorCode             `json:"errorCode,omitempty"`
	Error      string                `json:"error,omitempty"`
	Duration   time.Duration         `json:"duration"`
}

// Result aggregates per-collection outcomes of one orchestrator call.
// Success is true iff no requested collection failed.
type Result struct {
	Success       bool               `json:"success"`
	SyncedCount   int                `json:"syncedCount"`
	FailedCount   int                `json:"failedCount"`
	SkippedCount  int                `json:"skippedCount"`
	Collections   []CollectionResult `json:"collections"`
	TotalDuration time.Duration      `json:"totalDuration"`
}

// BuildResult tallies per-collection outcomes into a Result.
func BuildResult(collections []CollectionResult, total time.Duration) Result {
	r := Result{Collections: collections, TotalDuration: total}
	for _, cr := range collections {
		switch cr.Outcome {
		case OutcomeSynced:
			r.SyncedCount++
		case OutcomeFailed:
			r.FailedCount++
		case OutcomeSkipped:
			r.SkippedCount++
		}
	}
	r.Success = r.FailedCount == 0
	return r
}

// SweepResult summarizes one worker pass. Transient, never persisted.
type SweepResult struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Errors    []string      `json:"errors,omitempty"`
}

// RetryReport aggregates operator-triggered retries across tools.
type RetryReport struct {
	Attempted int             `json:"attempted"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Tools     map[string]bool `json:"tools"`
}

// Stats is a point-in-time census of sync state across the catalog.
type Stats struct {
	Total        int                                      `json:"total"`
	ByOverall    map[Status]int                           `json:"byOverallStatus"`
	ByCollection map[collection.Collection]map[Status]int `json:"byCollection"`
}
