// Package sync holds the persisted synchronization state machine: per-tool,
// per-collection status records embedded on the tool document, plus the
// transient result values the orchestrator and the worker report.
package sync

import (
	"time"

	"github.com/kailas-cloud/toolsync/internal/domain/collection"
)

// Status is the synchronization state of a collection (or of the whole tool).
type Status string

const (
	// StatusPending means the collection has never been synced (or was reset).
	StatusPending Status = "pending"
	// StatusSynced means the indexed content matches the primary record.
	StatusSynced Status = "synced"
	// StatusFailed means the last sync attempt failed.
	StatusFailed Status = "failed"
	// StatusStale means the primary record changed since the last sync.
	StatusStale Status = "stale"
)

// IsValid checks if the status is one of the four known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSynced, StatusFailed, StatusStale:
		return true
	}
	return false
}

// NeedsSync reports whether a record in this state wants orchestrator attention.
func (s Status) NeedsSync() bool {
	return s == StatusPending || s == StatusFailed || s == StatusStale
}

// ErrorCode classifies a per-collection sync failure.
type ErrorCode string

const (
	// CodeContentGenerationFailed means the textual content could not be built.
	CodeContentGenerationFailed ErrorCode = "CONTENT_GENERATION_FAILED"
	// CodeEmbeddingFailed means the embedding provider rejected or timed out.
	CodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	// CodeVectorUpsertFailed means the vector index write failed.
	CodeVectorUpsertFailed ErrorCode = "VECTOR_UPSERT_FAILED"
	// CodeVectorDeleteFailed means the vector index delete failed.
	CodeVectorDeleteFailed ErrorCode = "VECTOR_DELETE_FAILED"
	// CodeStoreUpdateFailed means persisting sync state to the primary store failed.
	CodeStoreUpdateFailed ErrorCode = "STORE_UPDATE_FAILED"

	// CodeToolNotFound is the entity-level code for retry operations on a missing tool.
	CodeToolNotFound ErrorCode = "TOOL_NOT_FOUND"
	// CodeInvalidToolData is the entity-level code for a malformed tool.
	CodeInvalidToolData ErrorCode = "INVALID_TOOL_DATA"
)

// CollectionStatus is the persisted per-collection sync record.
type CollectionStatus struct {
	Status            Status     `json:"status"`
	LastSyncedAt      *time.Time `json:"lastSyncedAt,omitempty"`
	LastSyncAttemptAt *time.Time `json:"lastSyncAttemptAt,omitempty"`
	LastError         string     `json:"lastError,omitempty"`
	ErrorCode         ErrorCode  `json:"errorCode,omitempty"`
	RetryCount        int        `json:"retryCount"`
	ContentHash       string     `json:"contentHash,omitempty"`
	VectorVersion     int        `json:"vectorVersion"`
}

// Metadata is the sync sub-record embedded on every tool document.
// OverallStatus is written explicitly by whichever operation mutated the
// tool; it converges to synced once every collection syncs.
type Metadata struct {
	OverallStatus      Status                                     `json:"overallStatus"`
	Collections        map[collection.Collection]CollectionStatus `json:"collections"`
	LastModifiedFields []string                                   `json:"lastModifiedFields,omitempty"`
	CreatedAt          time.Time                                  `json:"createdAt"`
	UpdatedAt          time.Time                                  `json:"updatedAt"`
}

// NewMetadata returns metadata with every collection pending.
func NewMetadata(now time.Time) Metadata {
	cols := make(map[collection.Collection]CollectionStatus, len(collection.All()))
	for _, c := range collection.All() {
		cols[c] = CollectionStatus{Status: StatusPending}
	}
	return Metadata{
		OverallStatus: StatusPending,
		Collections:   cols,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Normalize restores the invariant that the per-collection map is never
// partial: missing entries become pending.
func (m *Metadata) Normalize() {
	if m.Collections == nil {
		m.Collections = make(map[collection.Collection]CollectionStatus, len(collection.All()))
	}
	for _, c := range collection.All() {
		if _, ok := m.Collections[c]; !ok {
			m.Collections[c] = CollectionStatus{Status: StatusPending}
		}
	}
	if !m.OverallStatus.IsValid() {
		m.OverallStatus = StatusPending
	}
}

// Collection returns the status record for c (pending zero value if absent).
func (m *Metadata) Collection(c collection.Collection) CollectionStatus {
	if cs, ok := m.Collections[c]; ok {
		return cs
	}
	return CollectionStatus{Status: StatusPending}
}

// SetCollection replaces the status record for c.
func (m *Metadata) SetCollection(c collection.Collection, cs CollectionStatus) {
	if m.Collections == nil {
		m.Collections = make(map[collection.Collection]CollectionStatus, len(collection.All()))
	}
	m.Collections[c] = cs
}

// AllSynced reports whether every collection is currently synced.
func (m *Metadata) AllSynced() bool {
	for _, c := range collection.All() {
		if m.Collection(c).Status != StatusSynced {
			return false
		}
	}
	return true
}

// MaxRetryCount returns the worst per-collection retry count.
func (m *Metadata) MaxRetryCount() int {
	maxRetries := 0
	for _, c := range collection.All() {
		if rc := m.Collection(c).RetryCount; rc > maxRetries {
			maxRetries = rc
		}
	}
	return maxRetries
}

// LastAttemptAt returns the most recent sync attempt across collections
// (zero time when no attempt was ever made).
func (m *Metadata) LastAttemptAt() time.Time {
	var last time.Time
	for _, c := range collection.All() {
		if at := m.Collection(c).LastSyncAttemptAt; at != nil && at.After(last) {
			last = *at
		}
	}
	return last
}
