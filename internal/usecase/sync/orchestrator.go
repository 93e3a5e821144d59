// Package sync implements the synchronization engine: field-level change
// detection, per-collection content fingerprints, the orchestrator that
// pushes a tool into the derived search collections, and the background
// worker that retries stale and failed work.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	"github.com/kailas-cloud/toolsync/internal/metrics"
)

// maxStoredErrorLen bounds lastError so a noisy collaborator cannot bloat
// the persisted document.
const maxStoredErrorLen = 500

// Orchestrator drives the per-collection indexing pipeline for one tool:
// build content, embed, upsert, and record the outcome on the tool's sync
// metadata. One collection's failure never blocks its siblings.
type Orchestrator struct {
	store    ToolStore
	content  ContentGenerator
	embedder Embedder
	index    VectorIndex
	logger   *zap.Logger
	locks    keyedMutex
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	store ToolStore, content ContentGenerator, embedder Embedder, index VectorIndex, logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		content:  content,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Lock serializes an external read-modify-write on a tool's document with
// the sync pipeline, which patches the same document's sync sub-record. The
// returned func releases the lock. Callers must release before invoking any
// sync operation on the same tool or they deadlock.
func (o *Orchestrator) Lock(id string) func() {
	return o.locks.lock(id)
}

// Options restricts and forces a sync call.
type Options struct {
	// Collections restricts the target set; nil means all collections.
	Collections []collection.Collection
	// Force bypasses the content-hash skip check.
	Force bool
}

// SyncTool pushes t into the target collections. Unchanged content is
// skipped unless forced; per-collection failures are recorded on the sync
// metadata and reflected in the result, never returned as an error. The only
// error is ErrInvalidToolData for a malformed tool.
func (o *Orchestrator) SyncTool(ctx context.Context, t *tool.Tool, opts Options) (domsync.Result, error) {
	if t == nil {
		return domsync.Result{}, fmt.Errorf("sync: nil tool: %w", domain.ErrInvalidToolData)
	}
	if err := tool.ValidateIdentity(t.ID, t.Slug, t.Name); err != nil {
		return domsync.Result{}, err
	}

	unlock := o.locks.lock(t.ID)
	defer unlock()

	t.Sync.Normalize()

	targets := opts.Collections
	if len(targets) == 0 {
		targets = collection.All()
	}

	start := time.Now()
	results := make([]domsync.CollectionResult, 0, len(targets))
	for _, c := range targets {
		results = append(results, o.syncCollection(ctx, t, c, opts.Force))
	}

	res := domsync.BuildResult(results, time.Since(start))
	o.finalizeOverall(ctx, t, res)

	o.logger.Info("tool sync finished",
		zap.String("tool_id", t.ID),
		zap.Bool("force", opts.Force),
		zap.Int("synced", res.SyncedCount),
		zap.Int("failed", res.FailedCount),
		zap.Int("skipped", res.SkippedCount),
		zap.Duration("duration", res.TotalDuration),
	)
	return res, nil
}

// SyncAffectedCollections syncs exactly the collections whose content the
// changed fields feed. A metadata-only change set triggers a payload-only
// rewrite across all collections instead; an empty change set skips
// everything.
func (o *Orchestrator) SyncAffectedCollections(
	ctx context.Context, t *tool.Tool, changed []string,
) (domsync.Result, error) {
	if t == nil {
		return domsync.Result{}, fmt.Errorf("sync: nil tool: %w", domain.ErrInvalidToolData)
	}
	if len(changed) == 0 {
		return skipAllResult(), nil
	}
	if IsMetadataOnlyChange(changed) {
		return o.UpdatePayloadOnly(ctx, t)
	}
	return o.SyncTool(ctx, t, Options{Collections: AffectedCollections(changed), Force: true})
}

// UpdatePayloadOnly rewrites the stored metadata payload in every collection
// without touching embeddings. Success increments neither retry count nor
// vector version.
func (o *Orchestrator) UpdatePayloadOnly(ctx context.Context, t *tool.Tool) (domsync.Result, error) {
	if t == nil {
		return domsync.Result{}, fmt.Errorf("sync: nil tool: %w", domain.ErrInvalidToolData)
	}
	if err := tool.ValidateIdentity(t.ID, t.Slug, t.Name); err != nil {
		return domsync.Result{}, err
	}

	unlock := o.locks.lock(t.ID)
	defer unlock()
	t.Sync.Normalize()

	payload := o.content.Payload(t)
	start := time.Now()
	results := make([]domsync.CollectionResult, 0, len(collection.All()))

	for _, c := range collection.All() {
		colStart := time.Now()
		if err := o.index.UpdatePayload(ctx, c, t.ID, payload); err != nil {
			results = append(results, o.recordPayloadFailure(ctx, t, c, err, colStart))
			continue
		}
		results = append(results, domsync.CollectionResult{
			Collection: c,
			Outcome:    domsync.OutcomeSynced,
			Duration:   time.Since(colStart),
		})
		metrics.CollectionSyncsTotal.WithLabelValues(string(c), "payload").Inc()
	}

	return domsync.BuildResult(results, time.Since(start)), nil
}

// DeleteTool removes the tool's vector from every collection independently.
// Success requires all four deletes to succeed.
func (o *Orchestrator) DeleteTool(ctx context.Context, id string) domsync.Result {
	unlock := o.locks.lock(id)
	defer unlock()

	start := time.Now()
	results := make([]domsync.CollectionResult, 0, len(collection.All()))
	for _, c := range collection.All() {
		colStart := time.Now()
		if err := o.index.Delete(ctx, c, id); err != nil {
			o.logger.Warn("vector delete failed",
				zap.String("tool_id", id),
				zap.String("collection", string(c)),
				zap.Error(err),
			)
			results = append(results, domsync.CollectionResult{
				Collection: c,
				Outcome:    domsync.OutcomeFailed,
				ErrorCode:  domsync.CodeVectorDeleteFailed,
				Error:      truncateErr(err),
				Duration:   time.Since(colStart),
			})
			continue
		}
		results = append(results, domsync.CollectionResult{
			Collection: c,
			Outcome:    domsync.OutcomeSynced,
			Duration:   time.Since(colStart),
		})
	}
	return domsync.BuildResult(results, time.Since(start))
}

// RetryFailedSync loads the tool and re-attempts exactly the collections
// currently failed or pending. Collections in other states are untouched;
// if none qualify, everything is reported skipped.
func (o *Orchestrator) RetryFailedSync(ctx context.Context, id string) (domsync.Result, error) {
	t, err := o.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrToolNotFound) {
			return domsync.Result{}, fmt.Errorf("retry sync %s: %w", id, domain.ErrToolNotFound)
		}
		return domsync.Result{}, fmt.Errorf("retry sync %s: load tool: %w", id, err)
	}
	t.Sync.Normalize()

	var targets []collection.Collection
	for _, c := range collection.All() {
		switch t.Sync.Collection(c).Status {
		case domsync.StatusFailed, domsync.StatusPending:
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return skipAllResult(), nil
	}
	return o.SyncTool(ctx, t, Options{Collections: targets, Force: true})
}

// syncCollection runs the pipeline for one collection and persists the
// resulting state. Skips when the stored fingerprint already matches.
func (o *Orchestrator) syncCollection(
	ctx context.Context, t *tool.Tool, c collection.Collection, force bool,
) domsync.CollectionResult {
	start := time.Now()
	fresh := HashCollection(t, c)
	cur := t.Sync.Collection(c)

	if !force && cur.ContentHash == fresh {
		metrics.CollectionSyncsTotal.WithLabelValues(string(c), "skipped").Inc()
		return domsync.CollectionResult{
			Collection: c,
			Outcome:    domsync.OutcomeSkipped,
			Duration:   time.Since(start),
		}
	}

	text, err := o.content.Generate(t, c)
	if err != nil {
		return o.recordFailure(ctx, t, c, domsync.CodeContentGenerationFailed, err, start)
	}

	emb, err := o.embedder.Embed(ctx, c, text)
	if err != nil {
		return o.recordFailure(ctx, t, c, domsync.CodeEmbeddingFailed, err, start)
	}

	if err := o.index.Upsert(ctx, c, t.ID, emb.Embedding, o.content.Payload(t)); err != nil {
		return o.recordFailure(ctx, t, c, domsync.CodeVectorUpsertFailed, err, start)
	}

	now := time.Now().UTC()
	next := domsync.CollectionStatus{
		Status:            domsync.StatusSynced,
		LastSyncedAt:      &now,
		LastSyncAttemptAt: &now,
		RetryCount:        cur.RetryCount,
		ContentHash:       fresh,
		VectorVersion:     cur.VectorVersion + 1,
	}
	patch := domsync.NewPatch().SetCollectionStatus(c, next).Touch(now)
	if err := o.store.ApplySyncPatch(ctx, t.ID, patch); err != nil {
		// The vector is already written; the upsert is idempotent, so a
		// later retry redoes work without corrupting state.
		return o.recordFailure(ctx, t, c, domsync.CodeStoreUpdateFailed, err, start)
	}
	t.Sync.SetCollection(c, next)

	metrics.CollectionSyncsTotal.WithLabelValues(string(c), "synced").Inc()
	metrics.CollectionSyncDuration.WithLabelValues(string(c)).Observe(time.Since(start).Seconds())
	return domsync.CollectionResult{
		Collection: c,
		Outcome:    domsync.OutcomeSynced,
		Duration:   time.Since(start),
	}
}

// recordFailure marks one collection failed, bumps its retry count and
// persists the state best-effort.
func (o *Orchestrator) recordFailure(
	ctx context.Context, t *tool.Tool, c collection.Collection,
	code domsync.ErrorCode, cause error, start time.Time,
) domsync.CollectionResult {
	now := time.Now().UTC()
	cs := t.Sync.Collection(c)
	cs.Status = domsync.StatusFailed
	cs.RetryCount++
	cs.LastError = truncateErr(cause)
	cs.ErrorCode = code
	cs.LastSyncAttemptAt = &now
	t.Sync.SetCollection(c, cs)

	patch := domsync.NewPatch().SetCollectionStatus(c, cs).Touch(now)
	if err := o.store.ApplySyncPatch(ctx, t.ID, patch); err != nil {
		o.logger.Error("failed to persist sync failure",
			zap.String("tool_id", t.ID),
			zap.String("collection", string(c)),
			zap.Error(err),
		)
	}

	o.logger.Warn("collection sync failed",
		zap.String("tool_id", t.ID),
		zap.String("collection", string(c)),
		zap.String("error_code", string(code)),
		zap.Int("retry_count", cs.RetryCount),
		zap.Error(cause),
	)
	metrics.CollectionSyncsTotal.WithLabelValues(string(c), "failed").Inc()
	return domsync.CollectionResult{
		Collection: c,
		Outcome:    domsync.OutcomeFailed,
		ErrorCode:  code,
		Error:      truncateErr(cause),
		Duration:   time.Since(start),
	}
}

// recordPayloadFailure records a payload-only failure without touching the
// sync state machine: status, retry count and vector version stay as they
// are, since the embedded content is still valid.
func (o *Orchestrator) recordPayloadFailure(
	ctx context.Context, t *tool.Tool, c collection.Collection, cause error, start time.Time,
) domsync.CollectionResult {
	now := time.Now().UTC()
	cs := t.Sync.Collection(c)
	cs.LastError = truncateErr(cause)
	cs.ErrorCode = domsync.CodeVectorUpsertFailed
	cs.LastSyncAttemptAt = &now
	t.Sync.SetCollection(c, cs)

	patch := domsync.NewPatch().SetCollectionStatus(c, cs).Touch(now)
	if err := o.store.ApplySyncPatch(ctx, t.ID, patch); err != nil {
		o.logger.Error("failed to persist payload failure",
			zap.String("tool_id", t.ID),
			zap.String("collection", string(c)),
			zap.Error(err),
		)
	}

	metrics.CollectionSyncsTotal.WithLabelValues(string(c), "failed").Inc()
	return domsync.CollectionResult{
		Collection: c,
		Outcome:    domsync.OutcomeFailed,
		ErrorCode:  domsync.CodeVectorUpsertFailed,
		Error:      truncateErr(cause),
		Duration:   time.Since(start),
	}
}

// finalizeOverall writes the explicit overall status: failed when any target
// failed, synced when every collection now matches, otherwise unchanged.
func (o *Orchestrator) finalizeOverall(ctx context.Context, t *tool.Tool, res domsync.Result) {
	var overall domsync.Status
	switch {
	case res.FailedCount > 0:
		overall = domsync.StatusFailed
	case t.Sync.AllSynced():
		overall = domsync.StatusSynced
	default:
		return
	}
	if t.Sync.OverallStatus == overall {
		return
	}

	now := time.Now().UTC()
	patch := domsync.NewPatch().SetOverallStatus(overall).Touch(now)
	if err := o.store.ApplySyncPatch(ctx, t.ID, patch); err != nil {
		o.logger.Error("failed to persist overall status",
			zap.String("tool_id", t.ID),
			zap.String("status", string(overall)),
			zap.Error(err),
		)
		return
	}
	t.Sync.OverallStatus = overall
}

func skipAllResult() domsync.Result {
	results := make([]domsync.CollectionResult, 0, len(collection.All()))
	for _, c := range collection.All() {
		results = append(results, domsync.CollectionResult{
			Collection: c,
			Outcome:    domsync.OutcomeSkipped,
		})
	}
	return domsync.BuildResult(results, 0)
}

func truncateErr(err error) string {
	s := err.Error()
	if len(s) > maxStoredErrorLen {
		return s[:maxStoredErrorLen]
	}
	return s
}
