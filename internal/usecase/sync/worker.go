package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	"github.com/kailas-cloud/toolsync/internal/metrics"
)

// WorkerConfig controls the background sweep loop.
type WorkerConfig struct {
	SweepInterval time.Duration
	BatchSize     int
	MaxRetries    int
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
	Enabled       bool
}

// ApplyDefaults fills zero fields with production defaults.
func (c *WorkerConfig) ApplyDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Minute
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Minute
	}
}

// WorkerStatus is a snapshot of the worker for the admin surface.
type WorkerStatus struct {
	IsRunning         bool          `json:"isRunning"`
	LastSweepAt       *time.Time    `json:"lastSweepAt,omitempty"`
	LastSweepDuration time.Duration `json:"lastSweepDuration"`
	ProcessedCount    int64         `json:"processedCount"`
	SuccessCount      int64         `json:"successCount"`
	FailedCount       int64         `json:"failedCount"`
	NextSweepAt       *time.Time    `json:"nextSweepAt,omitempty"`
	Config            WorkerConfig  `json:"config"`
}

// Worker periodically sweeps the primary store for approved tools whose
// sync state demands attention and delegates them to the orchestrator,
// honoring max-retry and exponential-backoff policy. Only one sweep runs at
// a time; a trigger arriving mid-sweep returns a zero-effect result.
type Worker struct {
	orch   *Orchestrator
	store  ToolStore
	cfg    WorkerConfig
	logger *zap.Logger

	running  atomic.Bool
	sweeping atomic.Bool

	// lifecycle guards stopCh and done so a Stop racing a Start always
	// sees the channels the winning Start created.
	lifecycle sync.Mutex
	stopCh    chan struct{}
	done      chan struct{}

	mu                sync.Mutex
	lastSweepAt       time.Time
	lastSweepDuration time.Duration
	processedCount    int64
	successCount      int64
	failedCount       int64
}

// NewWorker creates a sync worker.
func NewWorker(orch *Orchestrator, store ToolStore, cfg WorkerConfig, logger *zap.Logger) *Worker {
	cfg.ApplyDefaults()
	return &Worker{orch: orch, store: store, cfg: cfg, logger: logger}
}

// Start launches the sweep loop. Idempotent; a no-op when disabled.
func (w *Worker) Start() {
	if !w.cfg.Enabled {
		w.logger.Info("sync worker disabled, not starting")
		return
	}
	w.lifecycle.Lock()
	if !w.running.CompareAndSwap(false, true) {
		w.lifecycle.Unlock()
		return
	}
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.lifecycle.Unlock()
	go w.run()
	w.logger.Info("sync worker started",
		zap.Duration("sweep_interval", w.cfg.SweepInterval),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Int("max_retries", w.cfg.MaxRetries),
	)
}

// Stop terminates the sweep loop and waits for an in-flight sweep to finish.
// Idempotent.
func (w *Worker) Stop() {
	w.lifecycle.Lock()
	if !w.running.CompareAndSwap(true, false) {
		w.lifecycle.Unlock()
		return
	}
	stopCh, done := w.stopCh, w.done
	w.lifecycle.Unlock()

	close(stopCh)
	<-done
	w.logger.Info("sync worker stopped")
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.TriggerSweep(context.Background())
		}
	}
}

// TriggerSweep runs one sweep, callable by the timer and on demand. A sweep
// already in progress makes this a no-op returning an empty result.
func (w *Worker) TriggerSweep(ctx context.Context) domsync.SweepResult {
	if !w.sweeping.CompareAndSwap(false, true) {
		w.logger.Debug("sweep already in progress, skipping")
		return domsync.SweepResult{}
	}
	defer w.sweeping.Store(false)

	start := time.Now()
	res := w.sweep(ctx)
	res.Duration = time.Since(start)

	w.mu.Lock()
	w.lastSweepAt = start
	w.lastSweepDuration = res.Duration
	w.processedCount += int64(res.Processed)
	w.successCount += int64(res.Succeeded)
	w.failedCount += int64(res.Failed)
	w.mu.Unlock()

	metrics.SweepsTotal.WithLabelValues(sweepOutcome(res)).Inc()
	metrics.SweepDuration.Observe(res.Duration.Seconds())

	w.logger.Info("sweep finished",
		zap.Int("processed", res.Processed),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (w *Worker) sweep(ctx context.Context) domsync.SweepResult {
	var res domsync.SweepResult

	candidates, err := w.store.FindSyncCandidates(ctx, w.cfg.BatchSize)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("scan candidates: %v", err))
		w.logger.Error("sweep scan failed", zap.Error(err))
		return res
	}

	now := time.Now()
	for _, t := range candidates {
		if reason := w.skipReason(t, now); reason != "" {
			res.Skipped++
			metrics.SweepSkippedTotal.WithLabelValues(reason).Inc()
			continue
		}

		res.Processed++
		r, err := w.orch.SyncTool(ctx, t, Options{Force: true})
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", t.ID, err))
			continue
		}
		if r.Success {
			res.Succeeded++
		} else {
			res.Failed++
			for _, cr := range r.Collections {
				if cr.Outcome == domsync.OutcomeFailed {
					res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %s", t.ID, cr.Collection, cr.Error))
				}
			}
		}
	}
	return res
}

// skipReason applies the worst-offending-collection policy: retry-exhausted
// tools are skipped entirely, failed tools inside their backoff window are
// skipped until the window elapses.
func (w *Worker) skipReason(t *tool.Tool, now time.Time) string {
	t.Sync.Normalize()

	maxRetry := t.Sync.MaxRetryCount()
	if maxRetry > w.cfg.MaxRetries {
		return "retries_exhausted"
	}

	if t.Sync.OverallStatus == domsync.StatusFailed && maxRetry > 0 {
		if last := t.Sync.LastAttemptAt(); !last.IsZero() {
			if now.Sub(last) < backoffDelay(w.cfg.BaseBackoff, w.cfg.MaxBackoff, maxRetry) {
				return "backoff"
			}
		}
	}
	return ""
}

// backoffDelay is min(base * 2^(retry-1), max).
func backoffDelay(base, maxDelay time.Duration, retry int) time.Duration {
	if retry < 1 {
		return base
	}
	shift := uint(retry - 1)
	if shift > 32 {
		return maxDelay
	}
	d := base << shift
	if d <= 0 || d > maxDelay {
		return maxDelay
	}
	return d
}

// Status returns cumulative counters plus the current configuration.
func (w *Worker) Status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := WorkerStatus{
		IsRunning:         w.running.Load(),
		LastSweepDuration: w.lastSweepDuration,
		ProcessedCount:    w.processedCount,
		SuccessCount:      w.successCount,
		FailedCount:       w.failedCount,
		Config:            w.cfg,
	}
	if !w.lastSweepAt.IsZero() {
		at := w.lastSweepAt
		st.LastSweepAt = &at
		if st.IsRunning {
			next := at.Add(w.cfg.SweepInterval)
			st.NextSweepAt = &next
		}
	}
	return st
}

// Running reports whether the sweep loop is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// ForceRetryTool bypasses the backoff window for one tool.
func (w *Worker) ForceRetryTool(ctx context.Context, id string) (domsync.Result, error) {
	return w.orch.RetryFailedSync(ctx, id)
}

// ForceRetryAllFailed bypasses the backoff window for every failed tool.
func (w *Worker) ForceRetryAllFailed(ctx context.Context) (domsync.RetryReport, error) {
	failed, err := w.store.FindFailed(ctx, w.cfg.BatchSize)
	if err != nil {
		return domsync.RetryReport{}, fmt.Errorf("scan failed tools: %w", err)
	}

	report := domsync.RetryReport{Tools: make(map[string]bool, len(failed))}
	for _, t := range failed {
		report.Attempted++
		r, err := w.orch.RetryFailedSync(ctx, t.ID)
		ok := err == nil && r.Success
		report.Tools[t.ID] = ok
		if ok {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	return report, nil
}

// ResetRetryCount zeroes the retry count on every collection without
// changing sync status. Returns false when the tool does not exist.
func (w *Worker) ResetRetryCount(ctx context.Context, id string) (bool, error) {
	t, err := w.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrToolNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("reset retries %s: %w", id, err)
	}
	t.Sync.Normalize()

	now := time.Now().UTC()
	patch := domsync.NewPatch()
	for _, c := range collection.All() {
		patch.Set(domsync.CollectionPath(c, "retryCount"), 0)
	}
	patch.Touch(now)
	if err := w.store.ApplySyncPatch(ctx, id, patch); err != nil {
		return false, fmt.Errorf("reset retries %s: %w", id, err)
	}
	return true, nil
}

// MarkToolAsStale forces every collection and the overall status back to
// pending and discards stored fingerprints, so the next sweep performs a
// full re-sync. Returns false when the tool does not exist.
func (w *Worker) MarkToolAsStale(ctx context.Context, id string) (bool, error) {
	t, err := w.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrToolNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("mark stale %s: %w", id, err)
	}
	t.Sync.Normalize()

	now := time.Now().UTC()
	patch := domsync.NewPatch()
	for _, c := range collection.All() {
		patch.Set(domsync.CollectionPath(c, "status"), domsync.StatusPending)
		patch.Set(domsync.CollectionPath(c, "contentHash"), "")
	}
	patch.SetOverallStatus(domsync.StatusPending).Touch(now)
	if err := w.store.ApplySyncPatch(ctx, id, patch); err != nil {
		return false, fmt.Errorf("mark stale %s: %w", id, err)
	}
	return true, nil
}

// SyncStats counts tools by overall status plus a per-collection breakdown.
func (w *Worker) SyncStats(ctx context.Context) (domsync.Stats, error) {
	return w.store.SyncStats(ctx)
}

func sweepOutcome(res domsync.SweepResult) string {
	if res.Failed > 0 || len(res.Errors) > 0 {
		return "partial"
	}
	return "ok"
}
