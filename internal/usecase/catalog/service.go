// Package catalog implements the curation workflow over the tool store:
// create, partial update, approve, reject and delete. Every mutation lands in
// the primary store first; index work is handed to the sync orchestrator in
// the background so catalog writes never wait on the embedding provider.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	"github.com/kailas-cloud/toolsync/internal/usecase/sync"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Service is the catalog curation service.
type Service struct {
	store  Store
	syncer Syncer
	logger *zap.Logger

	now   func() time.Time
	spawn func(fn func())
}

// NewService creates a catalog service.
func NewService(store Store, syncer Syncer, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		syncer: syncer,
		logger: logger,
		now:    time.Now,
		spawn:  func(fn func()) { go fn() },
	}
}

// Create validates and stores a new tool. The tool starts unapproved with
// every collection pending, so no sync is triggered.
func (s *Service) Create(ctx context.Context, in *CreateInput) (*tool.Tool, error) {
	if in == nil {
		return nil, fmt.Errorf("create: nil input: %w", domain.ErrInvalidToolData)
	}

	t, err := tool.New(in.ID, in.Slug, in.Name, s.now())
	if err != nil {
		return nil, err
	}
	in.applyTo(t)

	existing, err := s.store.FindBySlug(ctx, in.Slug)
	switch {
	case err == nil && existing != nil:
		return nil, fmt.Errorf("slug %s taken by tool %s: %w", in.Slug, existing.ID, domain.ErrToolAlreadyExists)
	case err != nil && !errors.Is(err, domain.ErrToolNotFound):
		return nil, fmt.Errorf("check slug %s: %w", in.Slug, err)
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert tool %s: %w", in.ID, err)
	}

	s.logger.Info("tool created", zap.String("tool_id", t.ID), zap.String("slug", t.Slug))
	return t, nil
}

// Update applies a partial update, records which fields changed and marks the
// collections owning those fields stale. When the tool is approved, the
// affected collections are re-synced in the background. A no-op update
// returns the unchanged tool with a nil change set.
func (s *Service) Update(ctx context.Context, id string, in *UpdateInput) (*tool.Tool, []string, error) {
	if in == nil {
		return nil, nil, fmt.Errorf("update: nil input: %w", domain.ErrInvalidToolData)
	}

	next, changed, err := s.applyUpdate(ctx, id, in)
	if err != nil || len(changed) == 0 {
		return next, changed, err
	}

	s.logger.Info("tool updated",
		zap.String("tool_id", id),
		zap.Strings("changed_fields", changed),
		zap.Bool("approved", next.Approved))

	if next.Approved {
		snapshot := next.Clone()
		s.background("sync affected", id, func(ctx context.Context) {
			if _, err := s.syncer.SyncAffectedCollections(ctx, snapshot, changed); err != nil {
				s.logger.Error("background sync failed",
					zap.String("tool_id", id), zap.Error(err))
			}
		})
	}
	return next, changed, nil
}

// applyUpdate performs the read-modify-write under the tool's sync lock so a
// sync patch cannot land between the read and the full-document save and get
// reverted.
func (s *Service) applyUpdate(ctx context.Context, id string, in *UpdateInput) (*tool.Tool, []string, error) {
	unlock := s.syncer.Lock(id)
	defer unlock()

	prev, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	next := prev.Clone()
	in.applyTo(next)
	if err := tool.ValidateIdentity(next.ID, next.Slug, next.Name); err != nil {
		return nil, nil, err
	}

	changed := sync.DetectChangedFields(prev, next)
	if len(changed) == 0 {
		return prev, nil, nil
	}

	now := s.now()
	next.UpdatedAt = now
	next.Sync.Normalize()
	next.Sync.LastModifiedFields = changed
	next.Sync.UpdatedAt = now
	for _, c := range sync.AffectedCollections(changed) {
		cs := next.Sync.Collection(c)
		cs.Status = domsync.StatusStale
		next.Sync.SetCollection(c, cs)
	}
	if sync.HasSemanticChanges(changed) {
		next.Sync.OverallStatus = domsync.StatusStale
	}

	if err := s.store.Save(ctx, next); err != nil {
		return nil, nil, fmt.Errorf("save tool %s: %w", id, err)
	}
	return next, changed, nil
}

// Approve marks the tool approved and triggers a forced full sync in the
// background. Approving an already approved tool is a no-op.
func (s *Service) Approve(ctx context.Context, id string) (*tool.Tool, error) {
	t, applied, err := s.setApproval(ctx, id, true)
	if err != nil || !applied {
		return t, err
	}

	s.logger.Info("tool approved", zap.String("tool_id", id))

	snapshot := t.Clone()
	s.background("approval sync", id, func(ctx context.Context) {
		if _, err := s.syncer.SyncTool(ctx, snapshot, sync.Options{Force: true}); err != nil {
			s.logger.Error("approval sync failed",
				zap.String("tool_id", id), zap.Error(err))
		}
	})
	return t, nil
}

// Reject withdraws approval and removes the tool from every search index in
// the background. The catalog document itself is kept.
func (s *Service) Reject(ctx context.Context, id string) (*tool.Tool, error) {
	t, applied, err := s.setApproval(ctx, id, false)
	if err != nil || !applied {
		return t, err
	}

	s.logger.Info("tool rejected", zap.String("tool_id", id))

	s.background("rejection unindex", id, func(ctx context.Context) {
		s.syncer.DeleteTool(ctx, id)
	})
	return t, nil
}

// setApproval flips the approval flag under the tool's sync lock. Returns
// applied=false when the tool is already in the requested state.
func (s *Service) setApproval(ctx context.Context, id string, approved bool) (*tool.Tool, bool, error) {
	unlock := s.syncer.Lock(id)
	defer unlock()

	t, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if t.Approved == approved {
		return t, false, nil
	}

	now := s.now()
	t.Approved = approved
	t.UpdatedAt = now
	t.Sync.Normalize()
	t.Sync.OverallStatus = domsync.StatusPending
	t.Sync.UpdatedAt = now

	if err := s.store.Save(ctx, t); err != nil {
		return nil, false, fmt.Errorf("save tool %s: %w", id, err)
	}
	return t, true, nil
}

// Delete removes the tool from the primary store and then from every search
// index in the background.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("tool deleted", zap.String("tool_id", id))

	s.background("deletion unindex", id, func(ctx context.Context) {
		s.syncer.DeleteTool(ctx, id)
	})
	return nil
}

// Get returns a tool by ID.
func (s *Service) Get(ctx context.Context, id string) (*tool.Tool, error) {
	return s.store.FindByID(ctx, id)
}

// GetBySlug returns a tool by slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*tool.Tool, error) {
	return s.store.FindBySlug(ctx, slug)
}

// List returns a page of tools with the total count.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*tool.Tool, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.List(ctx, offset, limit)
}

// background runs fn detached from the request context so index work cannot
// be cancelled by the HTTP client going away.
func (s *Service) background(op, toolID string, fn func(ctx context.Context)) {
	s.spawn(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("background task panicked",
					zap.String("op", op),
					zap.String("tool_id", toolID),
					zap.Any("panic", r))
			}
		}()
		fn(context.Background())
	})
}
