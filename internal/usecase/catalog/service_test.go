package catalog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	"github.com/kailas-cloud/toolsync/internal/usecase/sync"
)

type mockStore struct {
	tools map[string]*tool.Tool

	insertErr     error
	saveErr       error
	deleteErr     error
	findBySlugErr error

	saveHook func()

	inserted []*tool.Tool
	saved    []*tool.Tool
	deleted  []string
}

func newMockStore() *mockStore {
	return &mockStore{tools: map[string]*tool.Tool{}}
}

func (m *mockStore) Insert(_ context.Context, t *tool.Tool) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.tools[t.ID]; ok {
		return fmt.Errorf("tool %s: %w", t.ID, domain.ErrToolAlreadyExists)
	}
	m.tools[t.ID] = t
	m.inserted = append(m.inserted, t)
	return nil
}

func (m *mockStore) Save(_ context.Context, t *tool.Tool) error {
	if m.saveHook != nil {
		m.saveHook()
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.tools[t.ID]; !ok {
		return fmt.Errorf("tool %s: %w", t.ID, domain.ErrToolNotFound)
	}
	m.tools[t.ID] = t
	m.saved = append(m.saved, t)
	return nil
}

func (m *mockStore) FindByID(_ context.Context, id string) (*tool.Tool, error) {
	t, ok := m.tools[id]
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", id, domain.ErrToolNotFound)
	}
	return t.Clone(), nil
}

func (m *mockStore) FindBySlug(_ context.Context, slug string) (*tool.Tool, error) {
	if m.findBySlugErr != nil {
		return nil, m.findBySlugErr
	}
	for _, t := range m.tools {
		if t.Slug == slug {
			return t.Clone(), nil
		}
	}
	return nil, fmt.Errorf("tool with slug %s: %w", slug, domain.ErrToolNotFound)
}

func (m *mockStore) List(_ context.Context, offset, limit int) ([]*tool.Tool, int, error) {
	out := make([]*tool.Tool, 0, len(m.tools))
	for _, t := range m.tools {
		out = append(out, t.Clone())
	}
	if offset >= len(out) {
		return nil, len(m.tools), nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], len(m.tools), nil
}

func (m *mockStore) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.tools[id]; !ok {
		return fmt.Errorf("tool %s: %w", id, domain.ErrToolNotFound)
	}
	delete(m.tools, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type syncCall struct {
	toolID  string
	opts    sync.Options
	changed []string

	// underLock records whether the tool's sync lock was still held when
	// the orchestrator call came in.
	underLock bool
}

type mockSyncer struct {
	syncErr error
	locked  bool

	fullSyncs     []syncCall
	affectedSyncs []syncCall
	deletes       []string
}

func (m *mockSyncer) Lock(string) func() {
	m.locked = true
	return func() { m.locked = false }
}

func (m *mockSyncer) SyncTool(_ context.Context, t *tool.Tool, opts sync.Options) (domsync.Result, error) {
	m.fullSyncs = append(m.fullSyncs, syncCall{toolID: t.ID, opts: opts, underLock: m.locked})
	return domsync.Result{}, m.syncErr
}

func (m *mockSyncer) SyncAffectedCollections(
	_ context.Context, t *tool.Tool, changed []string,
) (domsync.Result, error) {
	m.affectedSyncs = append(m.affectedSyncs, syncCall{toolID: t.ID, changed: changed, underLock: m.locked})
	return domsync.Result{}, m.syncErr
}

func (m *mockSyncer) DeleteTool(_ context.Context, id string) domsync.Result {
	m.deletes = append(m.deletes, id)
	return domsync.Result{}
}

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

// newTestService wires the mocks and makes background work synchronous so
// tests can assert on it directly.
func newTestService(store *mockStore, syncer Syncer) *Service {
	svc := NewService(store, syncer, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	svc.spawn = func(fn func()) { fn() }
	return svc
}

func seedTool(t *testing.T, store *mockStore, approved bool) *tool.Tool {
	t.Helper()
	tl, err := tool.New("tool-1", "tool-one", "Tool One", testNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("seed tool: %v", err)
	}
	tl.Tagline = "Automate everything"
	tl.Functionality = []string{"Workflow automation"}
	tl.Approved = approved
	store.tools[tl.ID] = tl
	return tl
}

func TestCreate_StartsUnapprovedAndPending(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	svc := newTestService(store, syncer)

	created, err := svc.Create(context.Background(), &CreateInput{
		ID: "tool-1", Slug: "tool-one", Name: "Tool One",
		Tagline:    "Automate everything",
		Categories: []string{"automation"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Approved {
		t.Error("new tool must start unapproved")
	}
	if created.Sync.OverallStatus != domsync.StatusPending {
		t.Errorf("overall status = %s, want pending", created.Sync.OverallStatus)
	}
	for _, c := range collection.All() {
		if created.Sync.Collection(c).Status != domsync.StatusPending {
			t.Errorf("collection %s not pending", c)
		}
	}
	if created.Tagline != "Automate everything" || created.Categories[0] != "automation" {
		t.Errorf("catalog fields not applied: %+v", created)
	}
	if len(syncer.fullSyncs)+len(syncer.affectedSyncs) != 0 {
		t.Error("create must not trigger a sync")
	}
}

func TestCreate_RejectsInvalidIdentity(t *testing.T) {
	svc := newTestService(newMockStore(), &mockSyncer{})

	_, err := svc.Create(context.Background(), &CreateInput{ID: "bad id!", Slug: "ok", Name: "X"})
	if !errors.Is(err, domain.ErrInvalidToolData) {
		t.Fatalf("expected ErrInvalidToolData, got %v", err)
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	store := newMockStore()
	seedTool(t, store, false)
	svc := newTestService(store, &mockSyncer{})

	_, err := svc.Create(context.Background(), &CreateInput{
		ID: "tool-2", Slug: "tool-one", Name: "Another",
	})
	if !errors.Is(err, domain.ErrToolAlreadyExists) {
		t.Fatalf("expected ErrToolAlreadyExists, got %v", err)
	}
}

func TestUpdate_MarksAffectedStaleAndSyncs(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, true)
	svc := newTestService(store, syncer)

	name := "Tool One Pro"
	updated, changed, err := svc.Update(context.Background(), "tool-1", &UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{collection.FieldName}) {
		t.Fatalf("changed = %v, want [name]", changed)
	}
	if updated.Name != "Tool One Pro" {
		t.Errorf("name not applied: %s", updated.Name)
	}
	if updated.Sync.Collection(collection.Tools).Status != domsync.StatusStale {
		t.Error("tools collection should be stale")
	}
	if updated.Sync.Collection(collection.Functionality).Status != domsync.StatusPending {
		t.Error("unaffected collection must keep its status")
	}
	if updated.Sync.OverallStatus != domsync.StatusStale {
		t.Errorf("overall = %s, want stale", updated.Sync.OverallStatus)
	}
	if !reflect.DeepEqual(updated.Sync.LastModifiedFields, changed) {
		t.Errorf("lastModifiedFields = %v", updated.Sync.LastModifiedFields)
	}

	if len(syncer.affectedSyncs) != 1 {
		t.Fatalf("expected one background sync, got %d", len(syncer.affectedSyncs))
	}
	call := syncer.affectedSyncs[0]
	if call.toolID != "tool-1" || !reflect.DeepEqual(call.changed, changed) {
		t.Errorf("unexpected sync call: %+v", call)
	}
}

func TestUpdate_UnapprovedSkipsSync(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, false)
	svc := newTestService(store, syncer)

	name := "Renamed"
	if _, _, err := svc.Update(context.Background(), "tool-1", &UpdateInput{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(syncer.affectedSyncs) != 0 {
		t.Error("unapproved tool must not reach the orchestrator")
	}
	if len(store.saved) != 1 {
		t.Error("catalog change must still be persisted")
	}
}

func TestUpdate_NoChangesIsNoOp(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, true)
	svc := newTestService(store, syncer)

	tagline := "Automate everything" // same value
	got, changed, err := svc.Update(context.Background(), "tool-1", &UpdateInput{Tagline: &tagline})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if changed != nil {
		t.Errorf("expected nil change set, got %v", changed)
	}
	if got.Sync.OverallStatus != domsync.StatusPending {
		t.Errorf("status must not move on a no-op: %s", got.Sync.OverallStatus)
	}
	if len(store.saved) != 0 || len(syncer.affectedSyncs) != 0 {
		t.Error("no-op update must neither save nor sync")
	}
}

func TestUpdate_MetadataOnlyStillSyncs(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, true)
	svc := newTestService(store, syncer)

	pricing := "freemium"
	updated, changed, err := svc.Update(context.Background(), "tool-1", &UpdateInput{Pricing: &pricing})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{collection.FieldPricing}) {
		t.Fatalf("changed = %v", changed)
	}
	// Metadata fields feed no collection, so nothing goes stale; the
	// orchestrator decides the payload-only path from the change set.
	if updated.Sync.OverallStatus != domsync.StatusPending {
		t.Errorf("metadata-only change must not mark overall stale: %s", updated.Sync.OverallStatus)
	}
	if len(syncer.affectedSyncs) != 1 {
		t.Fatalf("expected one background call, got %d", len(syncer.affectedSyncs))
	}
}

func TestCreate_SlugCheckStoreError(t *testing.T) {
	store := newMockStore()
	store.findBySlugErr = errors.New("connection reset")
	svc := newTestService(store, &mockSyncer{})

	_, err := svc.Create(context.Background(), &CreateInput{
		ID: "tool-1", Slug: "tool-one", Name: "Tool One",
	})
	if !errors.Is(err, store.findBySlugErr) {
		t.Fatalf("expected the store error back, got %v", err)
	}
	if len(store.inserted) != 0 {
		t.Error("a failed slug check must not insert")
	}
}

func TestUpdate_SavesUnderToolLock(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, true)
	svc := newTestService(store, syncer)

	savedUnderLock := false
	store.saveHook = func() { savedUnderLock = syncer.locked }

	name := "Tool One Pro"
	if _, _, err := svc.Update(context.Background(), "tool-1", &UpdateInput{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if !savedUnderLock {
		t.Error("the full-document save must run under the tool's sync lock")
	}
	if syncer.locked {
		t.Error("lock still held after Update returned")
	}
	if len(syncer.affectedSyncs) != 1 || syncer.affectedSyncs[0].underLock {
		t.Errorf("background sync must run after the lock is released: %+v", syncer.affectedSyncs)
	}
}

func TestApprove_SavesUnderToolLock(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, false)
	svc := newTestService(store, syncer)

	savedUnderLock := false
	store.saveHook = func() { savedUnderLock = syncer.locked }

	if _, err := svc.Approve(context.Background(), "tool-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !savedUnderLock {
		t.Error("the approval save must run under the tool's sync lock")
	}
	if len(syncer.fullSyncs) != 1 || syncer.fullSyncs[0].underLock {
		t.Errorf("forced sync must run after the lock is released: %+v", syncer.fullSyncs)
	}
}

func TestUpdate_ToolNotFound(t *testing.T) {
	svc := newTestService(newMockStore(), &mockSyncer{})

	name := "X"
	_, _, err := svc.Update(context.Background(), "missing", &UpdateInput{Name: &name})
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestApprove_TriggersForcedFullSync(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, false)
	svc := newTestService(store, syncer)

	approved, err := svc.Approve(context.Background(), "tool-1")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.Approved {
		t.Error("tool not approved")
	}
	if approved.Sync.OverallStatus != domsync.StatusPending {
		t.Errorf("overall = %s, want pending", approved.Sync.OverallStatus)
	}
	if len(syncer.fullSyncs) != 1 {
		t.Fatalf("expected one full sync, got %d", len(syncer.fullSyncs))
	}
	if call := syncer.fullSyncs[0]; !call.opts.Force || call.toolID != "tool-1" {
		t.Errorf("approval sync must be forced: %+v", call)
	}
}

func TestApprove_Idempotent(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, true)
	svc := newTestService(store, syncer)

	if _, err := svc.Approve(context.Background(), "tool-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(store.saved) != 0 || len(syncer.fullSyncs) != 0 {
		t.Error("approving an approved tool must be a no-op")
	}
}

func TestReject_RemovesFromIndexes(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, true)
	svc := newTestService(store, syncer)

	rejected, err := svc.Reject(context.Background(), "tool-1")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Approved {
		t.Error("tool still approved")
	}
	if !reflect.DeepEqual(syncer.deletes, []string{"tool-1"}) {
		t.Errorf("expected one unindex call, got %v", syncer.deletes)
	}
	if _, ok := store.tools["tool-1"]; !ok {
		t.Error("rejection must keep the catalog document")
	}
}

func TestDelete_RemovesStoreAndIndexes(t *testing.T) {
	store := newMockStore()
	syncer := &mockSyncer{}
	seedTool(t, store, true)
	svc := newTestService(store, syncer)

	if err := svc.Delete(context.Background(), "tool-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !reflect.DeepEqual(store.deleted, []string{"tool-1"}) {
		t.Errorf("store delete calls = %v", store.deleted)
	}
	if !reflect.DeepEqual(syncer.deletes, []string{"tool-1"}) {
		t.Errorf("index delete calls = %v", syncer.deletes)
	}
}

func TestDelete_NotFoundSkipsIndexes(t *testing.T) {
	syncer := &mockSyncer{}
	svc := newTestService(newMockStore(), syncer)

	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, domain.ErrToolNotFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
	if len(syncer.deletes) != 0 {
		t.Error("failed store delete must not touch the indexes")
	}
}

func TestBackground_PanicRecovered(t *testing.T) {
	store := newMockStore()
	seedTool(t, store, false)
	svc := newTestService(store, &panickySyncer{})

	// Must not propagate the panic out of Approve.
	if _, err := svc.Approve(context.Background(), "tool-1"); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

type panickySyncer struct{}

func (p *panickySyncer) Lock(string) func() { return func() {} }

func (p *panickySyncer) SyncTool(context.Context, *tool.Tool, sync.Options) (domsync.Result, error) {
	panic("boom")
}

func (p *panickySyncer) SyncAffectedCollections(context.Context, *tool.Tool, []string) (domsync.Result, error) {
	panic("boom")
}

func (p *panickySyncer) DeleteTool(context.Context, string) domsync.Result {
	panic("boom")
}
