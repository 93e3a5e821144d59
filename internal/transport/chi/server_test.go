package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	cataloguc "github.com/kailas-cloud/toolsync/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/toolsync/internal/usecase/health"
	searchuc "github.com/kailas-cloud/toolsync/internal/usecase/search"
	syncuc "github.com/kailas-cloud/toolsync/internal/usecase/sync"
)

// --- mocks ---

type mockCatalog struct {
	tools map[string]*tool.Tool

	createErr error
	updateErr error
}

func (m *mockCatalog) find(id string) (*tool.Tool, error) {
	t, ok := m.tools[id]
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", id, domain.ErrToolNotFound)
	}
	return t, nil
}

func (m *mockCatalog) Create(_ context.Context, in *cataloguc.CreateInput) (*tool.Tool, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	t, err := tool.New(in.ID, in.Slug, in.Name, time.Now())
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (m *mockCatalog) Update(_ context.Context, id string, _ *cataloguc.UpdateInput) (*tool.Tool, []string, error) {
	if m.updateErr != nil {
		return nil, nil, m.updateErr
	}
	t, err := m.find(id)
	if err != nil {
		return nil, nil, err
	}
	return t, []string{"name"}, nil
}

func (m *mockCatalog) Approve(_ context.Context, id string) (*tool.Tool, error) { return m.find(id) }
func (m *mockCatalog) Reject(_ context.Context, id string) (*tool.Tool, error)  { return m.find(id) }
func (m *mockCatalog) Get(_ context.Context, id string) (*tool.Tool, error)     { return m.find(id) }

func (m *mockCatalog) GetBySlug(_ context.Context, slug string) (*tool.Tool, error) {
	for _, t := range m.tools {
		if t.Slug == slug {
			return t, nil
		}
	}
	return nil, domain.ErrToolNotFound
}

func (m *mockCatalog) Delete(_ context.Context, id string) error {
	_, err := m.find(id)
	return err
}

func (m *mockCatalog) List(_ context.Context, _, _ int) ([]*tool.Tool, int, error) {
	out := make([]*tool.Tool, 0, len(m.tools))
	for _, t := range m.tools {
		out = append(out, t)
	}
	return out, len(out), nil
}

type mockSearch struct {
	hits []searchuc.Hit
	err  error
	got  *searchuc.Request
}

func (m *mockSearch) Search(_ context.Context, req *searchuc.Request) ([]searchuc.Hit, error) {
	m.got = req
	return m.hits, m.err
}

type mockAdmin struct {
	status  syncuc.WorkerStatus
	sweep   domsync.SweepResult
	applied bool
}

func (m *mockAdmin) Status() syncuc.WorkerStatus { return m.status }
func (m *mockAdmin) TriggerSweep(context.Context) domsync.SweepResult {
	return m.sweep
}
func (m *mockAdmin) ForceRetryTool(context.Context, string) (domsync.Result, error) {
	return domsync.Result{Success: true}, nil
}
func (m *mockAdmin) ForceRetryAllFailed(context.Context) (domsync.RetryReport, error) {
	return domsync.RetryReport{Attempted: 2, Succeeded: 2}, nil
}
func (m *mockAdmin) ResetRetryCount(context.Context, string) (bool, error) {
	return m.applied, nil
}
func (m *mockAdmin) MarkToolAsStale(context.Context, string) (bool, error) {
	return m.applied, nil
}
func (m *mockAdmin) SyncStats(context.Context) (domsync.Stats, error) {
	return domsync.Stats{Total: 3}, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func testTool(t *testing.T, id, slug string) *tool.Tool {
	t.Helper()
	tl, err := tool.New(id, slug, "Tool One", time.Now())
	if err != nil {
		t.Fatalf("test tool: %v", err)
	}
	return tl
}

func newTestRouter(t *testing.T, cat *mockCatalog, search *mockSearch, admin *mockAdmin, health *mockHealth) http.Handler {
	t.Helper()
	if cat == nil {
		cat = &mockCatalog{tools: map[string]*tool.Tool{}}
	}
	if search == nil {
		search = &mockSearch{}
	}
	if admin == nil {
		admin = &mockAdmin{}
	}
	if health == nil {
		health = &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}
	}
	return NewServer(cat, search, admin, health, nil, zap.NewNop()).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, http.NoBody)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

// --- tests ---

func TestSearchEndpoint(t *testing.T) {
	search := &mockSearch{hits: []searchuc.Hit{
		{ID: "tool-1", Collection: "tools", Score: 0.9, Similarity: 0.9},
	}}
	router := newTestRouter(t, nil, search, nil, nil)

	rr := doJSON(t, router, "POST", "/api/v1/search",
		`{"query":"crm automation","collection":"tools","limit":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != "tool-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if search.got.Query != "crm automation" || search.got.Collection != "tools" || search.got.Limit != 5 {
		t.Errorf("request not forwarded: %+v", search.got)
	}
}

func TestSearchEndpoint_UnknownCollection(t *testing.T) {
	search := &mockSearch{err: fmt.Errorf("collection %q: %w", "widgets", domain.ErrUnknownCollection)}
	router := newTestRouter(t, nil, search, nil, nil)

	rr := doJSON(t, router, "POST", "/api/v1/search", `{"query":"x","collection":"widgets"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != CodeUnknownCollection {
		t.Errorf("code %s, want %s", errResp.Code, CodeUnknownCollection)
	}
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	search := &mockSearch{err: searchuc.ErrEmptyQuery}
	router := newTestRouter(t, nil, search, nil, nil)

	rr := doJSON(t, router, "POST", "/api/v1/search", `{"query":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
}

func TestCreateTool(t *testing.T) {
	router := newTestRouter(t, &mockCatalog{tools: map[string]*tool.Tool{}}, nil, nil, nil)

	rr := doJSON(t, router, "POST", "/api/v1/tools",
		`{"id":"tool-1","slug":"tool-one","name":"Tool One"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/api/v1/tools/tool-1" {
		t.Errorf("Location = %q", loc)
	}
}

func TestCreateTool_InvalidIdentity(t *testing.T) {
	router := newTestRouter(t, &mockCatalog{tools: map[string]*tool.Tool{}}, nil, nil, nil)

	rr := doJSON(t, router, "POST", "/api/v1/tools", `{"id":"bad id!","slug":"x","name":"X"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
}

func TestCreateTool_Conflict(t *testing.T) {
	cat := &mockCatalog{tools: map[string]*tool.Tool{}, createErr: domain.ErrToolAlreadyExists}
	router := newTestRouter(t, cat, nil, nil, nil)

	rr := doJSON(t, router, "POST", "/api/v1/tools",
		`{"id":"tool-1","slug":"tool-one","name":"Tool One"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rr.Code)
	}
}

func TestGetTool_NotFound(t *testing.T) {
	router := newTestRouter(t, nil, nil, nil, nil)

	rr := doJSON(t, router, "GET", "/api/v1/tools/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rr.Code)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != CodeToolNotFound {
		t.Errorf("code %s, want %s", errResp.Code, CodeToolNotFound)
	}
}

func TestUpdateTool(t *testing.T) {
	cat := &mockCatalog{tools: map[string]*tool.Tool{}}
	cat.tools["tool-1"] = testTool(t, "tool-1", "tool-one")
	router := newTestRouter(t, cat, nil, nil, nil)

	rr := doJSON(t, router, "PATCH", "/api/v1/tools/tool-1", `{"name":"Renamed"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
	}

	var resp updateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.ChangedFields) != 1 || resp.ChangedFields[0] != "name" {
		t.Errorf("changedFields = %v", resp.ChangedFields)
	}
}

func TestApproveAndRejectTool(t *testing.T) {
	cat := &mockCatalog{tools: map[string]*tool.Tool{}}
	cat.tools["tool-1"] = testTool(t, "tool-1", "tool-one")
	router := newTestRouter(t, cat, nil, nil, nil)

	if rr := doJSON(t, router, "POST", "/api/v1/tools/tool-1/approve", ""); rr.Code != http.StatusOK {
		t.Errorf("approve status %d", rr.Code)
	}
	if rr := doJSON(t, router, "POST", "/api/v1/tools/tool-1/reject", ""); rr.Code != http.StatusOK {
		t.Errorf("reject status %d", rr.Code)
	}
	if rr := doJSON(t, router, "POST", "/api/v1/tools/missing/approve", ""); rr.Code != http.StatusNotFound {
		t.Errorf("approve missing status %d", rr.Code)
	}
}

func TestDeleteTool(t *testing.T) {
	cat := &mockCatalog{tools: map[string]*tool.Tool{}}
	cat.tools["tool-1"] = testTool(t, "tool-1", "tool-one")
	router := newTestRouter(t, cat, nil, nil, nil)

	if rr := doJSON(t, router, "DELETE", "/api/v1/tools/tool-1", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status %d", rr.Code)
	}
}

func TestListTools_BySlug(t *testing.T) {
	cat := &mockCatalog{tools: map[string]*tool.Tool{}}
	cat.tools["tool-1"] = testTool(t, "tool-1", "tool-one")
	router := newTestRouter(t, cat, nil, nil, nil)

	rr := doJSON(t, router, "GET", "/api/v1/tools?slug=tool-one", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}

	var resp toolListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || resp.Items[0].ID != "tool-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSyncAdminEndpoints(t *testing.T) {
	admin := &mockAdmin{
		status:  syncuc.WorkerStatus{IsRunning: true},
		sweep:   domsync.SweepResult{Processed: 4, Succeeded: 3, Failed: 1},
		applied: true,
	}
	router := newTestRouter(t, nil, nil, admin, nil)

	rr := doJSON(t, router, "GET", "/api/v1/admin/sync/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status endpoint: %d", rr.Code)
	}
	var st syncuc.WorkerStatus
	if err := json.NewDecoder(rr.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !st.IsRunning {
		t.Error("expected running worker status")
	}

	rr = doJSON(t, router, "POST", "/api/v1/admin/sync/trigger", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("trigger endpoint: %d", rr.Code)
	}
	var sweep domsync.SweepResult
	if err := json.NewDecoder(rr.Body).Decode(&sweep); err != nil {
		t.Fatalf("decode sweep: %v", err)
	}
	if sweep.Processed != 4 || sweep.Failed != 1 {
		t.Errorf("unexpected sweep: %+v", sweep)
	}

	if rr = doJSON(t, router, "GET", "/api/v1/admin/sync/stats", ""); rr.Code != http.StatusOK {
		t.Errorf("stats endpoint: %d", rr.Code)
	}
	if rr = doJSON(t, router, "POST", "/api/v1/admin/sync/retry-all", ""); rr.Code != http.StatusOK {
		t.Errorf("retry-all endpoint: %d", rr.Code)
	}
	if rr = doJSON(t, router, "POST", "/api/v1/admin/sync/tools/tool-1/retry", ""); rr.Code != http.StatusOK {
		t.Errorf("retry endpoint: %d", rr.Code)
	}
	if rr = doJSON(t, router, "POST", "/api/v1/admin/sync/tools/tool-1/reset-retries", ""); rr.Code != http.StatusOK {
		t.Errorf("reset-retries endpoint: %d", rr.Code)
	}
	if rr = doJSON(t, router, "POST", "/api/v1/admin/sync/tools/tool-1/mark-stale", ""); rr.Code != http.StatusOK {
		t.Errorf("mark-stale endpoint: %d", rr.Code)
	}
}

func TestSyncAdmin_ActionOnMissingTool(t *testing.T) {
	admin := &mockAdmin{applied: false}
	router := newTestRouter(t, nil, nil, admin, nil)

	rr := doJSON(t, router, "POST", "/api/v1/admin/sync/tools/missing/reset-retries", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rr.Code)
	}

	var resp actionResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Applied {
		t.Error("expected applied=false")
	}
}

func TestHealthEndpoint(t *testing.T) {
	healthy := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
	}}
	router := newTestRouter(t, nil, nil, nil, healthy)

	if rr := doJSON(t, router, "GET", "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("healthy status %d", rr.Code)
	}

	degraded := &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckError},
	}}
	router = newTestRouter(t, nil, nil, nil, degraded)

	if rr := doJSON(t, router, "GET", "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status %d", rr.Code)
	}
}

func TestBadRequestBody(t *testing.T) {
	router := newTestRouter(t, nil, nil, nil, nil)

	rr := doJSON(t, router, "POST", "/api/v1/search", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rr.Code)
	}
}
