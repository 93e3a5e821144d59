// Package chi exposes the catalog, search and sync-admin API over HTTP.
package chi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/toolsync/internal/domain/tool"
	"github.com/kailas-cloud/toolsync/internal/metrics"
	cataloguc "github.com/kailas-cloud/toolsync/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/toolsync/internal/usecase/health"
	searchuc "github.com/kailas-cloud/toolsync/internal/usecase/search"
)

// Server wires the use-case services into an HTTP API.
type Server struct {
	catalog CatalogService
	search  SearchService
	admin   SyncAdmin
	health  HealthService
	apiKeys []string
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog CatalogService,
	search SearchService,
	admin SyncAdmin,
	health HealthService,
	apiKeys []string,
	logger *zap.Logger,
) *Server {
	return &Server{
		catalog: catalog,
		search:  search,
		admin:   admin,
		health:  health,
		apiKeys: apiKeys,
		logger:  logger,
	}
}

// Router assembles the route tree with auth and metrics middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(BearerAuthMiddleware(s.apiKeys))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)

		r.Route("/tools", func(r chi.Router) {
			r.Post("/", s.handleCreateTool)
			r.Get("/", s.handleListTools)
			r.Get("/{id}", s.handleGetTool)
			r.Patch("/{id}", s.handleUpdateTool)
			r.Delete("/{id}", s.handleDeleteTool)
			r.Post("/{id}/approve", s.handleApproveTool)
			r.Post("/{id}/reject", s.handleRejectTool)
		})

		r.Route("/admin/sync", func(r chi.Router) {
			r.Get("/status", s.handleSyncStatus)
			r.Get("/stats", s.handleSyncStats)
			r.Post("/trigger", s.handleSyncTrigger)
			r.Post("/retry-all", s.handleRetryAll)
			r.Post("/tools/{id}/retry", s.handleRetryTool)
			r.Post("/tools/{id}/reset-retries", s.handleResetRetries)
			r.Post("/tools/{id}/mark-stale", s.handleMarkStale)
		})
	})

	return r
}

// --- search ---

type searchRequest struct {
	Query         string  `json:"query"`
	Collection    string  `json:"collection,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	MinSimilarity float64 `json:"minSimilarity,omitempty"`
}

type searchResponse struct {
	Items []searchuc.Hit `json:"items"`
	Total int            `json:"total"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	hits, err := s.search.Search(r.Context(), &searchuc.Request{
		Query:         req.Query,
		Collection:    req.Collection,
		Limit:         req.Limit,
		MinSimilarity: req.MinSimilarity,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if hits == nil {
		hits = []searchuc.Hit{}
	}

	writeJSON(w, http.StatusOK, searchResponse{Items: hits, Total: len(hits)})
}

// --- catalog ---

type toolListResponse struct {
	Items  []*tool.Tool `json:"items"`
	Total  int          `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}

type updateResponse struct {
	Tool          *tool.Tool `json:"tool"`
	ChangedFields []string   `json:"changedFields"`
}

func (s *Server) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	var in cataloguc.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	t, err := s.catalog.Create(r.Context(), &in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/tools/"+t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 20)

	// slug lookup shortcut
	if slug := r.URL.Query().Get("slug"); slug != "" {
		t, err := s.catalog.GetBySlug(r.Context(), slug)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toolListResponse{Items: []*tool.Tool{t}, Total: 1, Limit: limit})
		return
	}

	items, total, err := s.catalog.List(r.Context(), offset, limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if items == nil {
		items = []*tool.Tool{}
	}

	writeJSON(w, http.StatusOK, toolListResponse{Items: items, Total: total, Offset: offset, Limit: limit})
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	t, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTool(w http.ResponseWriter, r *http.Request) {
	var in cataloguc.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	t, changed, err := s.catalog.Update(r.Context(), chi.URLParam(r, "id"), &in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if changed == nil {
		changed = []string{}
	}

	writeJSON(w, http.StatusOK, updateResponse{Tool: t, ChangedFields: changed})
}

func (s *Server) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApproveTool(w http.ResponseWriter, r *http.Request) {
	t, err := s.catalog.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRejectTool(w http.ResponseWriter, r *http.Request) {
	t, err := s.catalog.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- sync admin ---

type actionResponse struct {
	Applied bool   `json:"applied"`
	ToolID  string `json:"toolId"`
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.admin.Status())
}

func (s *Server) handleSyncStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.admin.SyncStats(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.admin.TriggerSweep(r.Context()))
}

func (s *Server) handleRetryAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.admin.ForceRetryAllFailed(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRetryTool(w http.ResponseWriter, r *http.Request) {
	res, err := s.admin.ForceRetryTool(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResetRetries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	applied, err := s.admin.ResetRetryCount(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	status := http.StatusOK
	if !applied {
		status = http.StatusNotFound
	}
	writeJSON(w, status, actionResponse{Applied: applied, ToolID: id})
}

func (s *Server) handleMarkStale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	applied, err := s.admin.MarkToolAsStale(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	status := http.StatusOK
	if !applied {
		status = http.StatusNotFound
	}
	writeJSON(w, status, actionResponse{Applied: applied, ToolID: id})
}

// --- health ---

type healthResponse struct {
	Status healthuc.Status                 `json:"status"`
	Checks map[string]healthuc.CheckResult `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, healthResponse{Status: report.Status, Checks: report.Checks})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
