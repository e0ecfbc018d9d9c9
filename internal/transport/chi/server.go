// Package chi is the HTTP transport: hand-written handlers on a chi
// router. The principal id arrives in the X-User-ID header from the
// authenticating gateway; API-key auth guards the service edge.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	assetsuc "github.com/kailas-cloud/assetdex/internal/usecase/assets"
	audituc "github.com/kailas-cloud/assetdex/internal/usecase/audit"
	classifyuc "github.com/kailas-cloud/assetdex/internal/usecase/classify"
	healthuc "github.com/kailas-cloud/assetdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/assetdex/internal/usecase/search"
	suggestuc "github.com/kailas-cloud/assetdex/internal/usecase/suggest"
)

const userHeader = "X-User-ID"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the service over HTTP.
type Server struct {
	search        *searchuc.Service
	suggest       *suggestuc.Service
	assets        *assetsuc.Service
	classify      *classifyuc.Service
	audit         *audituc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	suggest *suggestuc.Service,
	assets *assetsuc.Service,
	classify *classifyuc.Service,
	audit *audituc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:   search,
		suggest:  suggest,
		assets:   assets,
		classify: classify,
		audit:    audit,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrAssetNotFound, http.StatusNotFound, "asset_not_found"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, "already_exists"),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"),
	}
	return s
}

// Routes mounts all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Get("/suggestions", s.Suggestions)
		r.Post("/assets", s.RegisterAsset)
		r.Get("/assets/{id}", s.GetAsset)
		r.Post("/assets/reprocess", s.ReprocessAssets)
		r.Get("/audit/searches", s.RecentSearches)
		r.Get("/audit/popular", s.PopularQueries)
	})
}

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	ucReq, err := searchRequestToUsecase(userID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	resp, err := s.search.Search(r.Context(), ucReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	assets := make([]assetResponse, len(resp.Assets))
	for i, a := range resp.Assets {
		var score *float64
		if v, ok := resp.Scores[a.ID]; ok {
			sc := v
			score = &sc
		}
		assets[i] = assetToDTO(a, score)
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Assets:    assets,
		Total:     resp.Total,
		Page:      resp.Page,
		Limit:     resp.Limit,
		Tier:      resp.Tier,
		ElapsedMs: resp.Elapsed.Milliseconds(),
	})
}

// Suggestions handles GET /api/v1/suggestions.
func (s *Server) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.principal(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 0)
	terms, err := s.suggest.Suggest(r.Context(), userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if terms == nil {
		terms = []string{}
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{Suggestions: terms})
}

// RegisterAsset handles POST /api/v1/assets.
func (s *Server) RegisterAsset(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.principal(w, r)
	if !ok {
		return
	}

	var req registerAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	asset, err := s.assets.Register(r.Context(), assetsuc.RegisterRequest{
		FileName:    req.FileName,
		DisplayName: req.DisplayName,
		StorageKey:  req.StorageKey,
		MimeType:    req.MimeType,
		SizeBytes:   req.SizeBytes,
		Category:    domain.Category(req.Category),
		SiteID:      req.SiteID,
		UploaderID:  userID,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	// Classification runs asynchronously; the asset comes back pending.
	writeJSON(w, http.StatusAccepted, assetToDTO(asset, nil))
}

// GetAsset handles GET /api/v1/assets/{id}.
func (s *Server) GetAsset(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.principal(w, r)
	if !ok {
		return
	}

	asset, err := s.assets.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assetToDTO(asset, nil))
}

// ReprocessAssets handles POST /api/v1/assets/reprocess: the operator
// retry resetting failed classifications.
func (s *Server) ReprocessAssets(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.principal(w, r); !ok {
		return
	}

	n, err := s.classify.RetryFailed(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reprocessResponse{Reset: n})
}

// RecentSearches handles GET /api/v1/audit/searches.
func (s *Server) RecentSearches(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.principal(w, r)
	if !ok {
		return
	}

	records, err := s.audit.Recent(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchRecordResponse, len(records))
	for i, rec := range records {
		items[i] = searchRecordResponse{
			ID:          rec.ID,
			RawQuery:    rec.RawQuery,
			Filters:     rec.Filters,
			ResultCount: rec.ResultCount,
			Tier:        rec.Tier,
			LatencyMs:   rec.Latency.Milliseconds(),
			CreatedAt:   rec.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": items})
}

// PopularQueries handles GET /api/v1/audit/popular.
func (s *Server) PopularQueries(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.principal(w, r)
	if !ok {
		return
	}

	stats, err := s.audit.Popular(r.Context(), userID, queryInt(r, "limit", 0))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]popularQueryResponse, len(stats))
	for i, p := range stats {
		items[i] = popularQueryResponse{Query: p.Query, Count: p.Count}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": items})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// principal extracts the gateway-provided user id. A missing header is
// a client error, not an empty permission scope.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", userHeader+" header is required")
		return "", false
	}
	return userID, true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrAssetNotFound,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
