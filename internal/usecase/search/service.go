// Package search implements the cascading three-tier search resolver.
// Tier escalation is strictly replace-on-more-matches: a later tier's
// output is taken only when it strictly exceeds the current match count,
// so recall never decreases across tiers.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/domain/query"
	"github.com/kailas-cloud/assetdex/internal/metrics"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// Config holds the escalation thresholds and paging bounds.
type Config struct {
	// FulltextThreshold is the structured-tier count below which the
	// lexical tier is attempted.
	FulltextThreshold int
	// SemanticThreshold is the count below which the semantic tier is
	// attempted.
	SemanticThreshold int
	// CandidateCap bounds how many described assets one bulk-scoring
	// call may see.
	CandidateCap int
	// MinScore drops semantic matches scored below it.
	MinScore float64
	// InferenceTimeout bounds the whole semantic attempt.
	InferenceTimeout time.Duration

	DefaultPageSize int
	MaxPageSize     int
}

// Request is one search invocation.
type Request struct {
	UserID string
	Query  string

	SiteIDs    []string
	Categories []domain.Category
	MimeTypes  []string
	DateFrom   *time.Time
	DateTo     *time.Time

	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

// Response is the resolved page tagged with its originating tier.
type Response struct {
	Assets []*domain.Asset
	Total  int
	Page   int
	Limit  int
	Tier   string
	// Scores holds per-asset relevance, populated only on the semantic tier.
	Scores  map[string]float64
	Elapsed time.Duration
}

// Service sequences the three tiers for one request.
type Service struct {
	assets    Searcher
	perms     PermissionResolver
	ranker    Ranker
	telemetry Telemetry
	cfg       Config
	logger    *zap.Logger
}

// New creates the search resolver.
func New(assets Searcher, perms PermissionResolver, ranker Ranker,
	telemetry Telemetry, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		assets:    assets,
		perms:     perms,
		ranker:    ranker,
		telemetry: telemetry,
		cfg:       cfg,
		logger:    logger,
	}
}

// Search resolves one query. The tiers run sequentially; a later tier
// is attempted only when the current one under-returned and at least
// one free-text term exists. Structured and lexical store failures are
// fatal, semantic failures degrade to no improvement.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	start := time.Now()
	parsed := query.Parse(req.Query)

	scope := s.perms.AccessibleSites(ctx, req.UserID, false)
	scope = narrowScope(scope, req.SiteIDs)
	if len(scope) == 0 {
		resp := &Response{
			Page:    req.Page,
			Limit:   req.Limit,
			Tier:    domain.TierNone,
			Elapsed: time.Since(start),
		}
		s.finish(req, parsed, resp)
		return resp, nil
	}

	f := buildFilter(req, parsed, scope)

	assets, total, err := s.assets.StructuredSearch(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: structured search: %w", domain.ErrBackendUnavailable, err)
	}
	tier := domain.TierStructured

	if total < s.cfg.FulltextThreshold && parsed.HasTerms() {
		metrics.SearchEscalationsTotal.WithLabelValues(domain.TierFulltext).Inc()

		lexAssets, lexTotal, err := s.assets.LexicalSearch(ctx, parsed.Terms, f)
		if err != nil {
			return nil, fmt.Errorf("%w: lexical search: %w", domain.ErrBackendUnavailable, err)
		}
		if lexTotal > total {
			assets, total, tier = lexAssets, lexTotal, domain.TierFulltext
		}
	}

	var scores map[string]float64
	if total < s.cfg.SemanticThreshold && parsed.HasTerms() {
		metrics.SearchEscalationsTotal.WithLabelValues(domain.TierSemantic).Inc()

		semAssets, semScores, semTotal := s.semantic(ctx, req.Query, f)
		if semTotal > total {
			assets, total, tier = semAssets, semTotal, domain.TierSemantic
			scores = semScores
		}
	}

	resp := &Response{
		Assets:  assets,
		Total:   total,
		Page:    req.Page,
		Limit:   req.Limit,
		Tier:    tier,
		Scores:  scores,
		Elapsed: time.Since(start),
	}
	s.finish(req, parsed, resp)
	return resp, nil
}

func (s *Service) validate(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query must not be empty", domain.ErrValidation)
	}
	for _, c := range req.Categories {
		if _, ok := domain.ParseCategory(string(c)); !ok {
			return fmt.Errorf("%w: unknown category %q", domain.ErrValidation, c)
		}
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = s.cfg.DefaultPageSize
	}
	if req.Limit > s.cfg.MaxPageSize {
		return fmt.Errorf("%w: limit must not exceed %d", domain.ErrValidation, s.cfg.MaxPageSize)
	}
	return nil
}

// finish records metrics and the audit trail for one resolved search.
func (s *Service) finish(req Request, parsed query.Parsed, resp *Response) {
	metrics.SearchRequestsTotal.WithLabelValues(resp.Tier).Inc()
	metrics.SearchDuration.WithLabelValues(resp.Tier).Observe(resp.Elapsed.Seconds())

	s.telemetry.Record(&domain.SearchRecord{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		RawQuery:    req.Query,
		Filters:     serializeFilters(parsed.Filters),
		ResultCount: resp.Total,
		Tier:        resp.Tier,
		Latency:     resp.Elapsed,
		CreatedAt:   time.Now().UTC(),
	})
}

// buildFilter merges explicit request parameters with parsed query
// filters. A category filter with an unrecognized value is ignored
// rather than rejected.
func buildFilter(req Request, parsed query.Parsed, scope []string) storage.AssetFilter {
	f := storage.AssetFilter{
		SiteIDs:    scope,
		Terms:      parsed.Terms,
		Categories: req.Categories,
		MimeTypes:  req.MimeTypes,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
		Page:       req.Page,
		Limit:      req.Limit,
	}

	if v, ok := parsed.Filters["category"]; ok {
		if c, known := domain.ParseCategory(v); known {
			f.Categories = append(f.Categories, c)
		}
	}
	if v, ok := parsed.Filters["type"]; ok {
		f.MimeContains = v
	}
	if v, ok := parsed.Filters["site"]; ok {
		f.SiteContains = v
	}

	return f
}

// narrowScope intersects the accessible scope with explicitly requested
// site ids. Requesting a site outside the scope can only shrink it.
func narrowScope(scope, requested []string) []string {
	if len(requested) == 0 {
		return scope
	}
	allowed := make(map[string]bool, len(scope))
	for _, id := range scope {
		allowed[id] = true
	}
	var out []string
	for _, id := range requested {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out
}

// serializeFilters renders the parsed filter snapshot deterministically
// for the audit log.
func serializeFilters(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+filters[k])
	}
	return strings.Join(parts, " ")
}
