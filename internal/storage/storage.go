// Package storage defines the repository contracts shared by the
// embedded (sqlite) and client-server (postgres) backends. Search logic
// stays backend-agnostic behind these interfaces.
package storage

import (
	"context"
	"time"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// Sort columns accepted by StructuredSearch. Anything else falls back
// to the default.
const (
	SortByCreatedAt = "created_at"
	SortByFileName  = "file_name"
	SortBySize      = "size_bytes"
)

// AssetFilter carries the scope and filters for asset search queries.
// SiteIDs is the caller's accessible-site set and is applied by every
// backend on every query.
type AssetFilter struct {
	SiteIDs    []string
	Terms      []string
	Categories []domain.Category
	MimeTypes  []string
	DateFrom   *time.Time
	DateTo     *time.Time

	// Substring narrowing from parsed key:value filters.
	MimeContains string
	SiteContains string

	SortBy    string
	SortOrder string // asc, desc (default desc)
	Page      int    // 1-based
	Limit     int
}

// Offset converts page/limit into a row offset.
func (f AssetFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.Limit
}

// AssetRepository is the asset store contract.
type AssetRepository interface {
	Create(ctx context.Context, a *domain.Asset) error
	GetByID(ctx context.Context, id string) (*domain.Asset, error)

	// StructuredSearch is the first search tier: exact/substring predicates
	// over the primary store. Returns one page plus the full match count.
	StructuredSearch(ctx context.Context, f AssetFilter) ([]*domain.Asset, int, error)

	// LexicalSearch is the second tier. The postgres backend ranks with
	// native full-text relevance; the sqlite backend degrades to
	// substring matching with a matched-term pseudo-rank.
	LexicalSearch(ctx context.Context, terms []string, f AssetFilter) ([]*domain.Asset, int, error)

	// DescribedCandidates returns up to max completed assets with a
	// non-empty description, scoped to siteIDs. Feeds the semantic tier.
	DescribedCandidates(ctx context.Context, siteIDs []string, max int) ([]*domain.Asset, error)

	// Classification state machine writes. Each is a single atomic
	// status-guarded update keyed by asset id.
	BeginProcessing(ctx context.Context, id string) error
	CompleteClassification(ctx context.Context, id string, res domain.ClassificationResult) error
	FailClassification(ctx context.Context, id string) error

	// ResetFailed flips every failed asset back to pending and returns
	// the affected ids. This is the only backward transition.
	ResetFailed(ctx context.Context) ([]string, error)
}

// SiteRepository is the site store contract.
type SiteRepository interface {
	Create(ctx context.Context, s *domain.Site) error
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	ActiveSites(ctx context.Context) ([]domain.Site, error)
}

// UserRepository is the principal store contract.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// GrantRepository is the permission-grant store contract.
type GrantRepository interface {
	Upsert(ctx context.Context, g domain.Grant) error
	Delete(ctx context.Context, userID, siteID string) error
	Get(ctx context.Context, userID, siteID string) (*domain.Grant, error)
	ForUser(ctx context.Context, userID string) ([]domain.Grant, error)
}

// AuditRepository is the append-only search-log contract.
type AuditRepository interface {
	Insert(ctx context.Context, rec *domain.SearchRecord) error
	Recent(ctx context.Context, userID string, limit int) ([]domain.SearchRecord, error)
	Popular(ctx context.Context, userID string, limit int) ([]domain.PopularQuery, error)
}

// SuggestionRepository produces raw suggestion candidates. Callers
// deduplicate and sort; candidates may repeat across sources.
type SuggestionRepository interface {
	SuggestTerms(ctx context.Context, partial string, siteIDs []string, limit int) ([]string, error)
}

// Store bundles every repository of one backend plus lifecycle hooks.
type Store interface {
	Assets() AssetRepository
	Sites() SiteRepository
	Users() UserRepository
	Grants() GrantRepository
	Audit() AuditRepository
	Suggestions() SuggestionRepository

	Ping(ctx context.Context) error
	Close() error
}
