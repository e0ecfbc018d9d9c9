package search

import (
	"context"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// Searcher defines the storage contract for the structured and lexical
// tiers plus the semantic tier's candidate fetch.
type Searcher interface {
	StructuredSearch(ctx context.Context, f storage.AssetFilter) ([]*domain.Asset, int, error)
	LexicalSearch(ctx context.Context, terms []string, f storage.AssetFilter) ([]*domain.Asset, int, error)
	DescribedCandidates(ctx context.Context, siteIDs []string, max int) ([]*domain.Asset, error)
}

// PermissionResolver produces the caller's accessible-site scope.
type PermissionResolver interface {
	AccessibleSites(ctx context.Context, userID string, requireUpload bool) []string
}

// Ranker scores candidate descriptions against a query.
type Ranker interface {
	Rank(ctx context.Context, query string, descriptions []string) ([]domain.RankedScore, error)
}

// Telemetry records completed searches without ever blocking them.
type Telemetry interface {
	Record(rec *domain.SearchRecord)
}
