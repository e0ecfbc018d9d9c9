package permissions

import (
	"context"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// UserReader looks up principals.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// SiteReader lists the sites currently open for retrieval.
type SiteReader interface {
	ActiveSites(ctx context.Context) ([]domain.Site, error)
}

// GrantReader reads a principal's per-site grants.
type GrantReader interface {
	ForUser(ctx context.Context, userID string) ([]domain.Grant, error)
}
