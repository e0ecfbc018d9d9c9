package assets

import (
	"context"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// Repository defines the storage contract for asset registration and reads.
type Repository interface {
	Create(ctx context.Context, a *domain.Asset) error
	GetByID(ctx context.Context, id string) (*domain.Asset, error)
}

// PermissionChecker reports a principal's access to one site.
type PermissionChecker interface {
	Check(ctx context.Context, userID, siteID string) domain.Access
}

// Enqueuer schedules a registered asset for classification.
type Enqueuer interface {
	Enqueue(id string) error
}
