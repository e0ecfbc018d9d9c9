package classify

import (
	"context"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// AssetStore defines the storage contract for the classification state
// machine. All transitions are status-guarded in the store.
type AssetStore interface {
	GetByID(ctx context.Context, id string) (*domain.Asset, error)
	BeginProcessing(ctx context.Context, id string) error
	CompleteClassification(ctx context.Context, id string, res domain.ClassificationResult) error
	FailClassification(ctx context.Context, id string) error
	ResetFailed(ctx context.Context) ([]string, error)
}

// Classifier produces a description for one asset.
type Classifier interface {
	Classify(ctx context.Context, asset *domain.Asset) (domain.ClassificationResult, error)
}
