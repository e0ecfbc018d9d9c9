package audit

import (
	"context"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// LogReader reads the append-only search log.
type LogReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.SearchRecord, error)
	Popular(ctx context.Context, userID string, limit int) ([]domain.PopularQuery, error)
}
