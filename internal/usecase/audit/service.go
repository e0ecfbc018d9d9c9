// Package audit exposes the search log: a caller's recent searches and
// their most frequent queries.
package audit

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service reads the search log.
type Service struct {
	log LogReader
}

// New creates an audit service.
func New(log LogReader) *Service {
	return &Service{log: log}
}

// Recent returns the caller's latest searches, newest first.
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]domain.SearchRecord, error) {
	records, err := s.log.Recent(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent searches: %w", err)
	}
	return records, nil
}

// Popular returns the caller's most frequent queries, aggregated
// case-insensitively.
func (s *Service) Popular(ctx context.Context, userID string, limit int) ([]domain.PopularQuery, error) {
	stats, err := s.log.Popular(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("aggregate popular queries: %w", err)
	}
	return stats, nil
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
