package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// AuditRepo implements the append-only search log on postgres.
type AuditRepo struct {
	db DBTX
}

var _ storage.AuditRepository = (*AuditRepo)(nil)

func (r *AuditRepo) Insert(ctx context.Context, rec *domain.SearchRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO search_log (id, user_id, raw_query, filters, result_count, tier, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, rec.RawQuery, rec.Filters, rec.ResultCount, rec.Tier,
		rec.Latency.Milliseconds(), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert search record: %w", err)
	}
	return nil
}

func (r *AuditRepo) Recent(ctx context.Context, userID string, limit int) ([]domain.SearchRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, raw_query, filters, result_count, tier, latency_ms, created_at
		FROM search_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent searches: %w", err)
	}
	defer rows.Close()

	var records []domain.SearchRecord
	for rows.Next() {
		var rec domain.SearchRecord
		var latencyMs int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.RawQuery, &rec.Filters,
			&rec.ResultCount, &rec.Tier, &latencyMs, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan search record: %w", err)
		}
		rec.Latency = time.Duration(latencyMs) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search records: %w", err)
	}
	return records, nil
}

// Popular aggregates the caller's queries case-insensitively, most
// frequent first.
func (r *AuditRepo) Popular(ctx context.Context, userID string, limit int) ([]domain.PopularQuery, error) {
	rows, err := r.db.Query(ctx, `
		SELECT lower(raw_query) AS q, COUNT(*) AS n
		FROM search_log
		WHERE user_id = $1 AND raw_query <> ''
		GROUP BY lower(raw_query)
		ORDER BY n DESC, q
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate popular queries: %w", err)
	}
	defer rows.Close()

	var stats []domain.PopularQuery
	for rows.Next() {
		var p domain.PopularQuery
		if err := rows.Scan(&p.Query, &p.Count); err != nil {
			return nil, fmt.Errorf("scan popular query: %w", err)
		}
		stats = append(stats, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate popular queries: %w", err)
	}
	return stats, nil
}
