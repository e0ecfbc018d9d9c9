package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// GrantRepo implements storage.GrantRepository on sqlite.
type GrantRepo struct {
	db *sql.DB
}

var _ storage.GrantRepository = (*GrantRepo)(nil)

// Upsert keeps at most one grant per (user, site) pair.
func (r *GrantRepo) Upsert(ctx context.Context, g domain.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO grants (user_id, site_id, can_view, can_upload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, site_id)
		DO UPDATE SET can_view = excluded.can_view, can_upload = excluded.can_upload`,
		g.UserID, g.SiteID, g.CanView, g.CanUpload)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (r *GrantRepo) Delete(ctx context.Context, userID, siteID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM grants WHERE user_id = ? AND site_id = ?`, userID, siteID)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GrantRepo) Get(ctx context.Context, userID, siteID string) (*domain.Grant, error) {
	g := &domain.Grant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, site_id, can_view, can_upload
		FROM grants WHERE user_id = ? AND site_id = ?`, userID, siteID,
	).Scan(&g.UserID, &g.SiteID, &g.CanView, &g.CanUpload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

func (r *GrantRepo) ForUser(ctx context.Context, userID string) ([]domain.Grant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, site_id, can_view, can_upload
		FROM grants WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.Grant
	for rows.Next() {
		var g domain.Grant
		if err := rows.Scan(&g.UserID, &g.SiteID, &g.CanView, &g.CanUpload); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}
