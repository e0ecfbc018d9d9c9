package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// GrantRepo implements storage.GrantRepository on postgres.
type GrantRepo struct {
	db DBTX
}

var _ storage.GrantRepository = (*GrantRepo)(nil)

// Upsert keeps at most one grant per (user, site) pair.
func (r *GrantRepo) Upsert(ctx context.Context, g domain.Grant) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO grants (user_id, site_id, can_view, can_upload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, site_id)
		DO UPDATE SET can_view = EXCLUDED.can_view, can_upload = EXCLUDED.can_upload`,
		g.UserID, g.SiteID, g.CanView, g.CanUpload)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (r *GrantRepo) Delete(ctx context.Context, userID, siteID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM grants WHERE user_id = $1 AND site_id = $2`, userID, siteID)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GrantRepo) Get(ctx context.Context, userID, siteID string) (*domain.Grant, error) {
	g := &domain.Grant{}
	err := r.db.QueryRow(ctx, `
		SELECT user_id, site_id, can_view, can_upload
		FROM grants WHERE user_id = $1 AND site_id = $2`, userID, siteID,
	).Scan(&g.UserID, &g.SiteID, &g.CanView, &g.CanUpload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

func (r *GrantRepo) ForUser(ctx context.Context, userID string) ([]domain.Grant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT user_id, site_id, can_view, can_upload
		FROM grants WHERE user_id = $1`, userID)
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
