package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// SiteRepo implements storage.SiteRepository on postgres.
type SiteRepo struct {
	db DBTX
}

var _ storage.SiteRepository = (*SiteRepo)(nil)

func (r *SiteRepo) Create(ctx context.Context, s *domain.Site) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sites (id, name, client_name, active, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Name, s.ClientName, s.Active, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

func (r *SiteRepo) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	s := &domain.Site{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, client_name, active, created_at
		FROM sites WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.ClientName, &s.Active, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get site: %w", err)
	}
	return s, nil
}

func (r *SiteRepo) ActiveSites(ctx context.Context) ([]domain.Site, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, client_name, active, created_at
		FROM sites WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list active sites: %w", err)
	}
	defer rows.Close()

	var sites []domain.Site
	for rows.Next() {
		var s domain.Site
		if err := rows.Scan(&s.ID, &s.Name, &s.ClientName, &s.Active, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}
