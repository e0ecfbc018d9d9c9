// Package postgres implements the storage contracts on PostgreSQL via
// pgxpool. This is the client-server backend with native full-text
// ranking in the lexical tier.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // pgx5:// migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/storage"
	"github.com/kailas-cloud/assetdex/internal/storage/migrations"
)

// DBTX is the subset of pgxpool.Pool the repositories need.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Config holds postgres backend settings.
type Config struct {
	DSN      string
	MaxConns int
}

// Store is the postgres-backed storage.Store.
type Store struct {
	pool   *pgxpool.Pool
	assets  *AssetRepo
	sites   *SiteRepo
	users   *UserRepo
	grants  *GrantRepo
	audit   *AuditRepo
	suggest *SuggestRepo
	logger  *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore connects to postgres, applies migrations and builds the repositories.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := runMigrations(cfg.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{
		pool:    pool,
		assets:  &AssetRepo{db: pool},
		sites:   &SiteRepo{db: pool},
		users:   &UserRepo{db: pool},
		grants:  &GrantRepo{db: pool},
		audit:   &AuditRepo{db: pool},
		suggest: &SuggestRepo{db: pool},
		logger:  logger,
	}, nil
}

// runMigrations applies the embedded postgres migrations via golang-migrate.
func runMigrations(dsn string) error {
	source, err := iofs.New(migrations.Postgres, "postgres")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	// golang-migrate's pgx driver expects the pgx5:// scheme.
	url := dsn
	if strings.HasPrefix(url, "postgres://") {
		url = "pgx5://" + strings.TrimPrefix(url, "postgres://")
	} else if strings.HasPrefix(url, "postgresql://") {
		url = "pgx5://" + strings.TrimPrefix(url, "postgresql://")
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Assets() storage.AssetRepository            { return s.assets }
func (s *Store) Sites() storage.SiteRepository              { return s.sites }
func (s *Store) Users() storage.UserRepository              { return s.users }
func (s *Store) Grants() storage.GrantRepository            { return s.grants }
func (s *Store) Audit() storage.AuditRepository             { return s.audit }
func (s *Store) Suggestions() storage.SuggestionRepository  { return s.suggest }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
