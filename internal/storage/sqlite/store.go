// Package sqlite implements the storage contracts on an embedded
// single-file database via modernc.org/sqlite. The lexical tier
// degrades to substring matching with a matched-term pseudo-rank, since
// the engine has no native relevance ranking.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite" // sqlite:// migrate driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // database/sql driver "sqlite"

	"github.com/kailas-cloud/assetdex/internal/storage"
	"github.com/kailas-cloud/assetdex/internal/storage/migrations"
)

// Config holds sqlite backend settings.
type Config struct {
	Path string
}

// Store is the sqlite-backed storage.Store.
type Store struct {
	db      *sql.DB
	assets  *AssetRepo
	sites   *SiteRepo
	users   *UserRepo
	grants  *GrantRepo
	audit   *AuditRepo
	suggest *SuggestRepo
	logger  *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore opens the database file, applies migrations and builds the
// repositories.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		cfg.Path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent classification writes.
	db.SetMaxOpenConns(1)

	if err := runMigrations(cfg.Path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{
		db:      db,
		assets:  &AssetRepo{db: db},
		sites:   &SiteRepo{db: db},
		users:   &UserRepo{db: db},
		grants:  &GrantRepo{db: db},
		audit:   &AuditRepo{db: db},
		suggest: &SuggestRepo{db: db},
		logger:  logger,
	}, nil
}

// runMigrations applies the embedded sqlite migrations via golang-migrate.
func runMigrations(path string) error {
	source, err := iofs.New(migrations.SQLite, "sqlite")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, "sqlite://"+path)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Assets() storage.AssetRepository           { return s.assets }
func (s *Store) Sites() storage.SiteRepository             { return s.sites }
func (s *Store) Users() storage.UserRepository             { return s.users }
func (s *Store) Grants() storage.GrantRepository           { return s.grants }
func (s *Store) Audit() storage.AuditRepository            { return s.audit }
func (s *Store) Suggestions() storage.SuggestionRepository { return s.suggest }

// Ping checks the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
