package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// assetColumns is the column list for every asset SELECT.
const assetColumns = `id, file_name, display_name, storage_key, mime_type, size_bytes,
	category, site_id, uploader_id, status, description, tags, confidence, metadata,
	created_at, updated_at`

// AssetRepo implements storage.AssetRepository on postgres.
type AssetRepo struct {
	db DBTX
}

var _ storage.AssetRepository = (*AssetRepo)(nil)

// Create inserts a new asset record.
func (r *AssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	meta, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO assets (id, file_name, display_name, storage_key, mime_type,
			size_bytes, category, site_id, uploader_id, status, description, tags,
			confidence, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.FileName, a.DisplayName, a.StorageKey, a.MimeType,
		a.SizeBytes, a.Category, a.SiteID, a.UploaderID, a.Status, a.Description,
		a.Tags, a.Confidence, meta, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetByID returns one asset or domain.ErrAssetNotFound.
func (r *AssetRepo) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM assets WHERE id = $1`, assetColumns), id)

	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// StructuredSearch runs the first tier: exact/substring predicates with
// pagination and a full match count.
func (r *AssetRepo) StructuredSearch(
	ctx context.Context, f storage.AssetFilter,
) ([]*domain.Asset, int, error) {
	where, args := buildAssetWhere(f, true)
	argNum := len(args) + 1

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM assets %s %s LIMIT $%d OFFSET $%d`,
		assetColumns, where, buildOrderBy(f.SortBy, f.SortOrder), argNum, argNum+1,
	)
	args = append(args, f.Limit, f.Offset())

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search assets: %w", err)
	}
	defer rows.Close()

	result, err := collectAssets(rows)
	if err != nil {
		return nil, 0, err
	}

	countWhere, countArgs := buildAssetWhere(f, true)
	var total int
	err = r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM assets %s`, countWhere), countArgs...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	return result, total, nil
}

// LexicalSearch runs the second tier with native tsvector ranking.
// Free-text terms are matched via plainto_tsquery; the structured scope
// filters are re-applied.
func (r *AssetRepo) LexicalSearch(
	ctx context.Context, terms []string, f storage.AssetFilter,
) ([]*domain.Asset, int, error) {
	scope := f
	scope.Terms = nil
	where, args := buildAssetWhere(scope, false)

	tsArg := len(args) + 1
	args = append(args, strings.Join(terms, " "))

	tsCond := fmt.Sprintf(
		`to_tsvector('english', file_name || ' ' || display_name || ' ' || coalesce(description, ''))
			@@ plainto_tsquery('english', $%d)`, tsArg)
	if where == "" {
		where = "WHERE " + tsCond
	} else {
		where += " AND " + tsCond
	}

	argNum := len(args) + 1
	dataQuery := fmt.Sprintf(`
		SELECT %s,
			ts_rank(
				to_tsvector('english', file_name || ' ' || display_name || ' ' || coalesce(description, '')),
				plainto_tsquery('english', $%d)
			) AS rank
		FROM assets %s
		ORDER BY rank DESC, created_at DESC
		LIMIT $%d OFFSET $%d`,
		assetColumns, tsArg, where, argNum, argNum+1,
	)
	args = append(args, f.Limit, f.Offset())

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var result []*domain.Asset
	for rows.Next() {
		a, err := scanAssetWithRank(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan asset: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate assets: %w", err)
	}

	countWhere, countArgs := buildAssetWhere(scope, false)
	countArgs = append(countArgs, strings.Join(terms, " "))
	countCond := fmt.Sprintf(
		`to_tsvector('english', file_name || ' ' || display_name || ' ' || coalesce(description, ''))
			@@ plainto_tsquery('english', $%d)`, len(countArgs))
	if countWhere == "" {
		countWhere = "WHERE " + countCond
	} else {
		countWhere += " AND " + countCond
	}

	var total int
	err = r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM assets %s`, countWhere), countArgs...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count lexical matches: %w", err)
	}

	return result, total, nil
}

// DescribedCandidates feeds the semantic tier: completed assets with a
// non-empty description, newest first, capped at max.
func (r *AssetRepo) DescribedCandidates(
	ctx context.Context, siteIDs []string, max int,
) ([]*domain.Asset, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM assets
		WHERE site_id = ANY($1)
			AND status = 'completed'
			AND coalesce(description, '') <> ''
		ORDER BY created_at DESC
		LIMIT $2`, assetColumns),
		siteIDs, max,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

// BeginProcessing moves pending -> processing. The status guard makes
// concurrent triggers race benignly: only one wins.
func (r *AssetRepo) BeginProcessing(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE assets SET status = 'processing', updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("begin processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// CompleteClassification moves processing -> completed and persists the
// inference output. Last writer wins on retried assets.
func (r *AssetRepo) CompleteClassification(
	ctx context.Context, id string, res domain.ClassificationResult,
) error {
	meta, err := marshalMetadata(storage.MetadataFromResult(res))
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE assets
		SET status = 'completed', description = $2, tags = $3, confidence = $4,
			metadata = $5, updated_at = now()
		WHERE id = $1 AND status = 'processing'`,
		id, res.Description, res.Tags, res.Confidence, meta)
	if err != nil {
		return fmt.Errorf("complete classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// FailClassification moves processing -> failed. Description and tags
// stay untouched (null for first-time failures).
func (r *AssetRepo) FailClassification(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE assets SET status = 'failed', updated_at = now()
		WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return fmt.Errorf("fail classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// ResetFailed is the operator retry: failed -> pending, returning the ids.
func (r *AssetRepo) ResetFailed(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE assets SET status = 'pending', updated_at = now()
		WHERE status = 'failed'
		RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("reset failed assets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// buildAssetWhere builds the WHERE clause for asset queries. When
// includeTerms is false the free-text substring conditions are skipped
// (the lexical tier matches terms its own way).
func buildAssetWhere(f storage.AssetFilter, includeTerms bool) (string, []any) {
	var conditions []string
	var args []any

	next := func(v any) int {
		args = append(args, v)
		return len(args)
	}

	// Accessible-site scope is always applied.
	conditions = append(conditions, fmt.Sprintf("site_id = ANY($%d)", next(f.SiteIDs)))

	if len(f.Categories) > 0 {
		cats := make([]string, len(f.Categories))
		for i, c := range f.Categories {
			cats[i] = string(c)
		}
		conditions = append(conditions, fmt.Sprintf("category = ANY($%d)", next(cats)))
	}

	if len(f.MimeTypes) > 0 {
		conditions = append(conditions, fmt.Sprintf("mime_type = ANY($%d)", next(f.MimeTypes)))
	}

	if f.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", next(*f.DateFrom)))
	}
	if f.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", next(*f.DateTo)))
	}

	if f.MimeContains != "" {
		conditions = append(conditions, fmt.Sprintf("mime_type ILIKE $%d", next("%"+f.MimeContains+"%")))
	}
	if f.SiteContains != "" {
		conditions = append(conditions, fmt.Sprintf("site_id ILIKE $%d", next("%"+f.SiteContains+"%")))
	}

	if includeTerms {
		for _, term := range f.Terms {
			n := next("%" + term + "%")
			conditions = append(conditions, fmt.Sprintf(
				`(file_name ILIKE $%d OR display_name ILIKE $%d
					OR coalesce(description, '') ILIKE $%d
					OR array_to_string(coalesce(tags, '{}'), ' ') ILIKE $%d)`,
				n, n, n, n))
		}
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// buildOrderBy whitelists the sort column and direction.
func buildOrderBy(sortBy, sortOrder string) string {
	column := storage.SortByCreatedAt
	switch sortBy {
	case storage.SortByFileName:
		column = storage.SortByFileName
	case storage.SortBySize:
		column = storage.SortBySize
	}

	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s", column, direction)
}

func collectAssets(rows pgx.Rows) ([]*domain.Asset, error) {
	var result []*domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return result, nil
}

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	a := &domain.Asset{}
	var meta []byte
	err := row.Scan(
		&a.ID, &a.FileName, &a.DisplayName, &a.StorageKey, &a.MimeType, &a.SizeBytes,
		&a.Category, &a.SiteID, &a.UploaderID, &a.Status, &a.Description, &a.Tags,
		&a.Confidence, &meta, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(meta, a); err != nil {
		return nil, err
	}
	return a, nil
}

func scanAssetWithRank(row pgx.Row) (*domain.Asset, error) {
	a := &domain.Asset{}
	var meta []byte
	var rank float32
	err := row.Scan(
		&a.ID, &a.FileName, &a.DisplayName, &a.StorageKey, &a.MimeType, &a.SizeBytes,
		&a.Category, &a.SiteID, &a.UploaderID, &a.Status, &a.Description, &a.Tags,
		&a.Confidence, &meta, &a.CreatedAt, &a.UpdatedAt, &rank,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(meta, a); err != nil {
		return nil, err
	}
	return a, nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte, a *domain.Asset) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &a.Metadata); err != nil {
		return fmt.Errorf("unmarshal metadata: %w", err)
	}
	return nil
}
