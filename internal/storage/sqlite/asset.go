package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// assetColumns is the column list for every asset SELECT.
const assetColumns = `id, file_name, display_name, storage_key, mime_type, size_bytes,
	category, site_id, uploader_id, status, description, tags, confidence, metadata,
	created_at, updated_at`

// haystack is the searchable text of one asset row: filename, display
// name, description and the serialized tag string.
const haystack = `lower(file_name || ' ' || display_name || ' ' ||
	coalesce(description, '') || ' ' || coalesce(tags, ''))`

// AssetRepo implements storage.AssetRepository on sqlite.
type AssetRepo struct {
	db *sql.DB
}

var _ storage.AssetRepository = (*AssetRepo)(nil)

// Create inserts a new asset record.
func (r *AssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	tags, err := marshalTags(a.Tags)
	if err != nil {
		return err
	}
	meta, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assets (id, file_name, display_name, storage_key, mime_type,
			size_bytes, category, site_id, uploader_id, status, description, tags,
			confidence, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.FileName, a.DisplayName, a.StorageKey, a.MimeType,
		a.SizeBytes, string(a.Category), a.SiteID, a.UploaderID, string(a.Status),
		a.Description, tags, a.Confidence, meta, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

// GetByID returns one asset or domain.ErrAssetNotFound.
func (r *AssetRepo) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM assets WHERE id = ?`, assetColumns), id)

	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM assets %s %s LIMIT ? OFFSET ?`,
		assetColumns, where, buildOrderBy(f.SortBy, f.SortOrder),
	)
	dataArgs := append(append([]any{}, args...), f.Limit, f.Offset())

	rows, err := r.db.QueryContext(ctx, dataQuery, dataArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search assets: %w", err)
	}
	defer rows.Close()

	result, err := collectAssets(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM assets %s`, where), args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	return result, total, nil
}

// LexicalSearch is the degraded second tier: per-term substring matching
// ordered by how many terms matched, then recency. Any term may match
// (OR), unlike the structured tier's every-term predicate.
func (r *AssetRepo) LexicalSearch(
	ctx context.Context, terms []string, f storage.AssetFilter,
) ([]*domain.Asset, int, error) {
	scope := f
	scope.Terms = nil
	where, args := buildAssetWhere(scope, false)

	var rankParts, matchParts []string
	var rankArgs, matchArgs []any
	for _, term := range terms {
		pattern := "%" + strings.ToLower(term) + "%"
		rankParts = append(rankParts,
			fmt.Sprintf("(CASE WHEN %s LIKE ? THEN 1 ELSE 0 END)", haystack))
		rankArgs = append(rankArgs, pattern)
		matchParts = append(matchParts, fmt.Sprintf("%s LIKE ?", haystack))
		matchArgs = append(matchArgs, pattern)
	}
	rankExpr := strings.Join(rankParts, " + ")
	matchExpr := "(" + strings.Join(matchParts, " OR ") + ")"

	dataQuery := fmt.Sprintf(
		`SELECT %s, (%s) AS rank FROM assets %s AND %s
		ORDER BY rank DESC, created_at DESC LIMIT ? OFFSET ?`,
		assetColumns, rankExpr, where, matchExpr,
	)
	dataArgs := append(append([]any{}, rankArgs...), args...)
	dataArgs = append(dataArgs, matchArgs...)
	dataArgs = append(dataArgs, f.Limit, f.Offset())

	rows, err := r.db.QueryContext(ctx, dataQuery, dataArgs...)
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

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM assets %s AND %s`, where, matchExpr)
	countArgs := append(append([]any{}, args...), matchArgs...)

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lexical matches: %w", err)
	}

	return result, total, nil
}

// DescribedCandidates feeds the semantic tier: completed assets with a
// non-empty description, newest first, capped at max.
func (r *AssetRepo) DescribedCandidates(
	ctx context.Context, siteIDs []string, max int,
) ([]*domain.Asset, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM assets
		WHERE site_id IN (%s)
			AND status = 'completed'
			AND coalesce(description, '') <> ''
		ORDER BY created_at DESC
		LIMIT ?`, assetColumns, placeholders(len(siteIDs)))

	args := append(stringArgs(siteIDs), max)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

// BeginProcessing moves pending -> processing.
func (r *AssetRepo) BeginProcessing(ctx context.Context, id string) error {
	return r.guardedUpdate(ctx, `
		UPDATE assets SET status = 'processing', updated_at = ?
		WHERE id = ? AND status = 'pending'`, id)
}

// CompleteClassification moves processing -> completed and persists the
// inference output. Last writer wins on retried assets.
func (r *AssetRepo) CompleteClassification(
	ctx context.Context, id string, res domain.ClassificationResult,
) error {
	tags, err := marshalTags(res.Tags)
	if err != nil {
		return err
	}
	meta, err := marshalMetadata(storage.MetadataFromResult(res))
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE assets
		SET status = 'completed', description = ?, tags = ?, confidence = ?,
			metadata = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		res.Description, tags, res.Confidence, meta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("complete classification: %w", err)
	}
	return checkAffected(result)
}

// FailClassification moves processing -> failed.
func (r *AssetRepo) FailClassification(ctx context.Context, id string) error {
	return r.guardedUpdate(ctx, `
		UPDATE assets SET status = 'failed', updated_at = ?
		WHERE id = ? AND status = 'processing'`, id)
}

// ResetFailed is the operator retry: failed -> pending, returning the ids.
func (r *AssetRepo) ResetFailed(ctx context.Context) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM assets WHERE status = 'failed'`)
	if err != nil {
		return nil, fmt.Errorf("select failed assets: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	rows.Close()

	if len(ids) > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE assets SET status = 'pending', updated_at = ?
			WHERE status = 'failed'`, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("reset failed assets: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return ids, nil
}

func (r *AssetRepo) guardedUpdate(ctx context.Context, query, id string) error {
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// buildAssetWhere builds the WHERE clause for asset queries. When
// includeTerms is false the free-text substring conditions are skipped.
func buildAssetWhere(f storage.AssetFilter, includeTerms bool) (string, []any) {
	var conditions []string
	var args []any

	// Accessible-site scope is always applied. An empty scope matches nothing.
	if len(f.SiteIDs) == 0 {
		conditions = append(conditions, "1 = 0")
	} else {
		conditions = append(conditions,
			fmt.Sprintf("site_id IN (%s)", placeholders(len(f.SiteIDs))))
		args = append(args, stringArgs(f.SiteIDs)...)
	}

	if len(f.Categories) > 0 {
		conditions = append(conditions,
			fmt.Sprintf("category IN (%s)", placeholders(len(f.Categories))))
		for _, c := range f.Categories {
			args = append(args, string(c))
		}
	}

	if len(f.MimeTypes) > 0 {
		conditions = append(conditions,
			fmt.Sprintf("mime_type IN (%s)", placeholders(len(f.MimeTypes))))
		args = append(args, stringArgs(f.MimeTypes)...)
	}

	if f.DateFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, *f.DateTo)
	}

	if f.MimeContains != "" {
		conditions = append(conditions, "lower(mime_type) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.MimeContains)+"%")
	}
	if f.SiteContains != "" {
		conditions = append(conditions, "lower(site_id) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.SiteContains)+"%")
	}

	if includeTerms {
		for _, term := range f.Terms {
			conditions = append(conditions, fmt.Sprintf("%s LIKE ?", haystack))
			args = append(args, "%"+strings.ToLower(term)+"%")
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

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectAssets(rows *sql.Rows) ([]*domain.Asset, error) {
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

func scanAsset(row rowScanner) (*domain.Asset, error) {
	a := &domain.Asset{}
	var category, status string
	var description, tags, meta sql.NullString
	var confidence sql.NullFloat64

	err := row.Scan(
		&a.ID, &a.FileName, &a.DisplayName, &a.StorageKey, &a.MimeType, &a.SizeBytes,
		&category, &a.SiteID, &a.UploaderID, &status, &description, &tags,
		&confidence, &meta, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fillAsset(a, category, status, description, tags, confidence, meta)
}

func scanAssetWithRank(row rowScanner) (*domain.Asset, error) {
	a := &domain.Asset{}
	var category, status string
	var description, tags, meta sql.NullString
	var confidence sql.NullFloat64
	var rank int

	err := row.Scan(
		&a.ID, &a.FileName, &a.DisplayName, &a.StorageKey, &a.MimeType, &a.SizeBytes,
		&category, &a.SiteID, &a.UploaderID, &status, &description, &tags,
		&confidence, &meta, &a.CreatedAt, &a.UpdatedAt, &rank,
	)
	if err != nil {
		return nil, err
	}
	return fillAsset(a, category, status, description, tags, confidence, meta)
}

func fillAsset(
	a *domain.Asset, category, status string,
	description, tags sql.NullString, confidence sql.NullFloat64, meta sql.NullString,
) (*domain.Asset, error) {
	a.Category = domain.Category(category)
	a.Status = domain.Status(status)
	if description.Valid {
		a.Description = &description.String
	}
	if confidence.Valid {
		a.Confidence = &confidence.Float64
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return a, nil
}

func marshalTags(tags []string) (any, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return string(b), nil
}

func marshalMetadata(meta map[string]any) (any, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}
