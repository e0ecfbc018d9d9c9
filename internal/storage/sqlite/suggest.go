package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kailas-cloud/assetdex/internal/storage"
)

// SuggestRepo gathers raw suggestion candidates from filenames, tags,
// site names and client names. Tags are unpacked with json_each since
// they are stored as a JSON array. Deduplication happens in the usecase.
type SuggestRepo struct {
	db *sql.DB
}

var _ storage.SuggestionRepository = (*SuggestRepo)(nil)

func (r *SuggestRepo) SuggestTerms(
	ctx context.Context, partial string, siteIDs []string, limit int,
) ([]string, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}

	pattern := "%" + strings.ToLower(partial) + "%"
	in := placeholders(len(siteIDs))
	ids := stringArgs(siteIDs)

	query := fmt.Sprintf(`
		SELECT file_name AS term FROM assets
			WHERE site_id IN (%[1]s) AND lower(file_name) LIKE ?
		UNION ALL
		SELECT je.value FROM assets, json_each(coalesce(assets.tags, '[]')) AS je
			WHERE site_id IN (%[1]s) AND lower(je.value) LIKE ?
		UNION ALL
		SELECT name FROM sites
			WHERE id IN (%[1]s) AND lower(name) LIKE ?
		UNION ALL
		SELECT client_name FROM sites
			WHERE id IN (%[1]s) AND lower(client_name) LIKE ? AND client_name <> ''
		LIMIT ?`, in)

	var args []any
	for i := 0; i < 4; i++ {
		args = append(args, ids...)
		args = append(args, pattern)
	}
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("suggest terms: %w", err)
	}
	defer rows.Close()

	var terms []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return terms, nil
}
