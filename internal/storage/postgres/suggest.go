package postgres

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/assetdex/internal/storage"
)

// SuggestRepo gathers raw suggestion candidates from filenames, tags,
// site names and client names. Deduplication happens in the usecase.
type SuggestRepo struct {
	db DBTX
}

var _ storage.SuggestionRepository = (*SuggestRepo)(nil)

func (r *SuggestRepo) SuggestTerms(
	ctx context.Context, partial string, siteIDs []string, limit int,
) ([]string, error) {
	pattern := "%" + partial + "%"

	rows, err := r.db.Query(ctx, `
		(SELECT file_name AS term FROM assets
			WHERE site_id = ANY($1) AND file_name ILIKE $2 LIMIT $3)
		UNION ALL
		(SELECT t FROM assets, unnest(coalesce(tags, '{}')) AS t
			WHERE site_id = ANY($1) AND t ILIKE $2 LIMIT $3)
		UNION ALL
		(SELECT name FROM sites
			WHERE id = ANY($1) AND name ILIKE $2 LIMIT $3)
		UNION ALL
		(SELECT client_name FROM sites
			WHERE id = ANY($1) AND client_name ILIKE $2 AND client_name <> '' LIMIT $3)`,
		siteIDs, pattern, limit)
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
