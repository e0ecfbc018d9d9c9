// Package suggest completes partial queries from filenames, tags, site
// names and client names visible to the caller.
package suggest

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/assetdex/internal/domain"
)

// Config bounds suggestion responses.
type Config struct {
	MaxSuggestions int
}

// Service resolves suggestion requests.
type Service struct {
	terms TermSource
	perms PermissionResolver
	cfg   Config
}

// New creates a suggestion service.
func New(terms TermSource, perms PermissionResolver, cfg Config) *Service {
	return &Service{terms: terms, perms: perms, cfg: cfg}
}

// Suggest returns deduplicated, alphabetically sorted candidate terms
// matching the partial query case-insensitively, scoped to the caller's
// accessible sites.
func (s *Service) Suggest(ctx context.Context, userID, partial string, limit int) ([]string, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return nil, fmt.Errorf("%w: partial query must not be empty", domain.ErrValidation)
	}
	if limit < 1 || limit > s.cfg.MaxSuggestions {
		limit = s.cfg.MaxSuggestions
	}

	scope := s.perms.AccessibleSites(ctx, userID, false)
	if len(scope) == 0 {
		return nil, nil
	}

	// Over-fetch so deduplication does not starve the response.
	raw, err := s.terms.SuggestTerms(ctx, partial, scope, limit*4)
	if err != nil {
		return nil, fmt.Errorf("fetch suggestion terms: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
