package search

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/storage"
)

// semantic runs the third tier: bulk-score described candidates against
// the raw query and page through the matches above the score cutoff.
// Every failure inside this tier, including a timeout, degrades to zero
// results so the controller keeps the prior tier's output.
func (s *Service) semantic(
	ctx context.Context, rawQuery string, f storage.AssetFilter,
) ([]*domain.Asset, map[string]float64, int) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.InferenceTimeout)
	defer cancel()

	candidates, err := s.assets.DescribedCandidates(ctx, f.SiteIDs, s.cfg.CandidateCap)
	if err != nil {
		s.logger.Warn("fetch semantic candidates", zap.Error(err))
		return nil, nil, 0
	}
	if len(candidates) == 0 {
		return nil, nil, 0
	}

	descriptions := make([]string, len(candidates))
	for i, c := range candidates {
		if c.Description != nil {
			descriptions[i] = *c.Description
		}
	}

	ranked, err := s.ranker.Rank(ctx, rawQuery, descriptions)
	if err != nil {
		s.logger.Warn("semantic ranking", zap.Error(err))
		return nil, nil, 0
	}

	matches := ranked[:0]
	for _, r := range ranked {
		if r.Score >= s.cfg.MinScore {
			matches = append(matches, r)
		}
	}
	// Ties break on candidate order so identical searches stay identical.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})

	total := len(matches)
	offset := (f.Page - 1) * f.Limit
	if offset >= total {
		return nil, nil, total
	}
	page := matches[offset:]
	if len(page) > f.Limit {
		page = page[:f.Limit]
	}

	assets := make([]*domain.Asset, 0, len(page))
	scores := make(map[string]float64, len(page))
	for _, m := range page {
		a := candidates[m.Index]
		assets = append(assets, a)
		scores[a.ID] = m.Score
	}
	return assets, scores, total
}
