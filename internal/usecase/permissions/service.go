// Package permissions resolves which sites a principal may touch. The
// resolver fails closed: any backend error yields an empty scope, never
// a broadened one.
package permissions

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/kailas-cloud/assetdex/internal/domain"
	"github.com/kailas-cloud/assetdex/internal/metrics"
)

// Config holds resolver cache settings.
type Config struct {
	CacheSize int
	CacheTTL  time.Duration
}

type cacheKey struct {
	userID string
	upload bool
}

// Service resolves accessible site scopes with a short-lived cache.
type Service struct {
	users  UserReader
	sites  SiteReader
	grants GrantReader
	cache  *expirable.LRU[cacheKey, []string]
	logger *zap.Logger
}

// New creates a permission resolver.
func New(users UserReader, sites SiteReader, grants GrantReader, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		users:  users,
		sites:  sites,
		grants: grants,
		cache:  expirable.NewLRU[cacheKey, []string](cfg.CacheSize, nil, cfg.CacheTTL),
		logger: logger,
	}
}

// AccessibleSites returns the ids of active sites the principal may
// view (and upload to, when requireUpload is set). Admins see every
// active site. Unknown principals and backend errors both resolve to an
// empty scope.
func (s *Service) AccessibleSites(ctx context.Context, userID string, requireUpload bool) []string {
	key := cacheKey{userID: userID, upload: requireUpload}
	if scope, ok := s.cache.Get(key); ok {
		metrics.PermissionCacheTotal.WithLabelValues("hit").Inc()
		return scope
	}
	metrics.PermissionCacheTotal.WithLabelValues("miss").Inc()

	scope := s.resolve(ctx, userID, requireUpload)
	s.cache.Add(key, scope)
	return scope
}

func (s *Service) resolve(ctx context.Context, userID string, requireUpload bool) []string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("resolve principal", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}

	active, err := s.sites.ActiveSites(ctx)
	if err != nil {
		s.logger.Warn("list active sites", zap.Error(err))
		return nil
	}

	if user.Admin {
		scope := make([]string, 0, len(active))
		for _, site := range active {
			scope = append(scope, site.ID)
		}
		return scope
	}

	grants, err := s.grants.ForUser(ctx, userID)
	if err != nil {
		s.logger.Warn("list grants", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	granted := make(map[string]domain.Grant, len(grants))
	for _, g := range grants {
		granted[g.SiteID] = g
	}

	var scope []string
	for _, site := range active {
		g, ok := granted[site.ID]
		if !ok || !g.CanView {
			continue
		}
		if requireUpload && !g.CanUpload {
			continue
		}
		scope = append(scope, site.ID)
	}
	return scope
}

// Check reports the principal's access to one site. Inactive sites are
// invisible to everyone.
func (s *Service) Check(ctx context.Context, userID, siteID string) domain.Access {
	for _, id := range s.AccessibleSites(ctx, userID, false) {
		if id == siteID {
			canUpload := false
			for _, up := range s.AccessibleSites(ctx, userID, true) {
				if up == siteID {
					canUpload = true
					break
				}
			}
			return domain.Access{CanView: true, CanUpload: canUpload}
		}
	}
	return domain.Access{}
}

// Invalidate drops the principal's cached scopes after a grant change.
func (s *Service) Invalidate(userID string) {
	s.cache.Remove(cacheKey{userID: userID, upload: false})
	s.cache.Remove(cacheKey{userID: userID, upload: true})
}
