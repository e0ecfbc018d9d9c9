package suggest

import "context"

// TermSource fetches raw suggestion candidates matching a partial query.
type TermSource interface {
	SuggestTerms(ctx context.Context, partial string, siteIDs []string, limit int) ([]string, error)
}

// PermissionResolver produces the caller's accessible-site scope.
type PermissionResolver interface {
	AccessibleSites(ctx context.Context, userID string, requireUpload bool) []string
}
