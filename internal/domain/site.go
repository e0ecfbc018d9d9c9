package domain

import "time"

// Site is a tenant container for assets.
type Site struct {
	ID         string
	Name       string
	ClientName string
	Active     bool
	CreatedAt  time.Time
}

// User is a search principal. Admins implicitly see every active site.
type User struct {
	ID    string
	Admin bool
}

// Grant gives a user access to one site. At most one grant exists per
// (user, site) pair; it cascades away with either side.
type Grant struct {
	UserID    string
	SiteID    string
	CanView   bool
	CanUpload bool
}

// Access is the resolved permission pair for one (user, site).
type Access struct {
	CanView   bool
	CanUpload bool
}
