package domain

import "time"

// SearchRecord is one append-only audit entry per search invocation.
type SearchRecord struct {
	ID          string
	UserID      string
	RawQuery    string
	Filters     string // serialized filter snapshot
	ResultCount int
	Tier        string
	Latency     time.Duration
	CreatedAt   time.Time
}

// PopularQuery is an aggregated query statistic for one user.
type PopularQuery struct {
	Query string
	Count int
}
