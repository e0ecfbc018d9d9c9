package domain

// Resolving tier labels recorded with every search.
const (
	TierStructured = "structured"
	TierFulltext   = "fulltext"
	TierSemantic   = "semantic"
	TierNone       = "none"
)

// RankedScore is one candidate's semantic relevance. Index refers to
// the position in the candidate list submitted for ranking.
type RankedScore struct {
	Index int
	Score float64
}
