package assetdex

import "time"

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query      string   `json:"query"`
	SiteIDs    []string `json:"siteIds,omitempty"`
	Categories []string `json:"categories,omitempty"`
	MimeTypes  []string `json:"mimeTypes,omitempty"`
	DateFrom   string   `json:"dateFrom,omitempty"`
	DateTo     string   `json:"dateTo,omitempty"`
	SortBy     string   `json:"sortBy,omitempty"`
	SortOrder  string   `json:"sortOrder,omitempty"`
	Page       int      `json:"page,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// SearchResponse is one page of search results plus resolution info.
type SearchResponse struct {
	Assets    []Asset `json:"assets"`
	Total     int     `json:"total"`
	Page      int     `json:"page"`
	Limit     int     `json:"limit"`
	Tier      string  `json:"tier"`
	ElapsedMs int64   `json:"elapsedMs"`
}

// Asset is a digital asset with its classification state. Score is set
// only on results resolved by the semantic tier.
type Asset struct {
	ID          string         `json:"id"`
	FileName    string         `json:"fileName"`
	DisplayName string         `json:"displayName"`
	StorageKey  string         `json:"storageKey"`
	MimeType    string         `json:"mimeType"`
	SizeBytes   int64          `json:"sizeBytes"`
	Category    string         `json:"category"`
	SiteID      string         `json:"siteId"`
	UploaderID  string         `json:"uploaderId"`
	Status      string         `json:"status"`
	Description *string        `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Confidence  *float64       `json:"confidence,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Score       *float64       `json:"score,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// RegisterAssetRequest registers uploaded asset metadata. The blob
// itself is stored by the upload collaborator; StorageKey points at it.
type RegisterAssetRequest struct {
	FileName    string `json:"fileName"`
	DisplayName string `json:"displayName,omitempty"`
	StorageKey  string `json:"storageKey"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
	Category    string `json:"category,omitempty"`
	SiteID      string `json:"siteId"`
}

// ReprocessResult reports how many failed assets were reset to pending.
type ReprocessResult struct {
	Reset int `json:"reset"`
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}
