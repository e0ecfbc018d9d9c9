package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/assetdex/internal/domain"
	searchuc "github.com/kailas-cloud/assetdex/internal/usecase/search"
)

// searchRequest is the POST /api/v1/search body.
type searchRequest struct {
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

type searchResponse struct {
	Assets    []assetResponse `json:"assets"`
	Total     int             `json:"total"`
	Page      int             `json:"page"`
	Limit     int             `json:"limit"`
	Tier      string          `json:"tier"`
	ElapsedMs int64           `json:"elapsedMs"`
}

type assetResponse struct {
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

// registerAssetRequest is the POST /api/v1/assets body.
type registerAssetRequest struct {
	FileName    string `json:"fileName"`
	DisplayName string `json:"displayName,omitempty"`
	StorageKey  string `json:"storageKey"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
	Category    string `json:"category,omitempty"`
	SiteID      string `json:"siteId"`
}

type reprocessResponse struct {
	Reset int `json:"reset"`
}

type suggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

type searchRecordResponse struct {
	ID          string    `json:"id"`
	RawQuery    string    `json:"rawQuery"`
	Filters     string    `json:"filters,omitempty"`
	ResultCount int       `json:"resultCount"`
	Tier        string    `json:"tier"`
	LatencyMs   int64     `json:"latencyMs"`
	CreatedAt   time.Time `json:"createdAt"`
}

type popularQueryResponse struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func assetToDTO(a *domain.Asset, score *float64) assetResponse {
	return assetResponse{
		ID:          a.ID,
		FileName:    a.FileName,
		DisplayName: a.DisplayName,
		StorageKey:  a.StorageKey,
		MimeType:    a.MimeType,
		SizeBytes:   a.SizeBytes,
		Category:    string(a.Category),
		SiteID:      a.SiteID,
		UploaderID:  a.UploaderID,
		Status:      string(a.Status),
		Description: a.Description,
		Tags:        a.Tags,
		Confidence:  a.Confidence,
		Metadata:    a.Metadata,
		Score:       score,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func searchRequestToUsecase(userID string, req searchRequest) (searchuc.Request, error) {
	out := searchuc.Request{
		UserID:    userID,
		Query:     req.Query,
		SiteIDs:   req.SiteIDs,
		MimeTypes: req.MimeTypes,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
		Page:      req.Page,
		Limit:     req.Limit,
	}

	for _, c := range req.Categories {
		out.Categories = append(out.Categories, domain.Category(c))
	}

	var err error
	if out.DateFrom, err = parseDate(req.DateFrom); err != nil {
		return searchuc.Request{}, fmt.Errorf("dateFrom: %w", err)
	}
	if out.DateTo, err = parseDate(req.DateTo); err != nil {
		return searchuc.Request{}, fmt.Errorf("dateTo: %w", err)
	}
	return out, nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}
