package domain

import "time"

// Status is the classification state of an asset.
type Status string

// Classification states. Transitions are monotonic except for the
// operator-triggered retry, which is the only way back from failed.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
// failed -> pending is the retry edge.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	}
	return false
}

// Category is the fixed asset category enumeration.
type Category string

const (
	CategoryPhoto     Category = "photo"
	CategoryRender    Category = "render"
	CategoryFloorPlan Category = "floor_plan"
	CategoryDocument  Category = "document"
	CategoryVideo     Category = "video"
	CategoryOther     Category = "other"
)

// Categories lists all known categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryPhoto, CategoryRender, CategoryFloorPlan,
		CategoryDocument, CategoryVideo, CategoryOther,
	}
}

// ParseCategory returns the category matching s, or false when s is not
// a recognized category.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Asset is a stored file record plus its classification metadata.
// Description, Tags and Confidence are nil until classification completes.
type Asset struct {
	ID          string
	FileName    string
	DisplayName string
	StorageKey  string
	MimeType    string
	SizeBytes   int64
	Category    Category
	SiteID      string
	UploaderID  string
	Status      Status
	Description *string
	Tags        []string
	Confidence  *float64
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasDescription reports whether the asset carries a non-empty AI description,
// which is what makes it eligible for semantic ranking.
func (a *Asset) HasDescription() bool {
	return a.Description != nil && *a.Description != ""
}
