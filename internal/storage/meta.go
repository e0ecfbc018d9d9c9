package storage

import "github.com/kailas-cloud/assetdex/internal/domain"

// MetadataFromResult collects the optional structured attributes of a
// classification result into the asset's opaque metadata blob.
// Returns nil when the result carries none.
func MetadataFromResult(res domain.ClassificationResult) map[string]any {
	meta := make(map[string]any)
	if res.RoomType != "" {
		meta["room_type"] = res.RoomType
	}
	if len(res.StyleElements) > 0 {
		meta["style_elements"] = res.StyleElements
	}
	if len(res.Colors) > 0 {
		meta["colors"] = res.Colors
	}
	if len(res.Materials) > 0 {
		meta["materials"] = res.Materials
	}
	if len(res.Objects) > 0 {
		meta["objects"] = res.Objects
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
