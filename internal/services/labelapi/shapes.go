package labelapi

import (
	"fmt"

	"github.com/google/uuid"
)

// The upload endpoint has returned several shapes over time: a bare id
// array, an object array, any of those wrapped under a well-known key, or a
// single object. Everything is reduced to []UploadItem here so the rest of
// the pipeline never sees the variance.

func normalizeUploadItems(raw any, sourceNames []string) []UploadItem {
	candidates := []any{raw}
	if obj, ok := raw.(map[string]any); ok {
		for _, key := range []string{"items", "uploads", "files", "data", "results", "files_uploaded"} {
			if nested, ok := obj[key]; ok {
				candidates = append(candidates, nested)
			}
		}
	}

	for _, candidate := range candidates {
		arr := asArray(candidate)
		if len(arr) == 0 {
			continue
		}
		if items := mapArrayItems(arr, sourceNames); len(items) > 0 {
			return items
		}
	}

	// Single-object response.
	if obj, ok := raw.(map[string]any); ok {
		if id := firstString(obj, "id", "fileId", "uuid", "_id", "uploadId"); id != "" {
			filename := firstString(obj, "filename", "name")
			if filename == "" && len(sourceNames) > 0 {
				filename = sourceNames[0]
			}
			return []UploadItem{{ID: id, Filename: filename}}
		}
	}
	return nil
}

func mapArrayItems(arr []any, sourceNames []string) []UploadItem {
	items := make([]UploadItem, 0, len(arr))
	for i, entry := range arr {
		switch v := entry.(type) {
		case string:
			items = append(items, UploadItem{ID: v, Filename: sourceName(sourceNames, i)})
		case map[string]any:
			id := firstString(v, "id", "fileId", "uuid", "_id", "uploadId")
			filename := firstString(v, "filename", "name")
			if filename == "" {
				filename = sourceName(sourceNames, i)
			}
			if id == "" && filename == "" {
				continue
			}
			if id == "" {
				id = uuid.NewString()
			}
			items = append(items, UploadItem{ID: id, Filename: filename})
		}
	}
	return items
}

// padUploadItems synthesizes entries for submitted files the response did
// not mention, so every file gets exactly one item.
func padUploadItems(items []UploadItem, sourceNames []string) []UploadItem {
	if len(items) >= len(sourceNames) {
		return items
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[item.Filename] = struct{}{}
	}
	for _, name := range sourceNames {
		if _, ok := seen[name]; ok {
			continue
		}
		items = append(items, UploadItem{ID: uuid.NewString(), Filename: name, Synthesized: true})
	}
	return items
}

func asArray(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case nil:
		return nil
	default:
		return nil
	}
}

func firstString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := obj[key]; ok {
			switch v := value.(type) {
			case string:
				if v != "" {
					return v
				}
			case float64:
				return fmt.Sprintf("%.0f", v)
			}
		}
	}
	return ""
}

func sourceName(sourceNames []string, i int) string {
	if i < len(sourceNames) {
		return sourceNames[i]
	}
	return fmt.Sprintf("file_%d", i+1)
}
