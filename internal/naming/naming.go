// Package naming derives the correlation keys and publish-safe filenames
// used throughout the pipeline.
//
// The backend stages key their batch responses by filename rather than item
// id, and may rename files along the way, so every cross-stage match runs
// through Normalize. Two files with the same basename in different source
// directories share one key; operators are expected to avoid that.
package naming

import (
	"strings"
	"unicode"
)

// Normalize reduces a filename to its correlation key: the last path segment
// (split on either separator), lower-cased. Total and idempotent.
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	last := name
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		last = name[idx+1:]
	}
	return strings.ToLower(last)
}

// SafeName converts a selected match into a filename suitable for the
// publish folders: alphanumerics kept, everything else collapsed to single
// underscores, with a .jpg extension. Empty input becomes "unnamed.jpg".
func SafeName(selected string) string {
	var b strings.Builder
	b.Grow(len(selected))
	prevUnderscore := true
	for _, r := range selected {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "unnamed"
	}
	return name + ".jpg"
}
