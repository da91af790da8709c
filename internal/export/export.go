// Package export serializes batch items to CSV for offline review.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"vintner/internal/batch"
)

var header = []string{
	"Filename",
	"OCR Text",
	"Selected Match",
	"Top3",
	"Confidence",
	"Needs Review",
	"Validated Gid",
}

// Write serializes the items as CSV, one row per item in the given order.
func Write(w io.Writer, items []*batch.Item) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, item := range items {
		if err := writer.Write(row(item)); err != nil {
			return fmt.Errorf("write csv row for %s: %w", item.OriginalFilename, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func row(item *batch.Item) []string {
	ocrText := ""
	selected := ""
	top3 := ""
	confidence := ""
	needsReview := "No"
	gid := ""
	if item.Result != nil {
		r := item.Result
		ocrText = r.OcrText
		selected = r.SelectedOption
		top3 = formatMatches(r.TopMatches)
		if r.MatchConfidence != nil {
			confidence = fmt.Sprintf("%.2f", *r.MatchConfidence)
		}
		if r.NeedsReview {
			needsReview = "Yes"
		}
		gid = r.ValidatedGid
	}
	return []string{item.OriginalFilename, ocrText, selected, top3, confidence, needsReview, gid}
}

func formatMatches(matches []batch.Match) string {
	parts := make([]string, 0, len(matches))
	for _, match := range matches {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", match.Option, match.Score))
	}
	return strings.Join(parts, " | ")
}
