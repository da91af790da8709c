package batch

import "strings"

// FilterCriteria narrows the item collection for display. Zero values mean
// "no constraint".
type FilterCriteria struct {
	Status      Status
	NeedsReview *bool
	Search      string
}

// Project returns the items matching the criteria in their original order.
// It never mutates the batch; the returned slice shares item pointers with
// the source so callers must treat them as read-only.
func Project(items []*Item, criteria FilterCriteria) []*Item {
	out := make([]*Item, 0, len(items))
	search := strings.ToLower(strings.TrimSpace(criteria.Search))
	for _, item := range items {
		if criteria.Status != "" && item.Status != criteria.Status {
			continue
		}
		if criteria.NeedsReview != nil && item.NeedsReview() != *criteria.NeedsReview {
			continue
		}
		if search != "" && !strings.Contains(searchText(item), search) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func searchText(item *Item) string {
	parts := []string{item.OriginalFilename}
	if item.Result != nil {
		parts = append(parts, item.Result.OcrText, item.Result.FinalOutput)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
