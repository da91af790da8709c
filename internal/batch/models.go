package batch

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a batch item.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusOcrDone   Status = "ocr_done"
	StatusFormatted Status = "formatted"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusUploaded,
	StatusOcrDone,
	StatusFormatted,
	StatusPublished,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CorrectionStatus classifies the operator-correction state of a result.
type CorrectionStatus string

const (
	CorrectionNHR             CorrectionStatus = "NHR"
	CorrectionSearchFailed    CorrectionStatus = "search_failed"
	CorrectionOcrFailed       CorrectionStatus = "ocr_failed"
	CorrectionManualRejection CorrectionStatus = "manual_rejection"
	CorrectionOther           CorrectionStatus = "others"
	CorrectionApproved        CorrectionStatus = "approved"
)

// SelectedNHR is the sentinel selection meaning no match was confidently
// chosen and a human has to decide.
const SelectedNHR = "NHR"

// Match is one candidate pairing proposed by the compare stage.
type Match struct {
	Option string  `json:"option"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Result holds the correction/match state for one item. TopMatches is always
// replaced wholesale, never mutated in place.
type Result struct {
	OcrText          string           `json:"ocr_text"`
	TopMatches       []Match          `json:"top_matches"`
	SelectedOption   string           `json:"selected_option"`
	FinalOutput      string           `json:"final_output"`
	CorrectionStatus CorrectionStatus `json:"correction_status"`
	NeedsReview      bool             `json:"needs_review"`
	MatchConfidence  *float64         `json:"match_confidence,omitempty"`
	ValidatedGid     string           `json:"validated_gid,omitempty"`
}

// Item is one user-submitted image tracked through the pipeline.
//
// ID is assigned by the upload stage response and never changes afterwards.
// NormalizedFilename is the correlation key computed at creation and is
// immutable even when the OCR stage renames the file remotely
// (ServerFilename).
type Item struct {
	ID                 string
	OriginalFilename   string
	NormalizedFilename string
	ServerFilename     string
	// SourcePath points at the local image blob. It is exclusively owned by
	// this item and used for secondary uploads (storage input mirroring).
	SourcePath   string
	Status       Status
	Result       *Result
	PublishIDs   map[string]string
	PublishLinks map[string]string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NeedsReview reports whether the item's result is flagged for review.
func (i *Item) NeedsReview() bool {
	return i.Result != nil && i.Result.NeedsReview
}

// SetFailed marks the item failed with the given remote-reported message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.UpdatedAt = time.Now().UTC()
}

// PastOcr reports whether the item has completed the OCR stage (the compare
// trigger is enabled once any item satisfies this).
func (i *Item) PastOcr() bool {
	switch i.Status {
	case StatusOcrDone, StatusFormatted, StatusPublished:
		return true
	default:
		return false
	}
}

// Batch is the full item collection plus pipeline-wide flags.
type Batch struct {
	ID            int64
	Items         []*Item
	OcrLocked     bool
	CompareLocked bool
	// Cancelled is cooperative: it gates stage triggers but never aborts an
	// outstanding remote call, so a late response is still applied.
	Cancelled bool
	LastError string
	UploadMs  int64
	OcrMs     int64
	CompareMs int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemByID returns the item with the given id, or nil.
func (b *Batch) ItemByID(id string) *Item {
	for _, item := range b.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// AnyPastOcr reports whether at least one item has completed the OCR stage.
func (b *Batch) AnyPastOcr() bool {
	for _, item := range b.Items {
		if item.PastOcr() {
			return true
		}
	}
	return false
}
