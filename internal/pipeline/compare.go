package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"vintner/internal/batch"
	"vintner/internal/correlate"
	"vintner/internal/logging"
	"vintner/internal/naming"
	"vintner/internal/services/labelapi"
)

const maxTopMatches = 3

// RunCompare triggers the candidate-matching stage over every non-failed
// item. Items a short OCR response left behind are submitted too, so a late
// backend can still match them. Like OCR, the stage is one-shot per batch.
func (o *Orchestrator) RunCompare(ctx context.Context) (*batch.Batch, error) {
	b, err := o.store.CurrentBatch(ctx)
	if err != nil {
		return nil, err
	}
	if b.Cancelled {
		return nil, ErrBatchCancelled
	}
	if b.CompareLocked {
		return nil, ErrStageLocked
	}
	if !b.AnyPastOcr() {
		return nil, ErrCompareNotReady
	}

	eligible := make([]*batch.Item, 0, len(b.Items))
	ids := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		if item.Status == batch.StatusFailed {
			continue
		}
		eligible = append(eligible, item)
		ids = append(ids, item.ID)
	}
	if len(eligible) == 0 {
		return nil, ErrNothingToDo
	}

	b.CompareLocked = true
	start := time.Now()
	o.logger.Info("compare started",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("items", len(eligible)))

	results, err := o.labels.CompareBatch(ctx, ids)
	if err != nil {
		b.LastError = err.Error()
		if saveErr := o.store.SaveBatch(ctx, b); saveErr != nil {
			o.logger.Error("failed to persist compare failure", logging.Error(saveErr))
		}
		return nil, err
	}

	o.applyCompareResults(eligible, results)
	b.LastError = ""
	b.CompareMs = time.Since(start).Milliseconds()
	if err := o.store.SaveBatch(ctx, b); err != nil {
		return nil, err
	}
	o.logger.Info("compare completed",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("results", len(results)),
		logging.Duration("stage_duration", time.Since(start)))
	return b, nil
}

func (o *Orchestrator) applyCompareResults(items []*batch.Item, results []labelapi.CompareResult) {
	itemKeys := make([]string, len(items))
	for i, item := range items {
		itemKeys[i] = compareKey(item)
	}
	entryKeys := make([][]string, len(results))
	for i, result := range results {
		entryKeys[i] = []string{naming.Normalize(result.Image)}
	}

	assigned := correlate.Assign(itemKeys, entryKeys)
	now := time.Now().UTC()
	for i, item := range items {
		idx := assigned[i]
		if idx == correlate.Unassigned {
			o.logger.Warn("no compare result for item",
				logging.String(logging.FieldItemID, item.ID),
				logging.String("filename", item.OriginalFilename))
			continue
		}
		applyMatches(item, results[idx].Matches)
		item.UpdatedAt = now
	}
}

// compareKey prefers the server-side rename over the submitted name because
// the compare stage reports files under their renamed form.
func compareKey(item *batch.Item) string {
	if item.ServerFilename != "" {
		return naming.Normalize(item.ServerFilename)
	}
	return item.NormalizedFilename
}

// applyMatches turns one compare response into the item's result fields.
// Candidates are ranked by score; flagged items carry the NHR sentinel
// selection and an empty final output until an operator decides.
func applyMatches(item *batch.Item, matches labelapi.CompareMatches) {
	candidates := make([]labelapi.Candidate, len(matches.Candidates))
	copy(candidates, matches.Candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > maxTopMatches {
		candidates = candidates[:maxTopMatches]
	}

	top := make([]batch.Match, 0, len(candidates))
	for _, candidate := range candidates {
		top = append(top, batch.Match{Option: candidate.Text, Score: candidate.Score, Reason: candidate.Reason})
	}

	if item.Result == nil {
		item.Result = &batch.Result{}
	}
	result := item.Result
	if matches.Orig != "" {
		result.OcrText = matches.Orig
	}
	result.TopMatches = top
	result.ValidatedGid = matches.ValidatedGid
	result.NeedsReview = matches.NeedsReview()
	result.MatchConfidence = nil
	if len(candidates) > 0 {
		confidence := candidates[0].Score
		result.MatchConfidence = &confidence
	}

	switch {
	case result.NeedsReview && strings.Contains(strings.ToLower(matches.Orig), "no label"):
		result.CorrectionStatus = batch.CorrectionOcrFailed
	case result.NeedsReview:
		result.CorrectionStatus = batch.CorrectionSearchFailed
	default:
		result.CorrectionStatus = batch.CorrectionApproved
	}

	if result.NeedsReview {
		result.SelectedOption = batch.SelectedNHR
		result.FinalOutput = ""
	} else {
		selected := matches.Final
		if selected == "" && len(top) > 0 {
			selected = top[0].Option
		}
		result.SelectedOption = selected
		result.FinalOutput = selected
	}
	item.Status = batch.StatusFormatted
}
