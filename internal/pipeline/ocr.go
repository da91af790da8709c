package pipeline

import (
	"context"
	"errors"
	"time"

	"vintner/internal/batch"
	"vintner/internal/correlate"
	"vintner/internal/logging"
	"vintner/internal/naming"
	"vintner/internal/services/labelapi"
)

// ocrEstimatePerImage is the advisory duration logged before the OCR call so
// operators know roughly how long a large batch will block.
const ocrEstimatePerImage = 15 * time.Second

// Stage-gate errors reported to the operator.
var (
	ErrBatchCancelled  = errors.New("batch is cancelled")
	ErrStageLocked     = errors.New("stage already triggered for this batch")
	ErrNothingToDo     = errors.New("no items eligible for this stage")
	ErrCompareNotReady = errors.New("no items have completed ocr")
)

// RunOCR triggers the OCR stage over the active batch. The stage is
// one-shot: the lock engages on trigger and stays engaged whether the remote
// call succeeds or fails.
func (o *Orchestrator) RunOCR(ctx context.Context) (*batch.Batch, error) {
	b, err := o.store.CurrentBatch(ctx)
	if err != nil {
		return nil, err
	}
	if b.Cancelled {
		return nil, ErrBatchCancelled
	}
	if b.OcrLocked {
		return nil, ErrStageLocked
	}
	if len(b.Items) == 0 {
		return nil, ErrNothingToDo
	}

	b.OcrLocked = true
	start := time.Now()
	o.logger.Info("ocr started",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("items", len(b.Items)),
		logging.Duration("estimated_duration", time.Duration(len(b.Items))*ocrEstimatePerImage))

	ids := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		ids = append(ids, item.ID)
	}

	results, err := o.labels.ProcessOcr(ctx, ids)
	if err != nil {
		b.LastError = err.Error()
		if saveErr := o.store.SaveBatch(ctx, b); saveErr != nil {
			o.logger.Error("failed to persist ocr failure", logging.Error(saveErr))
		}
		return nil, err
	}

	o.applyOcrResults(b, results)
	b.LastError = ""
	b.OcrMs = time.Since(start).Milliseconds()
	if err := o.store.SaveBatch(ctx, b); err != nil {
		return nil, err
	}
	o.logger.Info("ocr completed",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("results", len(results)),
		logging.Duration("stage_duration", time.Since(start)))
	return b, nil
}

func (o *Orchestrator) applyOcrResults(b *batch.Batch, results []labelapi.OcrResult) {
	itemKeys := make([]string, len(b.Items))
	for i, item := range b.Items {
		itemKeys[i] = item.NormalizedFilename
	}
	entryKeys := make([][]string, len(results))
	for i, result := range results {
		entryKeys[i] = []string{naming.Normalize(result.OriginalFilename), naming.Normalize(result.NewFilename)}
	}

	assigned := correlate.Assign(itemKeys, entryKeys)
	now := time.Now().UTC()
	for i, item := range b.Items {
		idx := assigned[i]
		if idx == correlate.Unassigned {
			o.logger.Warn("no ocr result for item",
				logging.String(logging.FieldItemID, item.ID),
				logging.String("filename", item.OriginalFilename))
			continue
		}
		result := results[idx]
		if result.Error != "" {
			item.SetFailed(result.Error)
			continue
		}
		if result.NewFilename != "" {
			item.ServerFilename = result.NewFilename
		}
		if item.Result == nil {
			// Fresh results start at the review sentinel until compare
			// derives a real correction status.
			item.Result = &batch.Result{CorrectionStatus: batch.CorrectionNHR}
		}
		item.Result.OcrText = result.FormattedName
		item.Status = batch.StatusOcrDone
		item.ErrorMessage = ""
		item.UpdatedAt = now
	}
}
