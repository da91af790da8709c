package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"vintner/internal/batch"
	"vintner/internal/logging"
	"vintner/internal/naming"
	"vintner/internal/services/drive"
)

// Upload submits the given local files and appends the returned items to
// the current batch, starting a fresh batch when none exists or the current
// one was cancelled. Adding images opens a new session, so the stage locks
// are released. Originals are mirrored into the storage input folder when
// that capability is linked.
func (o *Orchestrator) Upload(ctx context.Context, paths []string) (*batch.Batch, error) {
	start := time.Now()
	uploaded, err := o.labels.Upload(ctx, paths)
	if err != nil {
		return nil, err
	}

	b, err := o.store.CurrentBatch(ctx)
	if err != nil && !errors.Is(err, batch.ErrNoBatch) {
		return nil, err
	}
	if b == nil || b.Cancelled {
		if b, err = o.store.CreateBatch(ctx); err != nil {
			return nil, err
		}
	}
	b.OcrLocked = false
	b.CompareLocked = false
	b.LastError = ""

	pathByName := make(map[string]string, len(paths))
	for _, path := range paths {
		pathByName[filepath.Base(path)] = path
	}

	now := time.Now().UTC()
	added := make([]*batch.Item, 0, len(uploaded))
	for _, entry := range uploaded {
		item := &batch.Item{
			ID:                 entry.ID,
			OriginalFilename:   entry.Filename,
			NormalizedFilename: naming.Normalize(entry.Filename),
			SourcePath:         pathByName[entry.Filename],
			Status:             batch.StatusUploaded,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		b.Items = append(b.Items, item)
		added = append(added, item)
		if entry.Synthesized {
			o.logger.Warn("upload response omitted file, id synthesized",
				logging.String("filename", entry.Filename),
				logging.String(logging.FieldItemID, entry.ID))
		}
	}
	b.UploadMs += time.Since(start).Milliseconds()

	if err := o.store.SaveBatch(ctx, b); err != nil {
		return nil, err
	}
	o.logger.Info("upload completed",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("added", len(added)),
		logging.Int("items", len(b.Items)),
		logging.Duration("stage_duration", time.Since(start)))

	o.mirrorUploads(ctx, b, added)
	return b, nil
}

// mirrorUploads copies the just-uploaded originals into the storage input
// folder. Best effort: any failure is logged and the batch proceeds.
func (o *Orchestrator) mirrorUploads(ctx context.Context, b *batch.Batch, items []*batch.Item) {
	if o.storage == nil || !o.cfg.Drive.MirrorUploads || o.cfg.Drive.UserID == "" {
		return
	}

	capability, err := o.storage.Status(ctx, o.cfg.Drive.UserID)
	if err != nil {
		o.logger.Warn("storage capability check failed, skipping input mirror", logging.Error(err))
		return
	}
	if !capability.Linked {
		o.logger.Debug("storage account not linked, skipping input mirror")
		return
	}

	selections := make([]drive.Selection, 0, len(items))
	for _, item := range items {
		selections = append(selections, drive.Selection{
			Image:        item.OriginalFilename,
			SelectedName: item.OriginalFilename,
			Target:       drive.TargetInput,
		})
	}
	if _, err := o.storage.Upload(ctx, o.cfg.Drive.UserID, selections); err != nil {
		o.logger.Warn("input mirror failed", logging.Error(err), logging.Int64(logging.FieldBatchID, b.ID))
		return
	}
	o.logger.Info("originals mirrored to storage input",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("items", len(selections)))
}
