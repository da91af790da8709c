// Package publish pushes corrected batch items to the storage and catalog
// backends in fixed-size chunks. Chunks commit independently: a failure stops
// the run but everything already pushed stays published.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vintner/internal/batch"
	"vintner/internal/config"
	"vintner/internal/logging"
	"vintner/internal/naming"
	"vintner/internal/pipeline"
	"vintner/internal/services"
	"vintner/internal/services/catalog"
	"vintner/internal/services/drive"
)

// StorageService is the slice of the storage client the dispatcher uses.
type StorageService interface {
	Upload(ctx context.Context, userID string, selections []drive.Selection) (drive.UploadResponse, error)
}

// CatalogService is the slice of the catalog client the dispatcher uses.
type CatalogService interface {
	UploadBatch(ctx context.Context, selections []catalog.Selection) (int, error)
}

// Progress counts published items against the publishable total.
type Progress struct {
	Done  int
	Total int
}

// Dispatcher publishes the active batch chunk by chunk.
type Dispatcher struct {
	store     *batch.Store
	storage   StorageService
	catalog   CatalogService
	userID    string
	chunkSize int
	logger    *slog.Logger
}

// NewDispatcher constructs a dispatcher bound to the configured chunk size
// and storage user.
func NewDispatcher(store *batch.Store, storage StorageService, cat CatalogService, cfg *config.Config, logger *slog.Logger) *Dispatcher {
	chunkSize := cfg.Publish.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &Dispatcher{
		store:     store,
		storage:   storage,
		catalog:   cat,
		userID:    cfg.Drive.UserID,
		chunkSize: chunkSize,
		logger:    logging.NewComponentLogger(logger, "publish"),
	}
}

// plan pairs one item with the storage selection derived from its result.
// The catalog projection is taken from the same selection at dispatch time.
type plan struct {
	item       *batch.Item
	storageSel drive.Selection
}

// Run publishes every formatted item of the active batch. Selections are
// validated up front, before any network call; a chunk failure returns the
// progress made along with an error marked ErrPartialBatch when at least one
// chunk committed.
func (d *Dispatcher) Run(ctx context.Context) (Progress, error) {
	b, err := d.store.CurrentBatch(ctx)
	if err != nil {
		return Progress{}, err
	}
	if b.Cancelled {
		return Progress{}, pipeline.ErrBatchCancelled
	}

	plans, err := d.buildPlans(b)
	if err != nil {
		return Progress{}, err
	}
	progress := Progress{Total: len(plans)}
	if progress.Total == 0 {
		return Progress{}, pipeline.ErrNothingToDo
	}

	start := time.Now()
	d.logger.Info("publish started",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("items", progress.Total),
		logging.Int("chunk_size", d.chunkSize))

	for offset := 0; offset < len(plans); offset += d.chunkSize {
		end := offset + d.chunkSize
		if end > len(plans) {
			end = len(plans)
		}
		chunk := plans[offset:end]

		if err := d.publishChunk(ctx, b, chunk); err != nil {
			b.LastError = err.Error()
			if saveErr := d.store.SaveBatch(ctx, b); saveErr != nil {
				d.logger.Error("failed to persist publish failure", logging.Error(saveErr))
			}
			if progress.Done > 0 {
				err = services.Wrap(services.ErrPartialBatch, "publish", "dispatch",
					fmt.Sprintf("%d of %d items published before failure", progress.Done, progress.Total), err)
			}
			return progress, err
		}

		now := time.Now().UTC()
		for _, p := range chunk {
			p.item.Status = batch.StatusPublished
			p.item.UpdatedAt = now
		}
		progress.Done += len(chunk)
		b.LastError = ""
		if err := d.store.SaveBatch(ctx, b); err != nil {
			return progress, err
		}
		d.logger.Info("chunk published",
			logging.Int64(logging.FieldBatchID, b.ID),
			logging.Int("done", progress.Done),
			logging.Int("total", progress.Total))
	}

	d.logger.Info("publish completed",
		logging.Int64(logging.FieldBatchID, b.ID),
		logging.Int("items", progress.Done),
		logging.Duration("stage_duration", time.Since(start)))
	return progress, nil
}

// buildPlans derives and validates the selections for every formatted item.
// Validation happens here, locally, so a bad rejection reason never costs a
// network round trip.
func (d *Dispatcher) buildPlans(b *batch.Batch) ([]plan, error) {
	plans := make([]plan, 0, len(b.Items))
	for _, item := range b.Items {
		if item.Status != batch.StatusFormatted || item.Result == nil {
			continue
		}
		image := item.ServerFilename
		if image == "" {
			image = item.OriginalFilename
		}

		if item.NeedsReview() || item.Result.SelectedOption == batch.SelectedNHR {
			reason := string(item.Result.CorrectionStatus)
			if _, ok := drive.NHRReasons[reason]; !ok {
				return nil, services.Wrap(services.ErrValidation, "publish", "validate",
					fmt.Sprintf("item %s has invalid rejection reason %q", item.ID, reason), nil)
			}
			plans = append(plans, plan{
				item: item,
				storageSel: drive.Selection{
					Image:        image,
					SelectedName: item.OriginalFilename,
					Target:       drive.TargetNHR,
					NHRReason:    reason,
				},
			})
			continue
		}

		if item.Result.FinalOutput == "" {
			return nil, services.Wrap(services.ErrValidation, "publish", "validate",
				fmt.Sprintf("item %s has no final output", item.ID), nil)
		}
		safeName := naming.SafeName(item.Result.FinalOutput)
		plans = append(plans, plan{
			item: item,
			storageSel: drive.Selection{
				Image:        image,
				SelectedName: safeName,
				Target:       drive.TargetOutput,
				Gid:          item.Result.ValidatedGid,
			},
		})
	}
	return plans, nil
}

// publishChunk pushes one chunk to storage first, then to the catalog. The
// two calls are sequential so a catalog failure never loses the storage ids
// already returned. The catalog sees the whole chunk, review-flagged items
// included, projected down to image, chosen name, and catalog id.
func (d *Dispatcher) publishChunk(ctx context.Context, b *batch.Batch, chunk []plan) error {
	storageSels := make([]drive.Selection, 0, len(chunk))
	catalogSels := make([]catalog.Selection, 0, len(chunk))
	for _, p := range chunk {
		storageSels = append(storageSels, p.storageSel)
		catalogSels = append(catalogSels, catalog.Selection{
			Image:        p.storageSel.Image,
			SelectedName: p.storageSel.SelectedName,
			Gid:          p.storageSel.Gid,
		})
	}

	resp, err := d.storage.Upload(ctx, d.userID, storageSels)
	if err != nil {
		return err
	}
	attachStorageIDs(chunk, resp)

	count, err := d.catalog.UploadBatch(ctx, catalogSels)
	if err != nil {
		return err
	}
	if count < len(catalogSels) {
		d.logger.Warn("catalog reported fewer items than submitted",
			logging.Int("submitted", len(catalogSels)),
			logging.Int("reported", count))
	}
	return nil
}

// attachStorageIDs maps the storage response back onto the chunk's items by
// filename. Unmatched entries are ignored; the ids are a convenience, not a
// publish precondition.
func attachStorageIDs(chunk []plan, resp drive.UploadResponse) {
	byKey := make(map[string]drive.OrganizedFile, len(resp.FilesOrganized))
	for _, file := range resp.FilesOrganized {
		if file.Filename != "" {
			byKey[naming.Normalize(file.Filename)] = file
		}
		if file.OcrFilename != "" {
			byKey[naming.Normalize(file.OcrFilename)] = file
		}
	}

	for _, p := range chunk {
		file, ok := byKey[naming.Normalize(p.storageSel.Image)]
		if !ok {
			if len(chunk) == 1 && resp.UploadResult != nil {
				setPublishID(p.item, resp.UploadResult.DriveFileID, resp.UploadResult.WebViewLink)
			}
			continue
		}
		setPublishID(p.item, file.DriveID, file.WebViewLink)
	}
}

func setPublishID(item *batch.Item, id, link string) {
	if id != "" {
		if item.PublishIDs == nil {
			item.PublishIDs = make(map[string]string)
		}
		item.PublishIDs["drive"] = id
	}
	if link != "" {
		if item.PublishLinks == nil {
			item.PublishLinks = make(map[string]string)
		}
		item.PublishLinks["drive"] = link
	}
}
