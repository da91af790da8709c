package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"vintner/internal/batch"
	"vintner/internal/config"
	"vintner/internal/logging"
	"vintner/internal/services/drive"
	"vintner/internal/services/labelapi"
)

// LabelService is the slice of the backend client the pipeline stages use.
type LabelService interface {
	Upload(ctx context.Context, paths []string) ([]labelapi.UploadItem, error)
	ProcessOcr(ctx context.Context, ids []string) ([]labelapi.OcrResult, error)
	CompareBatch(ctx context.Context, ids []string) ([]labelapi.CompareResult, error)
}

// StorageService is the slice of the storage client used for input mirroring.
type StorageService interface {
	Status(ctx context.Context, userID string) (drive.Capability, error)
	Upload(ctx context.Context, userID string, selections []drive.Selection) (drive.UploadResponse, error)
}

// Orchestrator drives the batch through its stages. Each stage trigger runs
// in its own process; the store carries the batch between them.
type Orchestrator struct {
	store   *batch.Store
	labels  LabelService
	storage StorageService
	cfg     *config.Config
	logger  *slog.Logger
}

// New constructs an orchestrator. storage may be nil when no storage backend
// is configured; input mirroring is then skipped.
func New(store *batch.Store, labels LabelService, storage StorageService, cfg *config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		labels:  labels,
		storage: storage,
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Current returns the active batch.
func (o *Orchestrator) Current(ctx context.Context) (*batch.Batch, error) {
	return o.store.CurrentBatch(ctx)
}

// Cancel flags the active batch so no further stage triggers run. It is
// cooperative: a remote call already in flight in another process is not
// aborted and its response is still applied.
func (o *Orchestrator) Cancel(ctx context.Context) (*batch.Batch, error) {
	b, err := o.store.CurrentBatch(ctx)
	if err != nil {
		return nil, err
	}
	b.Cancelled = true
	if err := o.store.SaveBatch(ctx, b); err != nil {
		return nil, err
	}
	o.logger.Info("batch cancelled", logging.Int64(logging.FieldBatchID, b.ID))
	return b, nil
}

// Reset discards the active batch entirely.
func (o *Orchestrator) Reset(ctx context.Context) error {
	b, err := o.store.CurrentBatch(ctx)
	if err != nil {
		if errors.Is(err, batch.ErrNoBatch) {
			return nil
		}
		return err
	}
	if err := o.store.ResetBatch(ctx, b.ID); err != nil {
		return err
	}
	o.logger.Info("batch reset", logging.Int64(logging.FieldBatchID, b.ID))
	return nil
}
