package pipeline

import (
	"context"
	"fmt"
	"time"

	"vintner/internal/batch"
	"vintner/internal/logging"
	"vintner/internal/services"
	"vintner/internal/services/drive"
)

// SelectOption records an operator's choice for one item and clears its
// review flag. The option does not have to be one of the proposed matches;
// a hand-typed correction is equally valid.
func (o *Orchestrator) SelectOption(ctx context.Context, itemID, option string) (*batch.Item, error) {
	if option == "" || option == batch.SelectedNHR {
		return nil, services.Wrap(services.ErrValidation, "correction", "select", "a non-empty option is required", nil)
	}

	b, err := o.store.CurrentBatch(ctx)
	if err != nil {
		return nil, err
	}
	item := b.ItemByID(itemID)
	if item == nil {
		return nil, fmt.Errorf("item %s not found in batch %d", itemID, b.ID)
	}
	if item.Result == nil {
		return nil, services.Wrap(services.ErrValidation, "correction", "select", "item has no match results yet", nil)
	}

	item.Result.SelectedOption = option
	item.Result.FinalOutput = option
	item.Result.NeedsReview = false
	item.Result.CorrectionStatus = batch.CorrectionApproved
	item.UpdatedAt = time.Now().UTC()

	if err := o.store.SaveBatch(ctx, b); err != nil {
		return nil, err
	}
	o.logger.Info("option selected",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("selected", option))
	return item, nil
}

// Reject marks one item as needing human review with the given reason. An
// empty reason defaults to manual_rejection. Reasons are validated locally
// against the set the storage backend accepts.
func (o *Orchestrator) Reject(ctx context.Context, itemID, reason string) (*batch.Item, error) {
	if reason == "" {
		reason = string(batch.CorrectionManualRejection)
	}
	if _, ok := drive.NHRReasons[reason]; !ok {
		return nil, services.Wrap(services.ErrValidation, "correction", "reject",
			fmt.Sprintf("unknown rejection reason %q", reason), nil)
	}

	b, err := o.store.CurrentBatch(ctx)
	if err != nil {
		return nil, err
	}
	item := b.ItemByID(itemID)
	if item == nil {
		return nil, fmt.Errorf("item %s not found in batch %d", itemID, b.ID)
	}
	if item.Result == nil {
		item.Result = &batch.Result{}
	}

	item.Result.SelectedOption = batch.SelectedNHR
	item.Result.FinalOutput = ""
	item.Result.NeedsReview = true
	item.Result.CorrectionStatus = batch.CorrectionStatus(reason)
	item.UpdatedAt = time.Now().UTC()

	if err := o.store.SaveBatch(ctx, b); err != nil {
		return nil, err
	}
	o.logger.Info("item rejected",
		logging.String(logging.FieldItemID, item.ID),
		logging.String("reason", reason))
	return item, nil
}
