package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vintner/internal/batch"
	"vintner/internal/config"
	"vintner/internal/pipeline"
)

func newOcrCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ocr",
		Short: "Run OCR over the current batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, orch *pipeline.Orchestrator) error {
				b, err := orch.RunOCR(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				done, failed := countOutcomes(b, batch.StatusOcrDone)
				fmt.Fprintf(out, "OCR finished in %s: %d recognized, %d failed\n",
					time.Duration(b.OcrMs)*time.Millisecond, done, failed)
				return nil
			})
		},
	}
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compare",
		Short: "Match recognized labels against catalog candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, orch *pipeline.Orchestrator) error {
				b, err := orch.RunCompare(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				matched, review := 0, 0
				for _, item := range b.Items {
					if item.Status != batch.StatusFormatted {
						continue
					}
					if item.NeedsReview() {
						review++
					} else {
						matched++
					}
				}
				fmt.Fprintf(out, "Compare finished in %s: %d matched, %d need review\n",
					time.Duration(b.CompareMs)*time.Millisecond, matched, review)
				if review > 0 {
					fmt.Fprintln(out, "Run 'vintner status --needs-review' to inspect flagged items.")
				}
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Stop further stage triggers for the current batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, orch *pipeline.Orchestrator) error {
				b, err := orch.Cancel(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Batch %d cancelled; in-flight stages finish but no new stage will start.\n", b.ID)
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard the current batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset discards the current batch; re-run with --force to confirm")
			}
			return ctx.withOrchestrator(func(cfg *config.Config, orch *pipeline.Orchestrator) error {
				if err := orch.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Batch discarded.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm discarding the batch")
	return cmd
}

func countOutcomes(b *batch.Batch, done batch.Status) (int, int) {
	doneCount, failedCount := 0, 0
	for _, item := range b.Items {
		switch item.Status {
		case done:
			doneCount++
		case batch.StatusFailed:
			failedCount++
		}
	}
	return doneCount, failedCount
}
