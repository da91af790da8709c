package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vintner/internal/batch"
	"vintner/internal/config"
	"vintner/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var statusFlag string
	var needsReview bool
	var search string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the current batch results to a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := batch.FilterCriteria{Search: search}
			if statusFlag != "" {
				parsed, ok := batch.ParseStatus(statusFlag)
				if !ok {
					return fmt.Errorf("unknown status %q (known: %s)", statusFlag, knownStatusList())
				}
				criteria.Status = parsed
			}
			if cmd.Flags().Changed("needs-review") {
				criteria.NeedsReview = &needsReview
			}

			return ctx.withStore(func(cfg *config.Config, store *batch.Store) error {
				b, err := store.CurrentBatch(cmd.Context())
				if err != nil {
					return err
				}
				items := batch.Project(b.Items, criteria)

				target := outPath
				if target == "" {
					name := fmt.Sprintf("batch-%d-%s.csv", b.ID, time.Now().UTC().Format("20060102-150405"))
					target = filepath.Join(cfg.Paths.ExportDir, name)
				}
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer file.Close()

				if err := export.Write(file, items); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", len(items), target)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (defaults into the export directory)")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Only export items with this status")
	cmd.Flags().BoolVar(&needsReview, "needs-review", false, "Only export items flagged (or not flagged) for review")
	cmd.Flags().StringVar(&search, "search", "", "Only export items matching this text")
	return cmd
}
