package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vintner/internal/batch"
	"vintner/internal/config"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var needsReview bool
	var search string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current batch and its items",
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
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				renderBatchSummary(out, b)

				items := batch.Project(b.Items, criteria)
				if len(items) == 0 {
					fmt.Fprintln(out, "No items match.")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, statusRow(item, colorize))
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Filename", "Status", "Result", "Confidence", "Flags"},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show items with this status ("+knownStatusList()+")")
	cmd.Flags().BoolVar(&needsReview, "needs-review", false, "Only show items flagged (or not flagged) for review")
	cmd.Flags().StringVar(&search, "search", "", "Only show items whose filename, OCR text, or result contains this text")
	return cmd
}

func statusRow(item *batch.Item, colorize bool) []string {
	result := ""
	confidence := ""
	if item.Result != nil {
		result = item.Result.FinalOutput
		if result == "" {
			result = item.Result.SelectedOption
		}
		if item.Result.MatchConfidence != nil {
			confidence = fmt.Sprintf("%.2f", *item.Result.MatchConfidence)
		}
	}
	if item.Status == batch.StatusFailed && item.ErrorMessage != "" {
		result = item.ErrorMessage
	}
	return []string{
		item.ID,
		item.OriginalFilename,
		colorizeStatus(item.Status, colorize),
		result,
		confidence,
		reviewLabel(item, colorize),
	}
}

func knownStatusList() string {
	statuses := batch.AllStatuses()
	labels := make([]string, 0, len(statuses))
	for _, status := range statuses {
		labels = append(labels, string(status))
	}
	return strings.Join(labels, ", ")
}
