package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vintner/internal/config"
	"vintner/internal/pipeline"
	"vintner/internal/services/drive"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "select <item-id> <option>",
		Short: "Pick the correct match for an item",
		Long: "Pick the correct match for an item. The option can be one of the\n" +
			"proposed candidates or a hand-typed name.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, orch *pipeline.Orchestrator) error {
				item, err := orch.SelectOption(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected %q for %s\n", item.Result.SelectedOption, item.OriginalFilename)
				return nil
			})
		},
	}
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <item-id>",
		Short: "Flag an item for human review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, orch *pipeline.Orchestrator) error {
				item, err := orch.Reject(cmd.Context(), args[0], reason)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Flagged %s for review (%s)\n",
					item.OriginalFilename, item.Result.CorrectionStatus)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Rejection reason: "+strings.Join(knownReasons(), ", "))
	return cmd
}

func knownReasons() []string {
	reasons := make([]string, 0, len(drive.NHRReasons))
	for reason := range drive.NHRReasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}
