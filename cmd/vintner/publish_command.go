package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vintner/internal/config"
	"vintner/internal/publish"
	"vintner/internal/services"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Push corrected items to storage and catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDispatcher(func(cfg *config.Config, dispatcher *publish.Dispatcher) error {
				progress, err := dispatcher.Run(cmd.Context())
				out := cmd.OutOrStdout()
				if err != nil {
					if errors.Is(err, services.ErrPartialBatch) {
						fmt.Fprintf(out, "Published %d of %d items before the failure; published items stay published.\n",
							progress.Done, progress.Total)
						fmt.Fprintln(out, "Fix the cause and run 'vintner publish' again for the rest.")
					}
					return err
				}
				fmt.Fprintf(out, "Published %d of %d items.\n", progress.Done, progress.Total)
				return nil
			})
		},
	}
}
