package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the label backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := ctx.labelClient(cfg).Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("backend %s unreachable: %w", cfg.API.BaseURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backend %s is up: %s\n", cfg.API.BaseURL, status)
			return nil
		},
	}
}

func newRefreshCacheCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-cache",
		Short: "Rebuild the backend's catalog cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			message, err := ctx.catalogClient(cfg).RefreshCache(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}
