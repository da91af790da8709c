package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDriveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drive",
		Short: "Check whether the storage account is linked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if cfg.Drive.UserID == "" {
				fmt.Fprintln(out, "No drive.user_id configured; storage publishing is disabled.")
				return nil
			}

			capability, err := ctx.driveClient(cfg).Status(cmd.Context(), cfg.Drive.UserID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "User: %s\n", cfg.Drive.UserID)
			fmt.Fprintf(out, "Linked: %s\n", yesNo(capability.Linked))
			if capability.Structure != nil {
				fmt.Fprintf(out, "Folders: root=%s input=%s output=%s\n",
					capability.Structure.Root, capability.Structure.Input, capability.Structure.Output)
			}
			fmt.Fprintf(out, "Mirror uploads: %s\n", yesNo(cfg.Drive.MirrorUploads))
			return nil
		},
	}
}
