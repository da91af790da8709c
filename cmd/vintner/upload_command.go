package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vintner/internal/config"
	"vintner/internal/pipeline"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <image>...",
		Short: "Upload label images into the current batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := expandImageArgs(args)
			if err != nil {
				return err
			}
			return ctx.withOrchestrator(func(cfg *config.Config, orch *pipeline.Orchestrator) error {
				b, err := orch.Upload(cmd.Context(), paths)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %d images into batch %d (%d total)\n", len(paths), b.ID, len(b.Items))
				rows := make([][]string, 0, len(b.Items))
				for _, item := range b.Items {
					rows = append(rows, []string{item.ID, item.OriginalFilename, statusLabel(item.Status)})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Filename", "Status"}, rows))
				return nil
			})
		},
	}
}

// expandImageArgs resolves globs and verifies every path points at a file.
func expandImageArgs(args []string) ([]string, error) {
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad file pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", match, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", match)
			}
			paths = append(paths, match)
		}
	}
	return paths, nil
}
