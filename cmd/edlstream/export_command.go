package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"edlstream/internal/edl"
	"edlstream/internal/services"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <cuts.json>",
		Short: "Render an edit decision list into a single flat file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outputPath) == "" {
				return services.Wrap(services.ErrValidation, "cli", "export", "missing --output path", nil)
			}
			list, err := edl.LoadFile(args[0])
			if err != nil {
				return err
			}
			renderer, err := ctx.renderer()
			if err != nil {
				return err
			}
			if err := renderer.Render(cmd.Context(), list, outputPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d cuts to %s\n", len(list), outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file for the export")
	return cmd
}
