package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"edlstream/internal/artifacts"
	"edlstream/internal/edl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <cuts.json|hash>",
		Short: "Show the unified build status for an edit decision list or hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.artifactStore()
			if err != nil {
				return err
			}

			hash := args[0]
			if looksLikeCutsFile(hash) {
				list, err := edl.LoadFile(hash)
				if err != nil {
					return err
				}
				hash = list.Hash()
			}

			record, err := store.Status(hash)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, record)
			}

			rows := [][]string{{hash, string(record.Status), record.Error}}
			fmt.Fprintln(out, renderTable(
				[]string{"HASH", "STATUS", "ERROR"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if record.Status == artifacts.StatusReady {
				fmt.Fprintf(out, "Manifest: %s\n", store.ManifestPath(hash))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

// looksLikeCutsFile treats anything that is not a 40-char hex string as a
// cuts file path.
func looksLikeCutsFile(value string) bool {
	if len(value) != 40 {
		return true
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return true
		}
	}
	return false
}
