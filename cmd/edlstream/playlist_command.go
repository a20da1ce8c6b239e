package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"edlstream/internal/buildqueue"
	"edlstream/internal/percut"
	"edlstream/internal/services"
	"edlstream/internal/workflow"
)

func loadDecisions(path string) ([]percut.Decision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "cli", "playlist", "read decisions file", err)
	}
	var decisions []struct {
		ID     string  `json:"id"`
		Source string  `json:"source"`
		Start  float64 `json:"start"`
		End    float64 `json:"end"`
	}
	if err := json.Unmarshal(data, &decisions); err != nil {
		return nil, services.Wrap(services.ErrValidation, "cli", "playlist", "parse decisions file", err)
	}
	converted := make([]percut.Decision, 0, len(decisions))
	for _, d := range decisions {
		converted = append(converted, percut.Decision{
			ID:         d.ID,
			SourcePath: d.Source,
			Start:      d.Start,
			End:        d.End,
		})
	}
	return converted, nil
}

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	var sync bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "playlist <edit-id> <decisions.json>",
		Short: "Build per-decision fragments and assemble the edit playlist",
		Long: `Playlist reads a JSON decisions file (an array of
{id, source, start, end} objects) and ensures each decision's CMAF
fragment set is current before assembling the VOD playlist. Unchanged
decisions are reused from the cache.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			editID := args[0]
			decisions, err := loadDecisions(args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if sync {
				builder, err := ctx.percutBuilder()
				if err != nil {
					return err
				}
				report, err := builder.BuildEdit(cmd.Context(), editID, decisions)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, map[string]any{
						"playlist": builder.PlaylistPath(editID),
						"rebuilt":  report.Rebuilt,
						"cached":   report.Cached,
					})
				}
				fmt.Fprintf(out, "Playlist: %s (%d rebuilt, %d cached)\n",
					builder.PlaylistPath(editID), report.Rebuilt, report.Cached)
				return nil
			}

			store, err := ctx.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			payload, err := json.Marshal(workflow.PlaylistPayload{Decisions: decisions})
			if err != nil {
				return fmt.Errorf("encode playlist payload: %w", err)
			}
			job, err := store.Enqueue(cmd.Context(), buildqueue.EnqueueRequest{
				Kind:     buildqueue.KindPlaylist,
				EditID:   editID,
				CutsJSON: string(payload),
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, map[string]string{
					"job_key": job.JobKey,
					"edit_id": job.EditID,
					"status":  string(job.Status),
				})
			}
			fmt.Fprintf(out, "Enqueued job %s for edit %s (status %s)\n", job.JobKey, job.EditID, job.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Build in-process instead of enqueueing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
