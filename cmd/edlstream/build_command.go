package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"edlstream/internal/buildqueue"
	"edlstream/internal/edl"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var sync bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "build <cuts.json>",
		Short: "Build the unified stream for an edit decision list",
		Long: `Build reads a JSON cuts file (an ordered array of
{source_ref?, source, start, end} objects) and produces the
content-addressed unified HLS asset. By default the request is enqueued
for the daemon; --sync builds in-process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := edl.LoadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if sync {
				builder, err := ctx.unifiedBuilder()
				if err != nil {
					return err
				}
				result, err := builder.Build(cmd.Context(), list)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, result)
				}
				if result.CacheHit {
					fmt.Fprintf(out, "Cache hit: %s\n", result.Hash)
				} else {
					fmt.Fprintf(out, "Built: %s\n", result.Hash)
				}
				fmt.Fprintf(out, "Manifest: %s\n", result.Manifest)
				return nil
			}

			store, err := ctx.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			cuts, err := json.Marshal(list)
			if err != nil {
				return fmt.Errorf("encode cuts payload: %w", err)
			}
			job, err := store.Enqueue(cmd.Context(), buildqueue.EnqueueRequest{
				Kind:     buildqueue.KindUnified,
				EDLHash:  list.Hash(),
				CutsJSON: string(cuts),
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, map[string]string{
					"job_key":  job.JobKey,
					"edl_hash": job.EDLHash,
					"status":   string(job.Status),
				})
			}
			fmt.Fprintf(out, "Enqueued job %s for hash %s (status %s)\n", job.JobKey, job.EDLHash, job.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&sync, "sync", false, "Build in-process instead of enqueueing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
