package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"edlstream/internal/buildqueue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the build queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List build jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []buildqueue.Status
			if statusFilter != "" {
				status, ok := buildqueue.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			jobs, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, jobs)
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				subject := job.EDLHash
				if subject == "" {
					subject = job.EditID
				}
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					string(job.Kind),
					subject,
					string(job.Status),
					strconv.Itoa(job.Attempts),
					job.CreatedAt.Local().Format(time.RFC3339),
					job.ErrorMessage,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "KIND", "SUBJECT", "STATUS", "ATTEMPTS", "CREATED", "ERROR"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (pending, building, ready, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed jobs (all failed jobs when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", arg)
				}
				ids = append(ids, id)
			}

			retried, err := store.RetryFailed(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retried %d job(s)\n", retried)
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs in terminal states",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			cleared, err := store.ClearTerminal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d job(s)\n", cleared)
			return nil
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show aggregated queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openQueue()
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, health)
			}
			rows := [][]string{{
				strconv.Itoa(health.Total),
				strconv.Itoa(health.Pending),
				strconv.Itoa(health.Building),
				strconv.Itoa(health.Ready),
				strconv.Itoa(health.Failed),
			}}
			fmt.Fprintln(out, renderTable(
				[]string{"TOTAL", "PENDING", "BUILDING", "READY", "FAILED"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON output")
	return cmd
}
