package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"edlstream/internal/daemon"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the build daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, ctx.logger())
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := d.Close(); closeErr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "daemon close: %v\n", closeErr)
				}
			}()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return d.Run(runCtx)
		},
	}
}
