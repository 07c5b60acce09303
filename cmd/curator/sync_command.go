package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <root>",
		Short: "Scan a directory tree and bring the search index up to date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runner, cleanup, err := ctx.newRunner(signalCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := runner.Sync(signalCtx, args[0])
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Added", "Updated", "Removed", "Unchanged", "Degraded"},
				[][]string{{
					strconv.Itoa(result.Counts.Added),
					strconv.Itoa(result.Counts.Updated),
					strconv.Itoa(result.Counts.Removed),
					strconv.Itoa(result.Counts.Unchanged),
					strconv.Itoa(result.Degraded),
				}},
				1, 2, 3, 4, 5,
			))
			for _, scanErr := range result.ScanErrors {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: %s\n", scanErr.Error())
			}
			return nil
		},
	}
}
