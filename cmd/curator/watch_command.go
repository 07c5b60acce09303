package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/logging"
	"curator/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <root>",
		Short: "Keep the index synced as the directory tree changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			runner, cleanup, err := ctx.newRunner(signalCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			root := args[0]
			sync := func(runCtx context.Context) error {
				result, err := runner.Sync(runCtx, root)
				if err != nil {
					return err
				}
				logger.Info("sync complete",
					logging.String(logging.FieldComponent, "watch"),
					logging.Int("added", result.Counts.Added),
					logging.Int("updated", result.Counts.Updated),
					logging.Int("removed", result.Counts.Removed),
					logging.Int("degraded", result.Degraded))
				return nil
			}

			// One full pass before watching so the index starts current.
			if err := sync(signalCtx); err != nil {
				return err
			}

			debounce := time.Duration(cfg.Workflow.DebounceSeconds) * time.Second
			w, err := watcher.New(root, debounce, logger)
			if err != nil {
				return err
			}
			if err := w.Run(signalCtx, sync); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
