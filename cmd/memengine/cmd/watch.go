package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/watcher"
)

// watchAndReindex keeps index-code running, re-invoking run (a single
// scoped guard.Run-shaped reindex pass) whenever the watched directory
// changes, debounced by the hybrid watcher's coalescing window.
func watchAndReindex(cmd *cobra.Command, guard *policy.Guard, dir string, run func(ctx context.Context) error) error {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startErr := make(chan error, 1)
	go func() { startErr <- w.Start(ctx, dir) }()

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s for changes (ctrl-c to stop)\n", dir)

	if err := guard.Run(ctx, "index-code", []string{dir}, cmd.Flags().Args(), run); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-startErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			if len(batch) == 0 {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "detected %d change(s), reindexing\n", len(batch))
			if err := guard.Run(ctx, "index-code", []string{dir}, cmd.Flags().Args(), run); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "reindex error:", err)
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "watch error:", err)
		}
	}
}
