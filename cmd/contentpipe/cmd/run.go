package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func newRunOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run one discovery pass and drain every eligible stage execution, then exit.",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel, wasSignaled := signalContext(context.Background())
			defer cancel()

			if err := a.Supervisor.RunOnce(ctx); err != nil {
				if wasSignaled() || errors.Is(err, context.Canceled) {
					return errTerminated
				}
				return err
			}
			return nil
		},
	}
}

func newRunLoopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-loop",
		Short: "Run the continuous tick loop: discovery, dispatch, and GC until signaled.",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel, wasSignaled := signalContext(context.Background())
			defer cancel()

			if err := a.Supervisor.Run(ctx); err != nil {
				return err
			}
			if wasSignaled() {
				return errTerminated
			}
			return nil
		},
	}
}
