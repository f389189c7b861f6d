// Package cmd is the contentpipe command surface: run-once, run-loop,
// reset, status, and gc, each a thin shell over internal/app.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shortforge/contentpipe/internal/app"
)

// Exit codes: 0 success, 2 configuration error, 3 unrecoverable runtime
// error, 130 terminated by signal.
const (
	exitOK      = 0
	exitConfig  = 2
	exitRuntime = 3
	exitSignal  = 130
)

var errTerminated = errors.New("terminated by signal")

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "contentpipe",
		Short:         "Autonomous short-form video production pipeline.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(
		newRunOnceCmd(),
		newRunLoopCmd(),
		newResetCmd(),
		newStatusCmd(),
		newGCCmd(),
	)
	return rootCmd
}

// Execute runs the root command and maps the outcome onto the documented
// exit codes.
func Execute() int {
	err := NewRootCmd().Execute()
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errTerminated):
		return exitSignal
	case errors.Is(err, errConfig):
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return exitConfig
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitRuntime
	}
}

var errConfig = errors.New("configuration")

// buildApp wraps app.New so every construction failure maps to the
// configuration exit code.
func buildApp() (*app.App, error) {
	a, err := app.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	return a, nil
}

// signalContext returns a context canceled by SIGINT/SIGTERM, and a func
// reporting whether a signal was the cause.
func signalContext(parent context.Context) (context.Context, context.CancelFunc, func() bool) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	signaled := false
	go func() {
		select {
		case <-sigCh:
			signaled = true
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel, func() bool { return signaled }
}
