package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shortforge/contentpipe/internal/domain"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <item_id>",
		Short: "Re-enter a failed or stuck item at its last successfully completed state.",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Reset(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "item %s reset\n", args[0])
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print per-state item counts and the circuit-breaker snapshot.",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.Status(context.Background())
			if err != nil {
				return err
			}
			states := make([]string, 0, len(report.StateCounts))
			for s := range report.StateCounts {
				states = append(states, string(s))
			}
			sort.Strings(states)
			for _, s := range states {
				fmt.Fprintf(c.OutOrStdout(), "%-28s %d\n", s, report.StateCounts[domain.State(s)])
			}
			if len(report.Health.CircuitStates) > 0 {
				fmt.Fprintln(c.OutOrStdout(), "circuit breakers:")
				keys := make([]string, 0, len(report.Health.CircuitStates))
				for k := range report.Health.CircuitStates {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(c.OutOrStdout(), "  %-32s %s\n", k, report.Health.CircuitStates[k])
				}
			}
			return nil
		},
	}
}

func newGCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Sweep artifacts of terminal items past the retention window.",
		RunE: func(c *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.Close()
			a.Supervisor.RunGC(context.Background())
			return nil
		},
	}
}
