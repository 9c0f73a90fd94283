package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildAgent(ctx, cfg, registry)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.engine.ForceSync(ctx)
		if result != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "pushed:    %d\n", result.Pushed)
			fmt.Fprintf(cmd.OutOrStdout(), "pulled:    %d\n", result.Pulled)
			fmt.Fprintf(cmd.OutOrStdout(), "conflicts: %d\n", result.Conflicts)
			fmt.Fprintf(cmd.OutOrStdout(), "duration:  %s\n", result.Duration)
			if len(result.Failed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "failed:    %v\n", result.Failed)
			}
		}

		snapshot := a.metrics.Snapshot()
		names := make([]string, 0, len(snapshot))
		for name := range snapshot {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "\ncounters:")
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %d\n", name, snapshot[name])
			}
		}
		return err
	},
}
