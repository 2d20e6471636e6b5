package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fwbench/internal/store"
)

var cleanupKeep int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Prune old runs from the results store",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.New(cfg.ResultsDir)
		if err != nil {
			return err
		}
		keep := cleanupKeep
		if keep <= 0 {
			keep = cfg.KeepRuns
		}
		before, err := st.ListRunIDs()
		if err != nil {
			return err
		}
		if err := st.CleanupOlderThan(keep, ""); err != nil {
			return err
		}
		after, err := st.ListRunIDs()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d run(s), kept %d.\n", len(before)-len(after), len(after))
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupKeep, "keep-last", 0, "runs to keep (default: config keep_runs)")
}
