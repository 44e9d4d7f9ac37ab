package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store row counts and the most recent sync pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			stats, err := a.store.GetStats(ctx)
			if err != nil {
				return err
			}
			log, err := a.store.ListSyncLog(ctx, 1)
			if err != nil {
				return err
			}

			if jsonOut {
				out := map[string]any{"stats": stats}
				if len(log) > 0 {
					out["last_sync"] = log[0]
				}
				return json.NewEncoder(os.Stdout).Encode(out)
			}

			fmt.Printf("entities:        %d\n", stats.Entities)
			fmt.Printf("observations:    %d\n", stats.Observations)
			fmt.Printf("relations:       %d\n", stats.Relations)
			fmt.Printf("error solutions: %d\n", stats.ErrorSolutions)
			fmt.Printf("commits:         %d\n", stats.Commits)
			fmt.Printf("code patterns:   %d\n", stats.CodePatterns)
			fmt.Printf("sync passes:     %d\n", stats.SyncPasses)
			if len(log) > 0 {
				last := log[0]
				fmt.Printf("last sync:       %s %s (%s) at %s\n",
					last.Kind, last.Direction, last.Status, last.SyncedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
