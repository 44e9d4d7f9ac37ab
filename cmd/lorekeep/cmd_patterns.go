package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "Report pattern freshness against the declared reference set",
		Long: `Compare the declared reference patterns (.lorekeep/patterns.yaml)
with the code patterns actually stored. Each name is classified as current
(declared and stored), new (declared but not yet learned), or missing
(stored but no longer declared). The check never writes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.checker.Check(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(report)
			}

			fmt.Println(report.Summary())
			for _, c := range report.New {
				fmt.Printf("  new:     %s\n", c.Name)
			}
			for _, c := range report.Missing {
				fmt.Printf("  missing: %s\n", c.Name)
			}
			return nil
		},
	}
}
