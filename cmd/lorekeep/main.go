package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lorekeep",
		Short: "Lorekeep - a knowledge-store daemon that learns from your repository",
		Long: `lorekeep learns from commit history and reported error/solution pairs,
keeps the knowledge in an embedded store, and synchronizes it with an
external knowledge-graph file shared by other tools.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newLearnCmd(),
		newReportCmd(),
		newSolveCmd(),
		newOutcomeCmd(),
		newSyncCmd(),
		newPatternsCmd(),
		newStatsCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"version": version})
			} else {
				fmt.Printf("lorekeep version %s\n", version)
			}
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize lorekeep state in the project root",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			dir := filepath.Join(root, ".lorekeep")
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			patternsPath := filepath.Join(dir, "patterns.yaml")
			if _, err := os.Stat(patternsPath); os.IsNotExist(err) {
				seed := "# Declared reference patterns checked by 'lorekeep patterns'.\npatterns: []\n"
				if err := os.WriteFile(patternsPath, []byte(seed), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", patternsPath, err)
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(os.Stdout).Encode(map[string]string{"initialized": dir})
			} else {
				fmt.Printf("Initialized lorekeep in %s\n", dir)
			}
			return nil
		},
	}
}
