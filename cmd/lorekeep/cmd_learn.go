package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newLearnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn [hash]",
		Short: "Learn knowledge from commits",
		Long: `Learn a single commit by hash, or a batch of recent commits.

Each commit's message is parsed for its type, module, and identity tag;
an embedded metadata block may declare an error/solution pair or a code
pattern, and the changed files are matched against the pattern battery.

Examples:
  lorekeep learn abc123
  lorekeep learn --recent 20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recent, _ := cmd.Flags().GetInt("recent")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if len(args) == 0 && recent == 0 {
				return fmt.Errorf("provide a commit hash or --recent N")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			if len(args) == 1 {
				rec, learned, err := a.learner.Learn(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return json.NewEncoder(os.Stdout).Encode(rec)
				}
				if learned {
					fmt.Printf("Learned commit %s", rec.Hash)
				} else {
					fmt.Printf("Commit %s was already known", rec.Hash)
				}
				if rec.Type != "" {
					fmt.Printf(" (%s", rec.Type)
					if rec.Module != "" {
						fmt.Printf(": %s", rec.Module)
					}
					fmt.Print(")")
				}
				fmt.Println()
				return nil
			}

			res, err := a.learner.LearnRecent(ctx, recent)
			if err != nil {
				return err
			}
			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("Learned %d commits (%d already known, %d failed)\n",
				res.Learned, res.Skipped, res.Failed)
			for _, e := range res.Errors {
				fmt.Printf("  failed: %s\n", e)
			}
			return nil
		},
	}

	cmd.Flags().Int("recent", 0, "Learn the N most recent commits")
	return cmd
}
