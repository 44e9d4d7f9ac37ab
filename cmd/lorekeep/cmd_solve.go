package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/solutions"
)

func newSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Find candidate solutions for an error",
		Long: `Match an error message against stored solutions, ranked by match
quality and past success. Well-known error signatures get built-in advice
even when the store is empty.

Example:
  lorekeep solve --error "Cannot read properties of null (reading 'id')"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			errorMessage, _ := cmd.Flags().GetString("error")
			errorType, _ := cmd.Flags().GetString("type")
			filePath, _ := cmd.Flags().GetString("file")
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if errorMessage == "" {
				return fmt.Errorf("--error is required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			suggestion, err := a.matcher.AutoSuggest(ctx, errorMessage)
			if err != nil {
				return err
			}

			matches := suggestion.Matches
			if suggestion.Source == "builtin" {
				matches, err = a.matcher.FindSolutions(ctx, solutions.Query{
					ErrorMessage: errorMessage,
					ErrorType:    errorType,
					FilePath:     filePath,
					Limit:        limit,
				})
				if err != nil {
					return err
				}
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"suggestion": suggestion,
					"matches":    matches,
				})
			}

			if suggestion.Source == "builtin" {
				fmt.Printf("Known error signature (%s): %s\n", suggestion.ErrorType, suggestion.Advice)
				for i, step := range suggestion.Steps {
					fmt.Printf("  %d. %s\n", i+1, step)
				}
				fmt.Println()
			}
			if len(matches) == 0 {
				fmt.Println("No stored solutions match.")
				return nil
			}
			fmt.Printf("%d candidate solutions:\n", len(matches))
			for _, m := range matches {
				fmt.Printf("  [%d] %s (score %.2f, %d/%d outcomes)\n",
					m.Solution.ID, m.Solution.SolutionDescription, m.Score,
					m.Solution.SuccessCount, m.Solution.SuccessCount+m.Solution.FailCount)
			}
			return nil
		},
	}

	cmd.Flags().String("error", "", "The raw error message (required)")
	cmd.Flags().String("type", "", "Restrict candidates to this error type")
	cmd.Flags().String("file", "", "File where the error occurred")
	cmd.Flags().Int("limit", 0, "Maximum candidates to return (default 5)")
	return cmd
}

func newOutcomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcome <solution-id>",
		Short: "Record whether a suggested solution worked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid solution id %q", args[0])
			}
			failed, _ := cmd.Flags().GetBool("failed")
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.matcher.RecordOutcome(cmd.Context(), id, !failed); err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{"solution_id": id, "succeeded": !failed})
			}
			if failed {
				fmt.Printf("Recorded failure for solution %d\n", id)
			} else {
				fmt.Printf("Recorded success for solution %d\n", id)
			}
			return nil
		},
	}

	cmd.Flags().Bool("failed", false, "The solution did not work")
	return cmd
}
