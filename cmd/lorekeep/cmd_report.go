package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/knowledge"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Store an error/solution pair",
		Long: `Record a solved error so the same error can be matched later.

Example:
  lorekeep report --error "connect ECONNREFUSED 127.0.0.1:5432" \
    --solution "start the postgres container" --type infra`,
		RunE: func(cmd *cobra.Command, args []string) error {
			errorMessage, _ := cmd.Flags().GetString("error")
			errorType, _ := cmd.Flags().GetString("type")
			solution, _ := cmd.Flags().GetString("solution")
			code, _ := cmd.Flags().GetString("code")
			files, _ := cmd.Flags().GetStringSlice("file")
			steps, _ := cmd.Flags().GetStringSlice("step")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			jsonOut, _ := cmd.Flags().GetBool("json")

			if errorMessage == "" {
				return fmt.Errorf("--error is required")
			}
			if solution == "" {
				return fmt.Errorf("--solution is required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.matcher.Report(cmd.Context(), knowledge.ErrorSolution{
				ErrorMessage:        errorMessage,
				ErrorType:           errorType,
				SolutionDescription: solution,
				SolutionCode:        code,
				SolutionFiles:       files,
				SolutionSteps:       steps,
				Tags:                tags,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]int64{"solution_id": id})
			}
			fmt.Printf("Stored solution %d\n", id)
			return nil
		},
	}

	cmd.Flags().String("error", "", "The raw error message (required)")
	cmd.Flags().String("type", "", "Coarse error classification")
	cmd.Flags().String("solution", "", "What fixed the error (required)")
	cmd.Flags().String("code", "", "Code snippet of the fix")
	cmd.Flags().StringSlice("file", nil, "File touched by the fix (repeatable)")
	cmd.Flags().StringSlice("step", nil, "Ordered fix step (repeatable)")
	cmd.Flags().StringSlice("tag", nil, "Free-form tag (repeatable)")
	return cmd
}
