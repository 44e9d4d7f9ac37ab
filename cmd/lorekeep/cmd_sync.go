package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/graphsync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [full|incremental|bidirectional|import]",
		Short: "Run a sync pass against the external knowledge graph",
		Long: `Reconcile the knowledge store with the external graph file.

Modes:
  incremental   merge changes since the last successful pass (default)
  full          back up the graph file and re-derive it from the store
  bidirectional import the graph first, then export everything back out
  import        read the graph file into the store`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"full", "incremental", "bidirectional", "import"},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := "incremental"
			if len(args) == 1 {
				mode = args[0]
			}
			jsonOut, _ := cmd.Flags().GetBool("json")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			var res *graphsync.Result
			switch mode {
			case "incremental":
				res, err = a.engine.IncrementalExport(ctx)
			case "full":
				res, err = a.engine.FullExport(ctx)
			case "bidirectional":
				res, err = a.engine.Bidirectional(ctx)
			case "import":
				res, err = a.engine.Import(ctx)
			default:
				return fmt.Errorf("unknown sync mode %q", mode)
			}
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("%s %s sync complete in %s, graph holds %d records\n",
				res.Kind, res.Direction, res.Duration.Round(time.Millisecond), res.GraphSize)
			for category, n := range res.Counts {
				fmt.Printf("  %s: %d\n", category, n)
			}
			return nil
		},
	}
	return cmd
}
