package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/mcp"
	"github.com/lorekeep/lorekeep/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the knowledge daemon as an MCP server over stdio",
		Long: `Serve the lorekeep tools over the Model Context Protocol.

A background scheduler runs periodic incremental syncs and an occasional
full sync while the server is up; shutdown attempts one final full sync.
Disable the scheduler with --no-scheduler when another process owns the
graph file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			noScheduler, _ := cmd.Flags().GetBool("no-scheduler")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			server := mcp.NewServer(mcp.Config{
				Name:    "lorekeep",
				Version: version,
			}, mcp.Deps{
				Store:    a.store,
				Matcher:  a.matcher,
				Learner:  a.learner,
				Checker:  a.checker,
				Engine:   a.engine,
				Logger:   a.logger,
				AuditDir: filepath.Join(root, ".lorekeep"),
			})

			if !noScheduler {
				sched := scheduler.New(a.engine, scheduler.Config{
					IncrementalInterval: a.cfg.Sync.IncrementalInterval,
					FullInterval:        a.cfg.Sync.FullInterval,
					FailureThreshold:    a.cfg.Sync.FailureThreshold,
					RecoveryDelay:       a.cfg.Sync.RecoveryDelay,
					ShutdownTimeout:     a.cfg.Sync.ShutdownTimeout,
				}, a.logger)
				sched.Start()
				defer sched.Stop()
			}

			a.logger.Info("lorekeep serving", "version", version, "store", a.cfg.Store.Path)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().Bool("no-scheduler", false, "Disable the background sync scheduler")
	return cmd
}
