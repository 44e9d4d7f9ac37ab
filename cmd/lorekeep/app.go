package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/freshness"
	"github.com/lorekeep/lorekeep/internal/gitlearn"
	"github.com/lorekeep/lorekeep/internal/gitsource"
	"github.com/lorekeep/lorekeep/internal/graphsync"
	"github.com/lorekeep/lorekeep/internal/knowledge"
	"github.com/lorekeep/lorekeep/internal/logging"
	"github.com/lorekeep/lorekeep/internal/solutions"
)

// app bundles the daemon's components, wired from configuration. Commands
// open it, use what they need, and close it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *knowledge.Store
	matcher *solutions.Matcher
	learner *gitlearn.Learner
	checker *freshness.Checker
	engine  *graphsync.Engine
}

func openApp(cmd *cobra.Command) (*app, error) {
	root, _ := cmd.Flags().GetString("root")

	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	store, err := knowledge.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}

	source := gitsource.New(root)
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		matcher: solutions.NewMatcher(store),
		learner: gitlearn.NewLearner(store, source, logger),
		checker: freshness.NewChecker(store, freshness.NewFileSource(cfg.Patterns.ReferencePath)),
		engine:  graphsync.NewEngine(store, cfg.Graph.Path, cfg.Graph.BackupDir, cfg.Graph.KeepBackups, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}
