package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lorekeep/lorekeep/internal/freshness"
	"github.com/lorekeep/lorekeep/internal/gitlearn"
	"github.com/lorekeep/lorekeep/internal/gitsource"
	"github.com/lorekeep/lorekeep/internal/graphsync"
	"github.com/lorekeep/lorekeep/internal/knowledge"
	"github.com/lorekeep/lorekeep/internal/solutions"
)

type fakeSource struct {
	commits map[string]gitsource.Commit
}

func (f *fakeSource) Commit(ctx context.Context, hash string) (*gitsource.Commit, error) {
	c, ok := f.commits[hash]
	if !ok {
		return nil, fmt.Errorf("commit %s not found", hash)
	}
	return &c, nil
}

func (f *fakeSource) Recent(ctx context.Context, n int) ([]gitsource.Commit, error) {
	var out []gitsource.Commit
	for _, c := range f.commits {
		if len(out) == n {
			break
		}
		out = append(out, c)
	}
	return out, nil
}

type staticPatterns struct {
	patterns []freshness.ReferencePattern
}

func (s *staticPatterns) Patterns(ctx context.Context) ([]freshness.ReferencePattern, error) {
	return s.patterns, nil
}

func newTestServer(t *testing.T, src *fakeSource) (*Server, *knowledge.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := knowledge.Open(filepath.Join(dir, "knowledge.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if src == nil {
		src = &fakeSource{commits: map[string]gitsource.Commit{}}
	}
	matcher := solutions.NewMatcher(store)
	deps := Deps{
		Store:    store,
		Matcher:  matcher,
		Learner:  gitlearn.NewLearner(store, src, logger),
		Checker:  freshness.NewChecker(store, &staticPatterns{}),
		Engine:   graphsync.NewEngine(store, filepath.Join(dir, "graph.jsonl"), filepath.Join(dir, "backups"), 5, logger),
		Logger:   logger,
		AuditDir: filepath.Join(dir, "audit"),
	}
	s := NewServer(Config{Name: "lorekeep-test", Version: "0.0.0"}, deps)
	t.Cleanup(func() { s.Close() })
	return s, store
}

func TestHandleLearnCommit(t *testing.T) {
	src := &fakeSource{commits: map[string]gitsource.Commit{
		"abc123": {
			Hash:         "abc123",
			Message:      "fix(auth): resolve token refresh [MOD]",
			Author:       "Dana Developer",
			Timestamp:    time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
			ChangedFiles: []string{"src/auth/token.ts"},
		},
	}}
	s, _ := newTestServer(t, src)
	ctx := context.Background()

	_, out, err := s.handleLearnCommit(ctx, nil, LearnCommitInput{Hash: "abc123"})
	if err != nil {
		t.Fatalf("handleLearnCommit returned error: %v", err)
	}
	if !out.Success || out.AlreadyKnown {
		t.Errorf("first learn: %+v", out)
	}
	if out.Commit == nil || out.Commit.Module != "auth" {
		t.Errorf("commit = %+v", out.Commit)
	}

	_, again, err := s.handleLearnCommit(ctx, nil, LearnCommitInput{Hash: "abc123"})
	if err != nil {
		t.Fatalf("second handleLearnCommit returned error: %v", err)
	}
	if !again.Success || !again.AlreadyKnown {
		t.Errorf("re-learn: %+v", again)
	}
}

func TestHandleLearnCommitValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	_, out, err := s.handleLearnCommit(context.Background(), nil, LearnCommitInput{})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if out.Success || out.Message == "" {
		t.Errorf("expected failure result with reason, got %+v", out)
	}
}

func TestHandleReportAndFind(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	_, reported, err := s.handleReportError(ctx, nil, ReportErrorInput{
		ErrorMessage: "custom pipeline stage failed: bad payload shape",
		Solution:     "validate payload before stage three",
	})
	if err != nil {
		t.Fatalf("handleReportError returned error: %v", err)
	}
	if !reported.Success || reported.SolutionID == 0 {
		t.Fatalf("report result: %+v", reported)
	}

	_, found, err := s.handleFindSolutions(ctx, nil, FindSolutionsInput{
		ErrorMessage: "custom pipeline stage failed: bad payload shape",
	})
	if err != nil {
		t.Fatalf("handleFindSolutions returned error: %v", err)
	}
	if !found.Success || found.Count != 1 {
		t.Fatalf("find result: %+v", found)
	}

	_, outcome, err := s.handleMarkOutcome(ctx, nil, MarkOutcomeInput{
		SolutionID: reported.SolutionID,
		Succeeded:  true,
	})
	if err != nil {
		t.Fatalf("handleMarkOutcome returned error: %v", err)
	}
	if !outcome.Success {
		t.Errorf("outcome result: %+v", outcome)
	}
}

func TestHandleFindSolutionsBuiltin(t *testing.T) {
	s, _ := newTestServer(t, nil)

	_, out, err := s.handleFindSolutions(context.Background(), nil, FindSolutionsInput{
		ErrorMessage: "Error: listen EADDRINUSE: address already in use :::3000",
	})
	if err != nil {
		t.Fatalf("handleFindSolutions returned error: %v", err)
	}
	if !out.Success || out.Suggestion == nil || out.Suggestion.Source != "builtin" {
		t.Errorf("expected builtin suggestion, got %+v", out)
	}
}

func TestHandleMarkOutcomeUnknownID(t *testing.T) {
	s, _ := newTestServer(t, nil)

	_, out, err := s.handleMarkOutcome(context.Background(), nil, MarkOutcomeInput{SolutionID: 9999, Succeeded: true})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if out.Success || out.Message == "" {
		t.Errorf("expected failure result with reason, got %+v", out)
	}
}

func TestHandleSyncModes(t *testing.T) {
	s, store := newTestServer(t, nil)
	ctx := context.Background()

	if _, err := store.Observe(ctx, "auth", "module", knowledge.Observation{Content: "fact"}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	_, full, err := s.handleSync(ctx, nil, SyncInput{Mode: "full"})
	if err != nil {
		t.Fatalf("handleSync returned error: %v", err)
	}
	if !full.Success || full.GraphSize != 1 {
		t.Errorf("full sync result: %+v", full)
	}

	_, inc, err := s.handleSync(ctx, nil, SyncInput{})
	if err != nil {
		t.Fatalf("handleSync returned error: %v", err)
	}
	if !inc.Success || inc.Kind != string(knowledge.SyncIncremental) {
		t.Errorf("default mode should be incremental: %+v", inc)
	}

	_, bad, err := s.handleSync(ctx, nil, SyncInput{Mode: "sideways"})
	if err != nil {
		t.Fatalf("handleSync returned error: %v", err)
	}
	if bad.Success {
		t.Errorf("unknown mode accepted: %+v", bad)
	}
}

func TestHandleStats(t *testing.T) {
	s, store := newTestServer(t, nil)
	ctx := context.Background()

	if _, err := store.Observe(ctx, "auth", "module", knowledge.Observation{Content: "fact"}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	_, out, err := s.handleStats(ctx, nil, StatsInput{})
	if err != nil {
		t.Fatalf("handleStats returned error: %v", err)
	}
	if !out.Success || out.Stats == nil || out.Stats.Entities != 1 {
		t.Errorf("stats result: %+v", out)
	}
}

func TestHandlePatternStatus(t *testing.T) {
	s, store := newTestServer(t, nil)
	ctx := context.Background()

	if _, err := store.UpsertCodePattern(ctx, knowledge.CodePattern{Name: "session-guard"}); err != nil {
		t.Fatalf("UpsertCodePattern failed: %v", err)
	}

	_, out, err := s.handlePatternStatus(ctx, nil, PatternStatusInput{})
	if err != nil {
		t.Fatalf("handlePatternStatus returned error: %v", err)
	}
	if !out.Success {
		t.Fatalf("pattern status result: %+v", out)
	}
	if len(out.Missing) != 1 || out.Missing[0].Name != "session-guard" {
		t.Errorf("missing = %v", out.Missing)
	}
}
