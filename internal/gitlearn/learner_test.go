package gitlearn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lorekeep/lorekeep/internal/gitsource"
	"github.com/lorekeep/lorekeep/internal/knowledge"
)

// fakeSource serves commits from memory.
type fakeSource struct {
	commits map[string]gitsource.Commit
	order   []string
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
	for _, h := range f.order {
		if len(out) == n {
			break
		}
		out = append(out, f.commits[h])
	}
	return out, nil
}

func newTestLearner(t *testing.T, src *fakeSource) (*Learner, *knowledge.Store) {
	t.Helper()
	store, err := knowledge.Open(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLearner(store, src, logger), store
}

func commitFixture(hash, message string, files ...string) gitsource.Commit {
	return gitsource.Commit{
		Hash:         hash,
		Message:      message,
		Author:       "Dana Developer",
		Timestamp:    time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		ChangedFiles: files,
		Insertions:   10,
		Deletions:    2,
	}
}

func TestLearnStoresParsedCommit(t *testing.T) {
	src := &fakeSource{commits: map[string]gitsource.Commit{
		"abc123": commitFixture("abc123", "fix(auth): resolve token refresh [MOD]", "src/auth/token.ts"),
	}}
	l, _ := newTestLearner(t, src)
	ctx := context.Background()

	rec, learned, err := l.Learn(ctx, "abc123")
	if err != nil {
		t.Fatalf("Learn failed: %v", err)
	}
	if !learned {
		t.Error("expected learned=true on first learn")
	}
	if rec.Type != "fix" || rec.Module != "auth" || rec.Identity != "MOD" {
		t.Errorf("parsed fields = type=%q module=%q identity=%q", rec.Type, rec.Module, rec.Identity)
	}
	if rec.HasMetadataBlock {
		t.Error("expected HasMetadataBlock=false")
	}
}

func TestLearnIdempotent(t *testing.T) {
	msg := "fix(api): guard nil user\n\n" +
		"--- lorekeep ---\n" +
		"error: cannot read properties of null (reading 'id')\n" +
		"solution: check the session before dereferencing user\n" +
		"pattern: session-guard\n" +
		"--- end ---\n"
	src := &fakeSource{commits: map[string]gitsource.Commit{
		"abc123": commitFixture("abc123", msg, "src/api/session.ts"),
	}}
	l, store := newTestLearner(t, src)
	ctx := context.Background()

	first, learned, err := l.Learn(ctx, "abc123")
	if err != nil {
		t.Fatalf("first Learn failed: %v", err)
	}
	if !learned {
		t.Fatal("expected learned=true on first learn")
	}
	if !first.HasMetadataBlock {
		t.Error("expected metadata block to be recorded")
	}

	second, learned, err := l.Learn(ctx, "abc123")
	if err != nil {
		t.Fatalf("second Learn failed: %v", err)
	}
	if learned {
		t.Error("expected learned=false on re-learn")
	}
	if second.Hash != first.Hash || second.Type != first.Type {
		t.Errorf("re-learn returned a different record: %+v vs %+v", second, first)
	}

	sols, err := store.ListErrorSolutions(ctx)
	if err != nil {
		t.Fatalf("ListErrorSolutions failed: %v", err)
	}
	if len(sols) != 1 {
		t.Errorf("expected 1 error solution, got %d", len(sols))
	}
	pats, err := store.ListCodePatterns(ctx)
	if err != nil {
		t.Fatalf("ListCodePatterns failed: %v", err)
	}
	if len(pats) != 1 {
		t.Errorf("expected 1 code pattern, got %d", len(pats))
	}
}

func TestLearnMetadataDerivedRecords(t *testing.T) {
	msg := "feat(upload): stream large files\n\n" +
		"--- lorekeep ---\n" +
		"error: request entity too large on upload\n" +
		"error-type: http\n" +
		"solution: stream the body instead of buffering it\n" +
		"pattern: streaming-upload\n" +
		"pattern-type: implementation\n" +
		"category: backend\n" +
		"description: chunked uploads keep memory flat\n" +
		"tags: upload, streaming\n" +
		"--- end ---\n"
	src := &fakeSource{commits: map[string]gitsource.Commit{
		"def456": commitFixture("def456", msg, "src/api/upload.ts"),
	}}
	l, store := newTestLearner(t, src)
	ctx := context.Background()

	if _, _, err := l.Learn(ctx, "def456"); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}

	sols, err := store.ListErrorSolutions(ctx)
	if err != nil {
		t.Fatalf("ListErrorSolutions failed: %v", err)
	}
	if len(sols) != 1 {
		t.Fatalf("expected 1 error solution, got %d", len(sols))
	}
	sol := sols[0]
	if sol.ErrorType != "http" || sol.CommitHash != "def456" || sol.RelatedPattern != "streaming-upload" {
		t.Errorf("unexpected solution fields: %+v", sol)
	}
	if sol.ErrorPattern != "request entity too large on upload" {
		t.Errorf("pattern = %q", sol.ErrorPattern)
	}

	pat, err := store.GetCodePattern(ctx, "streaming-upload")
	if err != nil {
		t.Fatalf("GetCodePattern failed: %v", err)
	}
	if pat == nil {
		t.Fatal("pattern not stored")
	}
	if pat.PatternType != "implementation" || pat.Category != "backend" || pat.UsageCount != 1 {
		t.Errorf("unexpected pattern fields: %+v", pat)
	}
}

func TestLearnUnknownHashWritesNothing(t *testing.T) {
	src := &fakeSource{commits: map[string]gitsource.Commit{}}
	l, store := newTestLearner(t, src)
	ctx := context.Background()

	if _, _, err := l.Learn(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown hash")
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Commits != 0 {
		t.Errorf("expected no stored commits, got %d", stats.Commits)
	}
}

func TestLearnCreatesPatternRelations(t *testing.T) {
	src := &fakeSource{commits: map[string]gitsource.Commit{
		"aab001": commitFixture("aab001",
			"feat(auth): add login route for session tokens",
			"src/api/routes/login.ts", "src/auth/session.ts"),
	}}
	l, store := newTestLearner(t, src)
	ctx := context.Background()

	if _, _, err := l.Learn(ctx, "aab001"); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}

	ent, err := store.GetEntityByName(ctx, "auth")
	if err != nil {
		t.Fatalf("GetEntityByName failed: %v", err)
	}
	if ent == nil || ent.Kind != "module" {
		t.Fatalf("module entity missing or wrong kind: %+v", ent)
	}

	rels, err := store.RelationsForEntity(ctx, "auth")
	if err != nil {
		t.Fatalf("RelationsForEntity failed: %v", err)
	}
	found := false
	for _, r := range rels {
		if r.From == "auth" && r.To == "auth-flow" && r.Type == "uses-pattern" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected auth -> auth-flow relation, got %v", rels)
	}
}

func TestLearnRecentSkipsKnownAndCountsFailures(t *testing.T) {
	src := &fakeSource{
		commits: map[string]gitsource.Commit{
			"aaa": commitFixture("aaa", "feat: one", "one.go"),
			"bbb": commitFixture("bbb", "feat: two", "two.go"),
		},
		order: []string{"aaa", "bbb"},
	}
	l, _ := newTestLearner(t, src)
	ctx := context.Background()

	if _, _, err := l.Learn(ctx, "aaa"); err != nil {
		t.Fatalf("Learn failed: %v", err)
	}

	res, err := l.LearnRecent(ctx, 10)
	if err != nil {
		t.Fatalf("LearnRecent failed: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if res.Learned != 1 {
		t.Errorf("learned = %d, want 1", res.Learned)
	}
	if res.Failed != 0 {
		t.Errorf("failed = %d, want 0", res.Failed)
	}
}
