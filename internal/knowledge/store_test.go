package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "knowledge.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesParentDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "dir", "knowledge.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestColdStartReadsReturnEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entities, err := s.ListEntities(ctx)
	if err != nil {
		t.Fatalf("ListEntities() error = %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("ListEntities() = %d entities, want 0", len(entities))
	}

	e, err := s.GetEntityByName(ctx, "missing")
	if err != nil {
		t.Fatalf("GetEntityByName() error = %v", err)
	}
	if e != nil {
		t.Errorf("GetEntityByName() = %v, want nil", e)
	}

	sols, err := s.SearchErrorSolutions(ctx, "anything", 10)
	if err != nil {
		t.Fatalf("SearchErrorSolutions() error = %v", err)
	}
	if len(sols) != 0 {
		t.Errorf("SearchErrorSolutions() = %d, want 0", len(sols))
	}
}

func TestUpsertEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e, err := s.UpsertEntity(ctx, "auth-module", "module", "authentication code")
	if err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}
	if e.ID == "" {
		t.Error("UpsertEntity() returned empty ID")
	}

	// Re-upsert with empty description must not truncate
	e2, err := s.UpsertEntity(ctx, "auth-module", "module", "")
	if err != nil {
		t.Fatalf("UpsertEntity() re-upsert error = %v", err)
	}
	if e2.ID != e.ID {
		t.Errorf("re-upsert changed ID: %s -> %s", e.ID, e2.ID)
	}
	if e2.Description != "authentication code" {
		t.Errorf("re-upsert truncated description: %q", e2.Description)
	}

	// Non-empty description replaces
	e3, err := s.UpsertEntity(ctx, "auth-module", "module", "handles login")
	if err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}
	if e3.Description != "handles login" {
		t.Errorf("description = %q, want %q", e3.Description, "handles login")
	}
}

func TestUpsertEntityRequiresName(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.UpsertEntity(context.Background(), "", "module", "x"); err == nil {
		t.Error("UpsertEntity() with empty name should fail")
	}
}

func TestObserveDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	added, err := s.Observe(ctx, "retry-pattern", "pattern", Observation{
		Content: "used in commit abc123",
		Source:  "commit",
	})
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if !added {
		t.Error("first Observe() should add")
	}

	// Identical fact is a no-op, not a duplicate row
	added, err = s.Observe(ctx, "retry-pattern", "pattern", Observation{
		Content: "used in commit abc123",
		Source:  "commit",
	})
	if err != nil {
		t.Fatalf("Observe() repeat error = %v", err)
	}
	if added {
		t.Error("repeated Observe() should be a no-op")
	}

	obs, err := s.ListObservations(ctx, "retry-pattern")
	if err != nil {
		t.Fatalf("ListObservations() error = %v", err)
	}
	if len(obs) != 1 {
		t.Errorf("ListObservations() = %d rows, want 1", len(obs))
	}
}

func TestDeleteEntityCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Observe(ctx, "doomed", "module", Observation{Content: "fact one"}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if _, err := s.UpsertEntity(ctx, "survivor", "module", ""); err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}
	if err := s.UpsertRelation(ctx, Relation{From: "doomed", To: "survivor", Type: "depends-on"}); err != nil {
		t.Fatalf("UpsertRelation() error = %v", err)
	}
	if err := s.UpsertRelation(ctx, Relation{From: "survivor", To: "doomed", Type: "used-by"}); err != nil {
		t.Fatalf("UpsertRelation() error = %v", err)
	}

	if err := s.DeleteEntity(ctx, "doomed"); err != nil {
		t.Fatalf("DeleteEntity() error = %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.Entities != 1 {
		t.Errorf("entities = %d, want 1", stats.Entities)
	}
	if stats.Observations != 0 {
		t.Errorf("observations = %d, want 0 after cascade", stats.Observations)
	}
	if stats.Relations != 0 {
		t.Errorf("relations = %d, want 0 after cascade", stats.Relations)
	}
}

func TestUpsertRelationUpdatesStrength(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rel := Relation{From: "backend", To: "retry-pattern", Type: "uses", Strength: 0.5}
	if err := s.UpsertRelation(ctx, rel); err != nil {
		t.Fatalf("UpsertRelation() error = %v", err)
	}

	rel.Strength = 0.9
	if err := s.UpsertRelation(ctx, rel); err != nil {
		t.Fatalf("UpsertRelation() repeat error = %v", err)
	}

	rels, err := s.ListRelations(ctx)
	if err != nil {
		t.Fatalf("ListRelations() error = %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("ListRelations() = %d rows, want 1", len(rels))
	}
	if rels[0].Strength != 0.9 {
		t.Errorf("strength = %v, want 0.9", rels[0].Strength)
	}

	// Endpoints were stubbed as entities
	e, err := s.GetEntityByName(ctx, "backend")
	if err != nil || e == nil {
		t.Errorf("relation endpoint not created as entity: %v, %v", e, err)
	}
}

func TestSearchEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"error-handling", "retry-pattern", "auth-module"} {
		if _, err := s.UpsertEntity(ctx, name, "pattern", ""); err != nil {
			t.Fatalf("UpsertEntity(%q) error = %v", name, err)
		}
	}

	got, err := s.SearchEntities(ctx, "PATTERN", 10)
	if err != nil {
		t.Fatalf("SearchEntities() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "retry-pattern" {
		t.Errorf("SearchEntities(PATTERN) = %v, want retry-pattern", got)
	}
}

func TestErrorSolutionUpsertAndOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertErrorSolution(ctx, ErrorSolution{
		ErrorPattern:        "cannot read properties of null (reading '<ID>')",
		ErrorMessage:        "Cannot read properties of null (reading 'id')",
		SolutionDescription: "guard against null before property access",
		Tags:                []string{"typescript"},
	})
	if err != nil {
		t.Fatalf("UpsertErrorSolution() error = %v", err)
	}

	// Same pair merges instead of duplicating
	id2, err := s.UpsertErrorSolution(ctx, ErrorSolution{
		ErrorPattern:        "cannot read properties of null (reading '<ID>')",
		ErrorMessage:        "Cannot read properties of null (reading 'name')",
		SolutionDescription: "guard against null before property access",
		SolutionCode:        "if (user == null) return;",
		Tags:                []string{"null-safety"},
	})
	if err != nil {
		t.Fatalf("UpsertErrorSolution() merge error = %v", err)
	}
	if id2 != id {
		t.Errorf("merge created new row: id %d -> %d", id, id2)
	}

	sol, err := s.GetErrorSolution(ctx, id)
	if err != nil {
		t.Fatalf("GetErrorSolution() error = %v", err)
	}
	if sol.SolutionCode != "if (user == null) return;" {
		t.Errorf("merge lost solution code: %q", sol.SolutionCode)
	}
	if len(sol.Tags) != 2 {
		t.Errorf("tags = %v, want union of both", sol.Tags)
	}

	// Outcome counters
	if err := s.RecordOutcome(ctx, id, true); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	if err := s.RecordOutcome(ctx, id, false); err != nil {
		t.Fatalf("RecordOutcome() error = %v", err)
	}
	sol, _ = s.GetErrorSolution(ctx, id)
	if sol.SuccessCount != 1 || sol.FailCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", sol.SuccessCount, sol.FailCount)
	}

	if err := s.RecordOutcome(ctx, 9999, true); err == nil {
		t.Error("RecordOutcome() on unknown id should fail")
	}
}

func TestErrorSolutionValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		sol  ErrorSolution
	}{
		{"missing pattern", ErrorSolution{ErrorMessage: "x", SolutionDescription: "y"}},
		{"missing message", ErrorSolution{ErrorPattern: "x", SolutionDescription: "y"}},
		{"missing solution", ErrorSolution{ErrorPattern: "x", ErrorMessage: "y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.UpsertErrorSolution(ctx, tt.sol); err == nil {
				t.Error("UpsertErrorSolution() should reject invalid input")
			}
		})
	}

	// Nothing was written
	stats, _ := s.GetStats(ctx)
	if stats.ErrorSolutions != 0 {
		t.Errorf("error_solutions = %d, want 0", stats.ErrorSolutions)
	}
}

func TestUpsertCommitIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := CommitRecord{
		Hash:         "abc123",
		Message:      "fix(auth): resolve token refresh [MOD]",
		Type:         "fix",
		Module:       "auth",
		Identity:     "MOD",
		Author:       "dev@example.com",
		FilesChanged: []string{"src/auth/token.ts"},
		Insertions:   12,
		Deletions:    3,
		CommittedAt:  time.Now().Add(-time.Hour),
	}
	if err := s.UpsertCommit(ctx, rec); err != nil {
		t.Fatalf("UpsertCommit() error = %v", err)
	}
	if err := s.UpsertCommit(ctx, rec); err != nil {
		t.Fatalf("UpsertCommit() repeat error = %v", err)
	}

	stats, _ := s.GetStats(ctx)
	if stats.Commits != 1 {
		t.Errorf("commits = %d, want 1", stats.Commits)
	}

	got, err := s.GetCommit(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetCommit() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetCommit() returned nil")
	}
	if got.Type != "fix" || got.Module != "auth" || got.Identity != "MOD" {
		t.Errorf("parsed fields lost: %+v", got)
	}
	if got.HasMetadataBlock {
		t.Error("HasMetadataBlock = true, want false")
	}
}

func TestUpsertCodePatternMerges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.UpsertCodePattern(ctx, CodePattern{
		Name:        "repository-pattern",
		PatternType: "architecture",
		Description: "data access behind an interface",
		Tags:        []string{"storage"},
	})
	if err != nil {
		t.Fatalf("UpsertCodePattern() error = %v", err)
	}
	if p1.UsageCount != 1 {
		t.Errorf("usage = %d, want 1", p1.UsageCount)
	}

	// Re-learn: usage increments, empty fields never overwrite
	p2, err := s.UpsertCodePattern(ctx, CodePattern{
		Name:               "repository-pattern",
		Tags:               []string{"database"},
		EffectivenessScore: 0.8,
	})
	if err != nil {
		t.Fatalf("UpsertCodePattern() re-learn error = %v", err)
	}
	if p2.UsageCount != 2 {
		t.Errorf("usage = %d, want 2", p2.UsageCount)
	}
	if p2.Description != "data access behind an interface" {
		t.Errorf("description truncated: %q", p2.Description)
	}
	if len(p2.Tags) != 2 {
		t.Errorf("tags = %v, want union", p2.Tags)
	}
	if p2.EffectivenessScore != 0.8 {
		t.Errorf("score = %v, want 0.8", p2.EffectivenessScore)
	}
}

func TestSyncLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// No successful sync yet
	_, ok, err := s.LastSuccessfulSync(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulSync() error = %v", err)
	}
	if ok {
		t.Error("LastSuccessfulSync() ok = true on empty log")
	}

	if err := s.AppendSyncLog(ctx, SyncLogEntry{
		Kind: SyncFull, Direction: DirectionExport, Status: "error",
		ErrorMessage: "disk full",
	}); err != nil {
		t.Fatalf("AppendSyncLog() error = %v", err)
	}
	if err := s.AppendSyncLog(ctx, SyncLogEntry{
		Kind: SyncIncremental, Direction: DirectionExport, Status: "success",
		Counts: map[string]int{"entities": 2}, GraphSize: 5,
	}); err != nil {
		t.Fatalf("AppendSyncLog() error = %v", err)
	}

	ts, ok, err := s.LastSuccessfulSync(ctx)
	if err != nil {
		t.Fatalf("LastSuccessfulSync() error = %v", err)
	}
	if !ok {
		t.Fatal("LastSuccessfulSync() ok = false after success row")
	}
	if time.Since(ts) > time.Minute {
		t.Errorf("LastSuccessfulSync() = %v, too old", ts)
	}

	entries, err := s.ListSyncLog(ctx, 10)
	if err != nil {
		t.Fatalf("ListSyncLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListSyncLog() = %d entries, want 2", len(entries))
	}
	if entries[0].Kind != SyncIncremental || entries[0].Counts["entities"] != 2 {
		t.Errorf("newest entry = %+v", entries[0])
	}
}

func TestChangedSinceWindows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Observe(ctx, "before", "module", Observation{Content: "old fact"}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	cutoff := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)

	if _, err := s.Observe(ctx, "after", "module", Observation{Content: "new fact"}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if err := s.UpsertRelation(ctx, Relation{From: "after", To: "before", Type: "follows"}); err != nil {
		t.Fatalf("UpsertRelation() error = %v", err)
	}

	entities, err := s.EntitiesChangedSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("EntitiesChangedSince() error = %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "after" {
		t.Errorf("EntitiesChangedSince() = %v, want only 'after'", entities)
	}

	obs, err := s.ObservationsCreatedSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("ObservationsCreatedSince() error = %v", err)
	}
	if len(obs) != 1 || obs[0].Content != "new fact" {
		t.Errorf("ObservationsCreatedSince() = %v, want only new fact", obs)
	}

	rels, err := s.RelationsCreatedSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("RelationsCreatedSince() error = %v", err)
	}
	if len(rels) != 1 {
		t.Errorf("RelationsCreatedSince() = %d, want 1", len(rels))
	}
}

func TestTimeLayoutOrdersLexicographically(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Mixed fractional widths are the trap: a trailing-zero-trimming format
	// renders 0.52s as "...00.52Z", which sorts before "...00.5Z" as TEXT.
	times := []time.Time{
		base,
		base.Add(1 * time.Nanosecond),
		base.Add(500 * time.Millisecond),
		base.Add(520 * time.Millisecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		prev := times[i-1].Format(timeLayout)
		cur := times[i].Format(timeLayout)
		if !(prev < cur) {
			t.Errorf("formatted order broken: %q should sort before %q", prev, cur)
		}
	}
}

func TestChangedSinceAcrossFractionalWidths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := base.Add(500 * time.Millisecond)
	inside := base.Add(520 * time.Millisecond)

	ts := inside.Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (id, name, kind, description, created_at, updated_at)
		VALUES ('fraction-1', 'fraction-entity', 'module', '', ?, ?)
	`, ts, ts)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	entities, err := s.EntitiesChangedSince(ctx, cutoff)
	if err != nil {
		t.Fatalf("EntitiesChangedSince() error = %v", err)
	}
	if len(entities) != 1 || entities[0].Name != "fraction-entity" {
		t.Errorf("EntitiesChangedSince() = %v, want fraction-entity", entities)
	}
	if !entities[0].UpdatedAt.Equal(inside) {
		t.Errorf("UpdatedAt = %v, want %v", entities[0].UpdatedAt, inside)
	}
}

func TestUpsertEntityPreservesKindOnEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertEntity(ctx, "auth", "module", "authentication"); err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}

	// Observing without a kind must not clobber the stored one.
	if _, err := s.Observe(ctx, "auth", "", Observation{Content: "seen in a commit"}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	e, err := s.GetEntityByName(ctx, "auth")
	if err != nil {
		t.Fatalf("GetEntityByName() error = %v", err)
	}
	if e.Kind != "module" {
		t.Errorf("Kind = %q, want module", e.Kind)
	}

	// A brand-new entity with no kind gets the default.
	if _, err := s.Observe(ctx, "fresh", "", Observation{Content: "first sighting"}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	fresh, err := s.GetEntityByName(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetEntityByName() error = %v", err)
	}
	if fresh.Kind != "concept" {
		t.Errorf("Kind = %q, want concept", fresh.Kind)
	}

	// A non-empty kind still replaces.
	if _, err := s.UpsertEntity(ctx, "fresh", "pattern", ""); err != nil {
		t.Fatalf("UpsertEntity() error = %v", err)
	}
	fresh, err = s.GetEntityByName(ctx, "fresh")
	if err != nil {
		t.Fatalf("GetEntityByName() error = %v", err)
	}
	if fresh.Kind != "pattern" {
		t.Errorf("Kind = %q, want pattern", fresh.Kind)
	}
}
