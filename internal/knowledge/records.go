package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

func marshalList(list []string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to marshal list: %w", err)
	}
	return string(b), nil
}

func unmarshalList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err != nil {
		return nil
	}
	return list
}

// mergeText keeps the stored value when the update is empty.
func mergeText(updated, stored string) string {
	if updated != "" {
		return updated
	}
	return stored
}

// mergeList unions two string lists, preserving first-seen order.
func mergeList(stored, updated []string) []string {
	seen := make(map[string]bool, len(stored)+len(updated))
	var merged []string
	for _, lists := range [][]string{stored, updated} {
		for _, v := range lists {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			merged = append(merged, v)
		}
	}
	return merged
}

// --- Error solutions ---

// UpsertErrorSolution stores an error/solution pair. Pairs are keyed by
// (errorPattern, solutionDescription): re-learning the same pair merges the
// optional fields instead of creating a duplicate row. Outcome counters are
// never touched here. Returns the row ID.
func (s *Store) UpsertErrorSolution(ctx context.Context, sol ErrorSolution) (int64, error) {
	if sol.ErrorPattern == "" {
		return 0, fmt.Errorf("error pattern is required")
	}
	if sol.ErrorMessage == "" {
		return 0, fmt.Errorf("error message is required")
	}
	if sol.SolutionDescription == "" {
		return 0, fmt.Errorf("solution description is required")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanErrorSolutionRow(tx.QueryRowContext(ctx, `
			SELECT `+errorSolutionCols+` FROM error_solutions
			WHERE error_pattern = ? AND solution_description = ?
		`, sol.ErrorPattern, sol.SolutionDescription))
		if err != nil {
			return err
		}

		ts := now()
		if existing == nil {
			files, err := marshalList(sol.SolutionFiles)
			if err != nil {
				return err
			}
			steps, err := marshalList(sol.SolutionSteps)
			if err != nil {
				return err
			}
			tags, err := marshalList(sol.Tags)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO error_solutions (
					error_pattern, error_message, error_type, file_pattern,
					solution_description, solution_code, solution_files, solution_steps,
					related_pattern, tags, success_count, fail_count, commit_hash,
					created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?)
			`, sol.ErrorPattern, sol.ErrorMessage, sol.ErrorType, sol.FilePattern,
				sol.SolutionDescription, sol.SolutionCode, files, steps,
				sol.RelatedPattern, tags, sol.CommitHash, ts, ts)
			if err != nil {
				return fmt.Errorf("failed to insert error solution: %w", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to read error solution id: %w", err)
			}
			return nil
		}

		// Merge: never overwrite non-empty stored fields with empty ones.
		files, err := marshalList(mergeList(existing.SolutionFiles, sol.SolutionFiles))
		if err != nil {
			return err
		}
		steps, err := marshalList(mergeList(existing.SolutionSteps, sol.SolutionSteps))
		if err != nil {
			return err
		}
		tags, err := marshalList(mergeList(existing.Tags, sol.Tags))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE error_solutions SET
				error_type = ?, file_pattern = ?, solution_code = ?,
				solution_files = ?, solution_steps = ?, related_pattern = ?,
				tags = ?, commit_hash = ?, updated_at = ?
			WHERE id = ?
		`, mergeText(sol.ErrorType, existing.ErrorType),
			mergeText(sol.FilePattern, existing.FilePattern),
			mergeText(sol.SolutionCode, existing.SolutionCode),
			files, steps,
			mergeText(sol.RelatedPattern, existing.RelatedPattern),
			tags,
			mergeText(sol.CommitHash, existing.CommitHash),
			ts, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to update error solution: %w", err)
		}
		id = existing.ID
		return nil
	})
	return id, err
}

const errorSolutionCols = `id, error_pattern, error_message, error_type, file_pattern,
	solution_description, solution_code, solution_files, solution_steps,
	related_pattern, tags, success_count, fail_count, commit_hash, created_at, updated_at`

func scanErrorSolutionRow(row *sql.Row) (*ErrorSolution, error) {
	var sol ErrorSolution
	var errorType, filePattern, solutionCode, files, steps, related, tags, commitHash sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&sol.ID, &sol.ErrorPattern, &sol.ErrorMessage, &errorType, &filePattern,
		&sol.SolutionDescription, &solutionCode, &files, &steps,
		&related, &tags, &sol.SuccessCount, &sol.FailCount, &commitHash, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan error solution: %w", err)
	}
	sol.ErrorType = errorType.String
	sol.FilePattern = filePattern.String
	sol.SolutionCode = solutionCode.String
	sol.SolutionFiles = unmarshalList(files)
	sol.SolutionSteps = unmarshalList(steps)
	sol.RelatedPattern = related.String
	sol.Tags = unmarshalList(tags)
	sol.CommitHash = commitHash.String
	sol.CreatedAt = parseTime(createdAt)
	sol.UpdatedAt = parseTime(updatedAt)
	return &sol, nil
}

// GetErrorSolution returns one solution by ID, or nil if absent.
func (s *Store) GetErrorSolution(ctx context.Context, id int64) (*ErrorSolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanErrorSolutionRow(s.db.QueryRowContext(ctx,
		`SELECT `+errorSolutionCols+` FROM error_solutions WHERE id = ?`, id))
}

// ListErrorSolutions returns all stored solutions, most successful first.
func (s *Store) ListErrorSolutions(ctx context.Context) ([]ErrorSolution, error) {
	return s.queryErrorSolutions(ctx, `
		SELECT `+errorSolutionCols+` FROM error_solutions
		ORDER BY success_count DESC, updated_at DESC
	`)
}

// SearchErrorSolutions returns solutions whose pattern, raw message, or
// description contains the query, case-insensitively.
func (s *Store) SearchErrorSolutions(ctx context.Context, query string, limit int) ([]ErrorSolution, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryErrorSolutions(ctx, `
		SELECT `+errorSolutionCols+` FROM error_solutions
		WHERE instr(lower(error_pattern), lower(?)) > 0
		   OR instr(lower(error_message), lower(?)) > 0
		   OR instr(lower(solution_description), lower(?)) > 0
		ORDER BY success_count DESC, updated_at DESC
		LIMIT ?
	`, query, query, query, limit)
}

func (s *Store) queryErrorSolutions(ctx context.Context, query string, args ...any) ([]ErrorSolution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query error solutions: %w", err)
	}
	defer rows.Close()

	var sols []ErrorSolution
	for rows.Next() {
		var sol ErrorSolution
		var errorType, filePattern, solutionCode, files, steps, related, tags, commitHash sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&sol.ID, &sol.ErrorPattern, &sol.ErrorMessage, &errorType, &filePattern,
			&sol.SolutionDescription, &solutionCode, &files, &steps,
			&related, &tags, &sol.SuccessCount, &sol.FailCount, &commitHash, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan error solution: %w", err)
		}
		sol.ErrorType = errorType.String
		sol.FilePattern = filePattern.String
		sol.SolutionCode = solutionCode.String
		sol.SolutionFiles = unmarshalList(files)
		sol.SolutionSteps = unmarshalList(steps)
		sol.RelatedPattern = related.String
		sol.Tags = unmarshalList(tags)
		sol.CommitHash = commitHash.String
		sol.CreatedAt = parseTime(createdAt)
		sol.UpdatedAt = parseTime(updatedAt)
		sols = append(sols, sol)
	}
	return sols, rows.Err()
}

// RecordOutcome increments the success or fail counter for a solution as a
// single atomic update. Concurrent calls never lose increments.
func (s *Store) RecordOutcome(ctx context.Context, id int64, succeeded bool) error {
	column := "fail_count"
	if succeeded {
		column = "success_count"
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE error_solutions SET `+column+` = `+column+` + 1, updated_at = ? WHERE id = ?`,
			now(), id)
		if err != nil {
			return fmt.Errorf("failed to record outcome: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check outcome update: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("solution not found: %d", id)
		}
		return nil
	})
}

// --- Commits ---

// UpsertCommit stores a learned commit, idempotent on hash. Re-learning the
// same hash refreshes only the metadata-block-derived fields.
func (s *Store) UpsertCommit(ctx context.Context, rec CommitRecord) error {
	if rec.Hash == "" {
		return fmt.Errorf("commit hash is required")
	}
	if rec.Message == "" {
		return fmt.Errorf("commit message is required")
	}

	files, err := marshalList(rec.FilesChanged)
	if err != nil {
		return err
	}
	var metadata string
	if len(rec.MetadataBlock) > 0 {
		b, err := json.Marshal(rec.MetadataBlock)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata block: %w", err)
		}
		metadata = string(b)
	}

	var committedAt string
	if !rec.CommittedAt.IsZero() {
		committedAt = rec.CommittedAt.UTC().Format(timeLayout)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO commits (
				hash, message, commit_type, module, identity, author,
				files_changed, insertions, deletions,
				has_metadata_block, metadata_block, is_breaking,
				committed_at, learned_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(hash) DO UPDATE SET
				has_metadata_block = excluded.has_metadata_block,
				metadata_block = excluded.metadata_block,
				is_breaking = excluded.is_breaking
		`, rec.Hash, rec.Message, rec.Type, rec.Module, rec.Identity, rec.Author,
			files, rec.Insertions, rec.Deletions,
			rec.HasMetadataBlock, metadata, rec.IsBreaking,
			committedAt, now())
		if err != nil {
			return fmt.Errorf("failed to upsert commit %s: %w", rec.Hash, err)
		}
		return nil
	})
}

const commitCols = `hash, message, commit_type, module, identity, author,
	files_changed, insertions, deletions, has_metadata_block, metadata_block,
	is_breaking, committed_at, learned_at`

// GetCommit returns one commit record by hash, or nil if not yet learned.
func (s *Store) GetCommit(ctx context.Context, hash string) (*CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commitCols+` FROM commits WHERE hash = ?`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query commit: %w", err)
	}
	defer rows.Close()

	recs, err := scanCommits(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// ListCommits returns learned commits, newest first.
func (s *Store) ListCommits(ctx context.Context, limit int) ([]CommitRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commitCols+` FROM commits
		ORDER BY committed_at DESC, learned_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer rows.Close()
	return scanCommits(rows)
}

// SearchCommits returns commits whose message, module, or author contains
// the query, case-insensitively, newest first.
func (s *Store) SearchCommits(ctx context.Context, query string, limit int) ([]CommitRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commitCols+` FROM commits
		WHERE instr(lower(message), lower(?)) > 0
		   OR instr(lower(COALESCE(module, '')), lower(?)) > 0
		   OR instr(lower(COALESCE(author, '')), lower(?)) > 0
		ORDER BY committed_at DESC LIMIT ?
	`, query, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer rows.Close()
	return scanCommits(rows)
}

func scanCommits(rows *sql.Rows) ([]CommitRecord, error) {
	var recs []CommitRecord
	for rows.Next() {
		var rec CommitRecord
		var commitType, module, identity, author, files, metadata, committedAt sql.NullString
		var learnedAt string
		if err := rows.Scan(&rec.Hash, &rec.Message, &commitType, &module, &identity, &author,
			&files, &rec.Insertions, &rec.Deletions, &rec.HasMetadataBlock, &metadata,
			&rec.IsBreaking, &committedAt, &learnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		rec.Type = commitType.String
		rec.Module = module.String
		rec.Identity = identity.String
		rec.Author = author.String
		rec.FilesChanged = unmarshalList(files)
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &rec.MetadataBlock)
		}
		if committedAt.Valid && committedAt.String != "" {
			rec.CommittedAt = parseTime(committedAt.String)
		}
		rec.LearnedAt = parseTime(learnedAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- Code patterns ---

// UpsertCodePattern stores a pattern by name. Re-learning an existing
// pattern increments its usage count, merges list fields as set unions, and
// never overwrites non-empty text fields with empty ones. The effectiveness
// score keeps the higher of the two values.
func (s *Store) UpsertCodePattern(ctx context.Context, p CodePattern) (*CodePattern, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("pattern name is required")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanCodePatternRow(tx.QueryRowContext(ctx,
			`SELECT `+codePatternCols+` FROM code_patterns WHERE name = ?`, p.Name))
		if err != nil {
			return err
		}

		ts := now()
		if existing == nil {
			related, err := marshalList(p.RelatedFiles)
			if err != nil {
				return err
			}
			tags, err := marshalList(p.Tags)
			if err != nil {
				return err
			}
			usage := p.UsageCount
			if usage < 1 {
				usage = 1
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO code_patterns (
					name, pattern_type, category, description, example_code,
					anti_pattern, anti_pattern_reason, related_files, tags,
					usage_count, effectiveness_score, source_commit, created_at, updated_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, p.Name, p.PatternType, p.Category, p.Description, p.ExampleCode,
				p.AntiPattern, p.AntiPatternReason, related, tags,
				usage, p.EffectivenessScore, p.SourceCommit, ts, ts)
			if err != nil {
				return fmt.Errorf("failed to insert code pattern: %w", err)
			}
			return nil
		}

		related, err := marshalList(mergeList(existing.RelatedFiles, p.RelatedFiles))
		if err != nil {
			return err
		}
		tags, err := marshalList(mergeList(existing.Tags, p.Tags))
		if err != nil {
			return err
		}
		score := existing.EffectivenessScore
		if p.EffectivenessScore > score {
			score = p.EffectivenessScore
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE code_patterns SET
				pattern_type = ?, category = ?, description = ?, example_code = ?,
				anti_pattern = ?, anti_pattern_reason = ?, related_files = ?, tags = ?,
				usage_count = usage_count + 1, effectiveness_score = ?,
				source_commit = ?, updated_at = ?
			WHERE name = ?
		`, mergeText(p.PatternType, existing.PatternType),
			mergeText(p.Category, existing.Category),
			mergeText(p.Description, existing.Description),
			mergeText(p.ExampleCode, existing.ExampleCode),
			mergeText(p.AntiPattern, existing.AntiPattern),
			mergeText(p.AntiPatternReason, existing.AntiPatternReason),
			related, tags, score,
			mergeText(p.SourceCommit, existing.SourceCommit),
			ts, p.Name)
		if err != nil {
			return fmt.Errorf("failed to update code pattern: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCodePattern(ctx, p.Name)
}

const codePatternCols = `name, pattern_type, category, description, example_code,
	anti_pattern, anti_pattern_reason, related_files, tags,
	usage_count, effectiveness_score, source_commit, created_at, updated_at`

func scanCodePatternRow(row *sql.Row) (*CodePattern, error) {
	var p CodePattern
	var patternType, category, description, example, anti, antiReason, related, tags, sourceCommit sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&p.Name, &patternType, &category, &description, &example,
		&anti, &antiReason, &related, &tags,
		&p.UsageCount, &p.EffectivenessScore, &sourceCommit, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan code pattern: %w", err)
	}
	p.PatternType = patternType.String
	p.Category = category.String
	p.Description = description.String
	p.ExampleCode = example.String
	p.AntiPattern = anti.String
	p.AntiPatternReason = antiReason.String
	p.RelatedFiles = unmarshalList(related)
	p.Tags = unmarshalList(tags)
	p.SourceCommit = sourceCommit.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// GetCodePattern returns one pattern by name, or nil if absent.
func (s *Store) GetCodePattern(ctx context.Context, name string) (*CodePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanCodePatternRow(s.db.QueryRowContext(ctx,
		`SELECT `+codePatternCols+` FROM code_patterns WHERE name = ?`, name))
}

// ListCodePatterns returns all patterns, most used first.
func (s *Store) ListCodePatterns(ctx context.Context) ([]CodePattern, error) {
	return s.queryCodePatterns(ctx, `
		SELECT `+codePatternCols+` FROM code_patterns
		ORDER BY usage_count DESC, updated_at DESC
	`)
}

// SearchCodePatterns returns patterns whose name, description, or category
// contains the query, case-insensitively, most used first.
func (s *Store) SearchCodePatterns(ctx context.Context, query string, limit int) ([]CodePattern, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryCodePatterns(ctx, `
		SELECT `+codePatternCols+` FROM code_patterns
		WHERE instr(lower(name), lower(?)) > 0
		   OR instr(lower(COALESCE(description, '')), lower(?)) > 0
		   OR instr(lower(COALESCE(category, '')), lower(?)) > 0
		ORDER BY usage_count DESC, updated_at DESC
		LIMIT ?
	`, query, query, query, limit)
}

func (s *Store) queryCodePatterns(ctx context.Context, query string, args ...any) ([]CodePattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query code patterns: %w", err)
	}
	defer rows.Close()

	var patterns []CodePattern
	for rows.Next() {
		var p CodePattern
		var patternType, category, description, example, anti, antiReason, related, tags, sourceCommit sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&p.Name, &patternType, &category, &description, &example,
			&anti, &antiReason, &related, &tags,
			&p.UsageCount, &p.EffectivenessScore, &sourceCommit, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan code pattern: %w", err)
		}
		p.PatternType = patternType.String
		p.Category = category.String
		p.Description = description.String
		p.ExampleCode = example.String
		p.AntiPattern = anti.String
		p.AntiPatternReason = antiReason.String
		p.RelatedFiles = unmarshalList(related)
		p.Tags = unmarshalList(tags)
		p.SourceCommit = sourceCommit.String
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// --- Sync log ---

// AppendSyncLog records one sync pass, successful or not.
func (s *Store) AppendSyncLog(ctx context.Context, entry SyncLogEntry) error {
	if entry.Kind == "" || entry.Direction == "" {
		return fmt.Errorf("sync log entry requires kind and direction")
	}
	if entry.Status == "" {
		return fmt.Errorf("sync log entry requires status")
	}

	var counts string
	if len(entry.Counts) > 0 {
		b, err := json.Marshal(entry.Counts)
		if err != nil {
			return fmt.Errorf("failed to marshal sync counts: %w", err)
		}
		counts = string(b)
	}

	syncedAt := entry.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sync_log (sync_kind, direction, counts, status, error_message, duration_ms, graph_size, synced_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, entry.Kind, entry.Direction, counts, entry.Status, entry.ErrorMessage,
			entry.DurationMs, entry.GraphSize, syncedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to append sync log: %w", err)
		}
		return nil
	})
}

// LastSuccessfulSync returns the timestamp of the most recent successful
// sync pass. The second return is false when no successful pass exists yet;
// incremental sync then starts from the epoch.
func (s *Store) LastSuccessfulSync(ctx context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var syncedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT synced_at FROM sync_log
		WHERE status = 'success'
		ORDER BY id DESC LIMIT 1
	`).Scan(&syncedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query sync log: %w", err)
	}
	return parseTime(syncedAt), true, nil
}

// ListSyncLog returns recent sync passes, newest first.
func (s *Store) ListSyncLog(ctx context.Context, limit int) ([]SyncLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sync_kind, direction, counts, status, error_message, duration_ms, graph_size, synced_at
		FROM sync_log ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []SyncLogEntry
	for rows.Next() {
		var e SyncLogEntry
		var counts, errorMessage sql.NullString
		var syncedAt string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Direction, &counts, &e.Status,
			&errorMessage, &e.DurationMs, &e.GraphSize, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		if counts.Valid && counts.String != "" {
			_ = json.Unmarshal([]byte(counts.String), &e.Counts)
		}
		e.ErrorMessage = errorMessage.String
		e.SyncedAt = parseTime(syncedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Stats ---

// GetStats returns per-table row counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"entities", &stats.Entities},
		{"observations", &stats.Observations},
		{"relations", &stats.Relations},
		{"error_solutions", &stats.ErrorSolutions},
		{"commits", &stats.Commits},
		{"code_patterns", &stats.CodePatterns},
		{"sync_log", &stats.SyncPasses},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}
	return stats, nil
}
