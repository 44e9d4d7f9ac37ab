package gitlearn

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lorekeep/lorekeep/internal/gitsource"
	"github.com/lorekeep/lorekeep/internal/knowledge"
	"github.com/lorekeep/lorekeep/internal/solutions"
)

// Learner derives knowledge from commits and persists it.
type Learner struct {
	store  *knowledge.Store
	source gitsource.Source
	logger *slog.Logger
}

// NewLearner creates a Learner reading commits from source and writing
// derived facts to store.
func NewLearner(store *knowledge.Store, source gitsource.Source, logger *slog.Logger) *Learner {
	return &Learner{store: store, source: source, logger: logger}
}

// BatchResult summarizes one LearnRecent pass. Failed commits are counted
// and described, never fatal to the batch.
type BatchResult struct {
	Learned int      `json:"learned"`
	Skipped int      `json:"skipped"` // already known
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Learn learns a single commit by hash. Idempotent: an already-learned hash
// short-circuits and returns the stored record with learned=false. If the
// commit cannot be retrieved from version control the operation fails
// explicitly and nothing is written.
func (l *Learner) Learn(ctx context.Context, hash string) (*knowledge.CommitRecord, bool, error) {
	existing, err := l.store.GetCommit(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		l.logger.Debug("commit already learned", "hash", shortHash(hash))
		return existing, false, nil
	}

	commit, err := l.source.Commit(ctx, hash)
	if err != nil {
		return nil, false, fmt.Errorf("failed to retrieve commit: %w", err)
	}

	rec, err := l.learnCommit(ctx, commit)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// LearnRecent learns up to n recent commits. Already-known hashes are
// skipped, per-commit failures are counted and reported; only failure to
// list the commits at all aborts the batch.
func (l *Learner) LearnRecent(ctx context.Context, n int) (*BatchResult, error) {
	commits, err := l.source.Recent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent commits: %w", err)
	}

	res := &BatchResult{}
	for i := range commits {
		c := &commits[i]
		existing, err := l.store.GetCommit(ctx, c.Hash)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		if _, err := l.learnCommit(ctx, c); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", shortHash(c.Hash), err))
			l.logger.Warn("failed to learn commit", "hash", shortHash(c.Hash), "error", err)
			continue
		}
		res.Learned++
	}

	l.logger.Info("batch learn complete",
		"learned", res.Learned, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func (l *Learner) learnCommit(ctx context.Context, c *gitsource.Commit) (*knowledge.CommitRecord, error) {
	parsed := ParseMessage(c.Message)
	meta, hasMeta := ExtractMetadata(c.Message)
	byDomain := CategorizeFiles(c.ChangedFiles)
	patterns := DetectPatterns(c.Message, c.ChangedFiles)

	rec := knowledge.CommitRecord{
		Hash:             c.Hash,
		Message:          c.Message,
		Type:             parsed.Type,
		Module:           parsed.Module,
		Identity:         parsed.Identity,
		Author:           c.Author,
		FilesChanged:     c.ChangedFiles,
		Insertions:       c.Insertions,
		Deletions:        c.Deletions,
		HasMetadataBlock: hasMeta,
		MetadataBlock:    meta,
		IsBreaking:       parsed.Breaking || meta[metaBreaking] == "true",
		CommittedAt:      c.Timestamp,
	}
	if err := l.store.UpsertCommit(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store commit: %w", err)
	}

	if hasMeta {
		if err := l.persistMetadata(ctx, c, meta); err != nil {
			return nil, err
		}
	}
	if err := l.linkPatterns(ctx, c, parsed, byDomain, patterns); err != nil {
		return nil, err
	}

	l.logger.Info("learned commit",
		"hash", shortHash(c.Hash),
		"type", parsed.Type,
		"module", parsed.Module,
		"patterns", len(patterns),
		"metadata", hasMeta)

	return l.store.GetCommit(ctx, c.Hash)
}

// persistMetadata turns a commit's metadata block into an ErrorSolution
// and/or a CodePattern, depending on which fields it declares.
func (l *Learner) persistMetadata(ctx context.Context, c *gitsource.Commit, meta map[string]string) error {
	if errMsg, solution := meta[metaError], meta[metaSolution]; errMsg != "" && solution != "" {
		sol := knowledge.ErrorSolution{
			ErrorPattern:        solutions.Normalize(errMsg),
			ErrorMessage:        errMsg,
			ErrorType:           meta[metaErrorType],
			SolutionDescription: solution,
			SolutionCode:        meta[metaSolutionCode],
			SolutionFiles:       c.ChangedFiles,
			RelatedPattern:      meta[metaPattern],
			Tags:                splitTags(meta[metaTags]),
			CommitHash:          c.Hash,
		}
		if _, err := l.store.UpsertErrorSolution(ctx, sol); err != nil {
			return fmt.Errorf("failed to store error solution: %w", err)
		}
	}

	if name := meta[metaPattern]; name != "" {
		p := knowledge.CodePattern{
			Name:         name,
			PatternType:  meta[metaPatternType],
			Category:     meta[metaCategory],
			Description:  meta[metaDescription],
			RelatedFiles: c.ChangedFiles,
			Tags:         splitTags(meta[metaTags]),
			SourceCommit: c.Hash,
		}
		if _, err := l.store.UpsertCodePattern(ctx, p); err != nil {
			return fmt.Errorf("failed to store code pattern: %w", err)
		}
	}
	return nil
}

// linkPatterns records each detected pattern as an observed entity and
// relates the commit's modules and domains to it.
func (l *Learner) linkPatterns(ctx context.Context, c *gitsource.Commit, parsed ParsedMessage, byDomain map[string][]string, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}

	for _, p := range patterns {
		obs := knowledge.Observation{
			Content:    "observed in commit " + shortHash(c.Hash),
			Source:     "commit",
			SourceRef:  c.Hash,
			Confidence: 0.8,
		}
		if _, err := l.store.Observe(ctx, p, "pattern", obs); err != nil {
			return fmt.Errorf("failed to observe pattern %s: %w", p, err)
		}
	}

	var froms []string
	for _, d := range Domains(byDomain) {
		if d != "other" {
			froms = append(froms, d)
		}
	}
	if parsed.Module != "" {
		froms = append(froms, parsed.Module)
	}

	for _, from := range froms {
		kind := "domain"
		if from == parsed.Module {
			kind = "module"
		}
		if _, err := l.store.UpsertEntity(ctx, from, kind, ""); err != nil {
			return fmt.Errorf("failed to upsert entity %s: %w", from, err)
		}
		for _, p := range patterns {
			rel := knowledge.Relation{From: from, To: p, Type: "uses-pattern", Strength: 1}
			if err := l.store.UpsertRelation(ctx, rel); err != nil {
				return fmt.Errorf("failed to relate %s to %s: %w", from, p, err)
			}
		}
	}
	return nil
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
