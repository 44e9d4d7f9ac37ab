package solutions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lorekeep/lorekeep/internal/knowledge"
)

// Match tiers. Tier ordering is the contract: exact normalized equality
// beats substring containment beats incidental full-text containment.
const (
	tierExact    = 3.0
	tierSubstr   = 2.0
	tierFullText = 1.0
)

// Match is one ranked candidate solution.
type Match struct {
	Solution    knowledge.ErrorSolution `json:"solution"`
	Tier        float64                 `json:"tier"`
	SuccessRate float64                 `json:"success_rate"`
	Score       float64                 `json:"score"`
}

// Query is a request for candidate solutions.
type Query struct {
	ErrorMessage string
	ErrorType    string // optional; excludes candidates typed differently
	FilePath     string // optional; excludes candidates scoped to other files
	Limit        int
}

// Matcher ranks stored error solutions against new error reports.
type Matcher struct {
	store *knowledge.Store
}

// NewMatcher creates a Matcher over the given store.
func NewMatcher(store *knowledge.Store) *Matcher {
	return &Matcher{store: store}
}

// Report stores a new error/solution pair. The normalized pattern is derived
// here so it is always reproducible from the raw message.
func (m *Matcher) Report(ctx context.Context, sol knowledge.ErrorSolution) (int64, error) {
	if strings.TrimSpace(sol.ErrorMessage) == "" {
		return 0, fmt.Errorf("error message is required")
	}
	if strings.TrimSpace(sol.SolutionDescription) == "" {
		return 0, fmt.Errorf("solution description is required")
	}
	sol.ErrorPattern = Normalize(sol.ErrorMessage)
	return m.store.UpsertErrorSolution(ctx, sol)
}

// FindSolutions returns stored solutions ranked against the query.
// Score is matchTier x successRate; ties break on raw success count.
// An empty result (not an error) means nothing matched.
func (m *Matcher) FindSolutions(ctx context.Context, q Query) ([]Match, error) {
	if strings.TrimSpace(q.ErrorMessage) == "" {
		return nil, fmt.Errorf("error message is required")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	pattern := Normalize(q.ErrorMessage)
	rawLower := strings.ToLower(q.ErrorMessage)

	stored, err := m.store.ListErrorSolutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load solutions: %w", err)
	}

	var matches []Match
	for _, sol := range stored {
		if q.ErrorType != "" && sol.ErrorType != "" && !strings.EqualFold(q.ErrorType, sol.ErrorType) {
			continue
		}
		if q.FilePath != "" && sol.FilePattern != "" &&
			!strings.Contains(strings.ToLower(q.FilePath), strings.ToLower(sol.FilePattern)) {
			continue
		}
		tier := matchTier(pattern, rawLower, sol)
		if tier == 0 {
			continue
		}
		rate := sol.SuccessRate()
		matches = append(matches, Match{
			Solution:    sol,
			Tier:        tier,
			SuccessRate: rate,
			Score:       tier * rate,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Solution.SuccessCount > matches[j].Solution.SuccessCount
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// matchTier classifies how the query relates to one stored solution.
// Returns 0 when they are unrelated.
func matchTier(pattern, rawLower string, sol knowledge.ErrorSolution) float64 {
	if sol.ErrorPattern == pattern {
		return tierExact
	}
	if strings.Contains(sol.ErrorPattern, pattern) || strings.Contains(pattern, sol.ErrorPattern) {
		return tierSubstr
	}
	storedRaw := strings.ToLower(sol.ErrorMessage)
	if strings.Contains(storedRaw, rawLower) || strings.Contains(rawLower, storedRaw) {
		return tierFullText
	}
	return 0
}

// RecordOutcome feeds back whether a suggested solution worked.
// The counter update is a single atomic increment in the store.
func (m *Matcher) RecordOutcome(ctx context.Context, solutionID int64, succeeded bool) error {
	return m.store.RecordOutcome(ctx, solutionID, succeeded)
}
