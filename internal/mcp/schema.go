// Package mcp exposes the knowledge daemon's operations as MCP tools.
package mcp

import (
	"github.com/lorekeep/lorekeep/internal/freshness"
	"github.com/lorekeep/lorekeep/internal/knowledge"
	"github.com/lorekeep/lorekeep/internal/solutions"
)

// LearnCommitInput defines the input for the lorekeep_learn_commit tool.
type LearnCommitInput struct {
	Hash string `json:"hash" jsonschema:"Commit hash to learn (full or abbreviated)"`
}

// LearnCommitOutput defines the output for the lorekeep_learn_commit tool.
type LearnCommitOutput struct {
	Success      bool                    `json:"success" jsonschema:"Whether the operation succeeded"`
	Message      string                  `json:"message" jsonschema:"Human-readable result"`
	AlreadyKnown bool                    `json:"already_known" jsonschema:"True when the commit had been learned before"`
	Commit       *knowledge.CommitRecord `json:"commit,omitempty" jsonschema:"The stored commit record"`
}

// LearnRecentInput defines the input for the lorekeep_learn_recent tool.
type LearnRecentInput struct {
	Count int `json:"count,omitempty" jsonschema:"How many recent commits to learn (default 10)"`
}

// LearnRecentOutput defines the output for the lorekeep_learn_recent tool.
type LearnRecentOutput struct {
	Success bool     `json:"success" jsonschema:"Whether the batch completed"`
	Message string   `json:"message" jsonschema:"Human-readable result"`
	Learned int      `json:"learned" jsonschema:"Commits newly learned"`
	Skipped int      `json:"skipped" jsonschema:"Commits already known"`
	Failed  int      `json:"failed" jsonschema:"Commits that could not be learned"`
	Errors  []string `json:"errors,omitempty" jsonschema:"Per-commit failure reasons"`
}

// ReportErrorInput defines the input for the lorekeep_report_error tool.
type ReportErrorInput struct {
	ErrorMessage string   `json:"error_message" jsonschema:"The raw error message"`
	ErrorType    string   `json:"error_type,omitempty" jsonschema:"Coarse error classification (runtime, build, http, ...)"`
	Solution     string   `json:"solution" jsonschema:"What fixed the error"`
	SolutionCode string   `json:"solution_code,omitempty" jsonschema:"Code snippet of the fix"`
	FilesChanged []string `json:"files_changed,omitempty" jsonschema:"Files touched by the fix"`
	Steps        []string `json:"steps,omitempty" jsonschema:"Ordered fix steps"`
	Tags         []string `json:"tags,omitempty" jsonschema:"Free-form tags"`
}

// ReportErrorOutput defines the output for the lorekeep_report_error tool.
type ReportErrorOutput struct {
	Success    bool   `json:"success" jsonschema:"Whether the report was stored"`
	Message    string `json:"message" jsonschema:"Human-readable result"`
	SolutionID int64  `json:"solution_id,omitempty" jsonschema:"ID of the stored solution"`
}

// FindSolutionsInput defines the input for the lorekeep_find_solutions tool.
type FindSolutionsInput struct {
	ErrorMessage string `json:"error_message" jsonschema:"The raw error message to match"`
	ErrorType    string `json:"error_type,omitempty" jsonschema:"Restrict candidates to this error type"`
	FilePath     string `json:"file_path,omitempty" jsonschema:"File where the error occurred, for context"`
	Limit        int    `json:"limit,omitempty" jsonschema:"Maximum candidates to return (default 5)"`
}

// FindSolutionsOutput defines the output for the lorekeep_find_solutions tool.
type FindSolutionsOutput struct {
	Success    bool                  `json:"success" jsonschema:"Whether the lookup ran"`
	Message    string                `json:"message" jsonschema:"Human-readable result"`
	Suggestion *solutions.Suggestion `json:"suggestion,omitempty" jsonschema:"Built-in advice when the error matches a well-known signature"`
	Matches    []solutions.Match     `json:"matches,omitempty" jsonschema:"Ranked learned candidates"`
	Count      int                   `json:"count" jsonschema:"Number of learned candidates"`
}

// MarkOutcomeInput defines the input for the lorekeep_mark_outcome tool.
type MarkOutcomeInput struct {
	SolutionID int64 `json:"solution_id" jsonschema:"ID of the solution that was tried"`
	Succeeded  bool  `json:"succeeded" jsonschema:"Whether the solution worked"`
}

// MarkOutcomeOutput defines the output for the lorekeep_mark_outcome tool.
type MarkOutcomeOutput struct {
	Success bool   `json:"success" jsonschema:"Whether the outcome was recorded"`
	Message string `json:"message" jsonschema:"Human-readable result"`
}

// SyncInput defines the input for the lorekeep_sync tool.
type SyncInput struct {
	Mode string `json:"mode,omitempty" jsonschema:"Sync mode: full, incremental, bidirectional, or import (default incremental)"`
}

// SyncOutput defines the output for the lorekeep_sync tool.
type SyncOutput struct {
	Success   bool           `json:"success" jsonschema:"Whether the pass completed"`
	Message   string         `json:"message" jsonschema:"Human-readable result"`
	Kind      string         `json:"kind,omitempty" jsonschema:"full or incremental"`
	Direction string         `json:"direction,omitempty" jsonschema:"import, export, or bidirectional"`
	Counts    map[string]int `json:"counts,omitempty" jsonschema:"Per-category record counts"`
	GraphSize int            `json:"graph_size" jsonschema:"Records in the external graph after the pass"`
}

// PatternStatusInput defines the input for the lorekeep_pattern_status tool.
type PatternStatusInput struct{}

// PatternStatusOutput defines the output for the lorekeep_pattern_status tool.
type PatternStatusOutput struct {
	Success bool                       `json:"success" jsonschema:"Whether the check ran"`
	Message string                     `json:"message" jsonschema:"One-line freshness summary"`
	Current []freshness.Classification `json:"current,omitempty" jsonschema:"Patterns declared and stored"`
	New     []freshness.Classification `json:"new,omitempty" jsonschema:"Patterns declared but not yet learned"`
	Missing []freshness.Classification `json:"missing,omitempty" jsonschema:"Patterns stored but no longer declared"`
}

// StatsInput defines the input for the lorekeep_stats tool.
type StatsInput struct{}

// StatsOutput defines the output for the lorekeep_stats tool.
type StatsOutput struct {
	Success  bool                    `json:"success" jsonschema:"Whether the stats were read"`
	Message  string                  `json:"message" jsonschema:"Human-readable summary"`
	Stats    *knowledge.Stats        `json:"stats,omitempty" jsonschema:"Per-table row counts"`
	LastSync *knowledge.SyncLogEntry `json:"last_sync,omitempty" jsonschema:"Most recent sync pass"`
}
