// Package knowledge provides the embedded relational store that holds
// everything lorekeep learns: entities, observations, relations, error
// solutions, commit records, code patterns, and the sync audit log.
package knowledge

import "time"

// Entity is a named knowledge node: a rule, pattern, module, or concept.
// Name is the natural key shared with the external knowledge graph.
type Entity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Observation is an immutable fact attached to an entity.
// The (EntityID, Content) pair is unique; re-asserting the same fact is a no-op.
type Observation struct {
	ID         int64     `json:"id"`
	EntityID   string    `json:"entity_id"`
	Content    string    `json:"content"`
	Source     string    `json:"source,omitempty"`
	SourceRef  string    `json:"source_ref,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// Relation is a directed, typed edge between two entities, keyed by entity
// name on both ends. The (From, To, Type) triple is unique; re-creating
// updates Strength.
type Relation struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Type      string    `json:"type"`
	Strength  float64   `json:"strength"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorSolution pairs a normalized error pattern with a recorded fix.
// ErrorPattern is derived from ErrorMessage by solutions.Normalize and is
// the join key for matching; the raw message is retained for display.
type ErrorSolution struct {
	ID                  int64     `json:"id"`
	ErrorPattern        string    `json:"error_pattern"`
	ErrorMessage        string    `json:"error_message"`
	ErrorType           string    `json:"error_type,omitempty"`
	FilePattern         string    `json:"file_pattern,omitempty"`
	SolutionDescription string    `json:"solution_description"`
	SolutionCode        string    `json:"solution_code,omitempty"`
	SolutionFiles       []string  `json:"solution_files,omitempty"`
	SolutionSteps       []string  `json:"solution_steps,omitempty"`
	RelatedPattern      string    `json:"related_pattern,omitempty"`
	Tags                []string  `json:"tags,omitempty"`
	SuccessCount        int       `json:"success_count"`
	FailCount           int       `json:"fail_count"`
	CommitHash          string    `json:"commit_hash,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SuccessRate returns successes over total outcomes.
// A solution with no recorded outcomes is treated as fully successful.
func (s ErrorSolution) SuccessRate() float64 {
	total := s.SuccessCount + s.FailCount
	if total == 0 {
		return 1.0
	}
	return float64(s.SuccessCount) / float64(total)
}

// CommitRecord is a structured view of one learned commit.
// Records are immutable once learned except for metadata-block-derived
// fields, refreshed if the same hash is re-learned.
type CommitRecord struct {
	Hash             string            `json:"hash"`
	Message          string            `json:"message"`
	Type             string            `json:"type,omitempty"`
	Module           string            `json:"module,omitempty"`
	Identity         string            `json:"identity,omitempty"`
	Author           string            `json:"author"`
	FilesChanged     []string          `json:"files_changed,omitempty"`
	Insertions       int               `json:"insertions"`
	Deletions        int               `json:"deletions"`
	HasMetadataBlock bool              `json:"has_metadata_block"`
	MetadataBlock    map[string]string `json:"metadata_block,omitempty"`
	IsBreaking       bool              `json:"is_breaking"`
	CommittedAt      time.Time         `json:"committed_at"`
	LearnedAt        time.Time         `json:"learned_at"`
}

// CodePattern is a reusable, named implementation pattern learned from
// commits or declared by the reference source. Name is unique; repeated
// learning increments UsageCount and merges optional text fields without
// overwriting non-empty values with empty ones.
type CodePattern struct {
	Name               string    `json:"name"`
	PatternType        string    `json:"pattern_type,omitempty"`
	Category           string    `json:"category,omitempty"`
	Description        string    `json:"description,omitempty"`
	ExampleCode        string    `json:"example_code,omitempty"`
	AntiPattern        string    `json:"anti_pattern,omitempty"`
	AntiPatternReason  string    `json:"anti_pattern_reason,omitempty"`
	RelatedFiles       []string  `json:"related_files,omitempty"`
	Tags               []string  `json:"tags,omitempty"`
	UsageCount         int       `json:"usage_count"`
	EffectivenessScore float64   `json:"effectiveness_score"`
	SourceCommit       string    `json:"source_commit,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SyncKind identifies the type of a sync pass.
type SyncKind string

const (
	SyncFull        SyncKind = "full"
	SyncIncremental SyncKind = "incremental"
)

// SyncDirection identifies which way knowledge flowed during a pass.
type SyncDirection string

const (
	DirectionImport        SyncDirection = "import"
	DirectionExport        SyncDirection = "export"
	DirectionBidirectional SyncDirection = "bidirectional"
)

// SyncLogEntry is an append-only audit row recorded for every sync pass,
// successful or not.
type SyncLogEntry struct {
	ID           int64          `json:"id"`
	Kind         SyncKind       `json:"kind"`
	Direction    SyncDirection  `json:"direction"`
	Counts       map[string]int `json:"counts,omitempty"`
	Status       string         `json:"status"` // "success" or "error"
	ErrorMessage string         `json:"error_message,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	GraphSize    int            `json:"graph_size"`
	SyncedAt     time.Time      `json:"synced_at"`
}

// Stats reports per-table row counts for the health surface.
type Stats struct {
	Entities       int `json:"entities"`
	Observations   int `json:"observations"`
	Relations      int `json:"relations"`
	ErrorSolutions int `json:"error_solutions"`
	Commits        int `json:"commits"`
	CodePatterns   int `json:"code_patterns"`
	SyncPasses     int `json:"sync_passes"`
}
