// Package freshness diffs the declared reference patterns against the
// stored code patterns. It is read-only: a check never writes to the store.
package freshness

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lorekeep/lorekeep/internal/knowledge"
)

// ReferencePattern is one declared pattern from the reference source.
type ReferencePattern struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type,omitempty"`
	Category    string `yaml:"category" json:"category,omitempty"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Source yields the declared set of reference patterns.
type Source interface {
	Patterns(ctx context.Context) ([]ReferencePattern, error)
}

// FileSource reads reference patterns from a YAML file of the form:
//
//	patterns:
//	  - name: session-guard
//	    type: implementation
//	    description: check the session before dereferencing
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the given YAML path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Patterns loads and returns the declared patterns. A missing file is not
// an error: the declared set is simply empty.
func (f *FileSource) Patterns(ctx context.Context) ([]ReferencePattern, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read reference patterns: %w", err)
	}

	var doc struct {
		Patterns []ReferencePattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse reference patterns: %w", err)
	}
	return doc.Patterns, nil
}

// Status classifies one pattern name.
type Status string

const (
	StatusCurrent Status = "current" // declared and stored
	StatusNew     Status = "new"     // declared but not yet stored
	StatusMissing Status = "missing" // stored but no longer declared
)

// Classification is the verdict for one pattern name. Exactly one of
// Reference/Stored may be nil depending on Status.
type Classification struct {
	Name      string                 `json:"name"`
	Status    Status                 `json:"status"`
	Reference *ReferencePattern      `json:"reference,omitempty"`
	Stored    *knowledge.CodePattern `json:"stored,omitempty"`
}

// Report holds the full classification of declared and stored patterns.
type Report struct {
	Current []Classification `json:"current,omitempty"`
	New     []Classification `json:"new,omitempty"`
	Missing []Classification `json:"missing,omitempty"`
}

// Summary renders the report as a one-line human-readable string.
func (r *Report) Summary() string {
	if len(r.New) == 0 && len(r.Missing) == 0 {
		return fmt.Sprintf("all %d reference patterns are current", len(r.Current))
	}
	return fmt.Sprintf("%d current, %d new (declared but not yet learned), %d missing (stored but no longer declared)",
		len(r.Current), len(r.New), len(r.Missing))
}

// Checker compares a reference source against the store.
type Checker struct {
	store  *knowledge.Store
	source Source
}

// NewChecker creates a Checker.
func NewChecker(store *knowledge.Store, source Source) *Checker {
	return &Checker{store: store, source: source}
}

// Check classifies every declared name as current or new and every stored
// pattern absent from the declaration as missing. Each name appears in the
// report exactly once.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	declared, err := c.source.Patterns(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := c.store.ListCodePatterns(ctx)
	if err != nil {
		return nil, err
	}

	storedByName := make(map[string]*knowledge.CodePattern, len(stored))
	for i := range stored {
		storedByName[stored[i].Name] = &stored[i]
	}

	report := &Report{}
	declaredNames := make(map[string]bool, len(declared))
	for i := range declared {
		ref := &declared[i]
		if declaredNames[ref.Name] {
			continue
		}
		declaredNames[ref.Name] = true

		if p, ok := storedByName[ref.Name]; ok {
			report.Current = append(report.Current, Classification{
				Name: ref.Name, Status: StatusCurrent, Reference: ref, Stored: p,
			})
		} else {
			report.New = append(report.New, Classification{
				Name: ref.Name, Status: StatusNew, Reference: ref,
			})
		}
	}

	for i := range stored {
		if !declaredNames[stored[i].Name] {
			report.Missing = append(report.Missing, Classification{
				Name: stored[i].Name, Status: StatusMissing, Stored: &stored[i],
			})
		}
	}
	sort.Slice(report.Missing, func(i, j int) bool {
		return report.Missing[i].Name < report.Missing[j].Name
	})

	return report, nil
}
