// Package gitsource reads commit history from a local git repository by
// shelling out to the git binary. It is the only place that touches git;
// everything downstream consumes the Commit struct.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownCommit is returned when a requested hash does not resolve to a
// commit in the repository.
var ErrUnknownCommit = errors.New("unknown commit")

// Commit is one commit as read from the repository.
type Commit struct {
	Hash         string    `json:"hash"`
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	ChangedFiles []string  `json:"changed_files"`
	Insertions   int       `json:"insertions"`
	Deletions    int       `json:"deletions"`
}

// Source provides commit history. The exec-git implementation is the real
// one; tests substitute an in-memory source.
type Source interface {
	Commit(ctx context.Context, hash string) (*Commit, error)
	Recent(ctx context.Context, n int) ([]Commit, error)
}

// GitSource reads commits from the repository at repoPath using the git CLI.
type GitSource struct {
	repoPath string
}

// New creates a GitSource for the repository at repoPath.
func New(repoPath string) *GitSource {
	return &GitSource{repoPath: repoPath}
}

// Record and field separators for the log format. Control characters never
// appear in commit metadata, so splitting on them is unambiguous even for
// multi-line messages.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
	logFormat = recordSep + "%H" + fieldSep + "%an" + fieldSep + "%aI" + fieldSep + "%B" + fieldSep
)

// Commit returns the single commit identified by hash (full or abbreviated).
func (g *GitSource) Commit(ctx context.Context, hash string) (*Commit, error) {
	out, err := g.run(ctx, "log", "-n", "1", "--format="+logFormat, "--numstat", hash)
	if err != nil {
		if strings.Contains(err.Error(), "unknown revision") || strings.Contains(err.Error(), "bad revision") {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, hash)
		}
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}
	commits, err := parseLog(out)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommit, hash)
	}
	return &commits[0], nil
}

// Recent returns up to n commits, newest first.
func (g *GitSource) Recent(ctx context.Context, n int) ([]Commit, error) {
	if n <= 0 {
		n = 10
	}
	out, err := g.run(ctx, "log", "-n", strconv.Itoa(n), "--format="+logFormat, "--numstat")
	if err != nil {
		return nil, fmt.Errorf("failed to read recent commits: %w", err)
	}
	return parseLog(out)
}

func (g *GitSource) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", g.repoPath}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}

// parseLog splits formatted git log output into commits. Each record is
// hash, author, ISO timestamp, full message, then numstat lines.
func parseLog(out string) ([]Commit, error) {
	var commits []Commit
	for _, record := range strings.Split(out, recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 4)
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed log record: %q", truncate(record, 80))
		}

		ts, err := time.Parse(time.RFC3339, fields[2])
		if err != nil {
			return nil, fmt.Errorf("bad commit timestamp %q: %w", fields[2], err)
		}

		// fields[3] is the message followed by the closing separator and
		// the numstat block.
		rest := strings.SplitN(fields[3], fieldSep, 2)
		c := Commit{
			Hash:      fields[0],
			Author:    fields[1],
			Timestamp: ts,
			Message:   strings.TrimSpace(rest[0]),
		}
		if len(rest) == 2 {
			c.ChangedFiles, c.Insertions, c.Deletions = parseNumstat(rest[1])
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// parseNumstat reads "insertions<TAB>deletions<TAB>path" lines. Binary files
// report "-" for both counts and still count as changed.
func parseNumstat(block string) (files []string, insertions, deletions int) {
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		if n, err := strconv.Atoi(parts[0]); err == nil {
			insertions += n
		}
		if n, err := strconv.Atoi(parts[1]); err == nil {
			deletions += n
		}
		files = append(files, parts[2])
	}
	return files, insertions, deletions
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
