// Package backup takes timestamped copies of the external graph file before
// destructive writes and prunes old copies.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	filePrefix = "graph-"
	fileSuffix = ".jsonl"
	timeFormat = "20060102-150405.000"
)

// Info holds metadata for one backup file.
type Info struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Snapshot copies src into dir under a timestamped name and returns the
// backup path. A missing source file means there is nothing to protect:
// returns "" with no error.
func Snapshot(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open graph file: %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := filePrefix + time.Now().UTC().Format(timeFormat) + fileSuffix
	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to copy graph file: %w", err)
	}
	return dst, nil
}

// List scans dir for graph backups and returns them sorted newest-first.
// The timestamp is embedded in the filename, so name order is time order.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// Prune deletes all but the keep most recent backups and returns the paths
// it removed. keep <= 0 means keep everything.
func Prune(dir string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	backups, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("failed to remove %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

func isBackupFile(name string) bool {
	return len(name) > len(filePrefix)+len(fileSuffix) &&
		name[:len(filePrefix)] == filePrefix &&
		name[len(name)-len(fileSuffix):] == fileSuffix
}
