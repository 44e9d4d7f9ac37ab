package graphsync

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Record is one line of the external knowledge-graph file. The file carries
// two shapes distinguished by Type: entity records with name, entityType and
// observations, and relation records with from, to and relationType.
type Record struct {
	Type         string   `json:"type"`
	Name         string   `json:"name,omitempty"`
	EntityType   string   `json:"entityType,omitempty"`
	Observations []string `json:"observations,omitempty"`
	From         string   `json:"from,omitempty"`
	To           string   `json:"to,omitempty"`
	RelationType string   `json:"relationType,omitempty"`
}

const (
	recordEntity   = "entity"
	recordRelation = "relation"
)

// valid reports whether a record carries the required fields for its shape.
func (r Record) valid() bool {
	switch r.Type {
	case recordEntity:
		return r.Name != ""
	case recordRelation:
		return r.From != "" && r.To != "" && r.RelationType != ""
	default:
		return false
	}
}

// readGraph reads the external graph file. Malformed lines are skipped and
// counted, never fatal. A missing file yields an empty graph.
func readGraph(path string) (records []Record, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || !rec.valid() {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to read graph file: %w", err)
	}
	return records, skipped, nil
}

// writeGraph writes the records atomically: everything goes to a temp file
// in the same directory which then replaces the target, so a crash mid-write
// cannot leave a half-written graph behind.
func writeGraph(path string, records []Record) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create graph directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".graph-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp graph file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode graph record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush graph file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync graph file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close graph file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace graph file: %w", err)
	}
	return nil
}

// relationKey identifies a relation record for merge deduplication.
func relationKey(from, to, relType string) string {
	return from + "\x00" + to + "\x00" + relType
}
