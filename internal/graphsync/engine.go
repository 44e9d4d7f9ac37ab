// Package graphsync reconciles the knowledge store with the external
// knowledge-graph file shared with other tools. Three passes exist: import
// (file to store), full export (store to file, backup first), and
// incremental export (merge the delta since the last successful pass into
// the file). Every pass appends a sync audit row whether it succeeds or not.
package graphsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lorekeep/lorekeep/internal/backup"
	"github.com/lorekeep/lorekeep/internal/knowledge"
)

// ErrSyncInFlight is returned when a pass is requested while another is
// still running. The caller decides whether to retry; the engine never
// queues silently.
var ErrSyncInFlight = errors.New("a sync pass is already running")

// Result summarizes one completed pass.
type Result struct {
	Kind      knowledge.SyncKind      `json:"kind"`
	Direction knowledge.SyncDirection `json:"direction"`
	Counts    map[string]int          `json:"counts"`
	GraphSize int                     `json:"graph_size"`
	Duration  time.Duration           `json:"duration"`
}

// Engine owns the external graph file. At most one pass runs at a time.
type Engine struct {
	store       *knowledge.Store
	graphPath   string
	backupDir   string
	keepBackups int
	logger      *slog.Logger

	mu sync.Mutex
}

// NewEngine creates a sync engine over store and the graph file at graphPath.
func NewEngine(store *knowledge.Store, graphPath, backupDir string, keepBackups int, logger *slog.Logger) *Engine {
	return &Engine{
		store:       store,
		graphPath:   graphPath,
		backupDir:   backupDir,
		keepBackups: keepBackups,
		logger:      logger,
	}
}

// Import reads the external graph into the store. Entity-name and relation
// collisions merge rather than fail and are counted separately from new
// records; malformed lines are skipped and counted.
func (e *Engine) Import(ctx context.Context) (*Result, error) {
	return e.run(ctx, knowledge.SyncFull, knowledge.DirectionImport, e.importPass)
}

// FullExport re-derives the whole external graph from the store, backing up
// the previous file first and writing the new one atomically.
func (e *Engine) FullExport(ctx context.Context) (*Result, error) {
	return e.run(ctx, knowledge.SyncFull, knowledge.DirectionExport, e.fullExportPass)
}

// IncrementalExport merges the changes since the last successful pass into
// the current external file. With no prior successful pass the window starts
// at the epoch, which degrades to a full export in content but is still
// logged as incremental.
func (e *Engine) IncrementalExport(ctx context.Context) (*Result, error) {
	return e.run(ctx, knowledge.SyncIncremental, knowledge.DirectionExport, e.incrementalPass)
}

// Bidirectional imports first, then exports everything back out, so freshly
// imported knowledge is immediately reflected in the external file.
func (e *Engine) Bidirectional(ctx context.Context) (*Result, error) {
	return e.run(ctx, knowledge.SyncFull, knowledge.DirectionBidirectional, func(ctx context.Context) (map[string]int, int, error) {
		counts, _, err := e.importPass(ctx)
		if err != nil {
			return counts, 0, err
		}
		exportCounts, size, err := e.fullExportPass(ctx)
		for k, v := range exportCounts {
			counts["exported_"+k] = v
		}
		return counts, size, err
	})
}

// run serializes passes, times them, and always appends the audit row.
func (e *Engine) run(ctx context.Context, kind knowledge.SyncKind, direction knowledge.SyncDirection, pass func(context.Context) (map[string]int, int, error)) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, ErrSyncInFlight
	}
	defer e.mu.Unlock()

	start := time.Now()
	counts, size, err := pass(ctx)
	elapsed := time.Since(start)

	// The audit row carries the pass START time: the delta was read at the
	// start, so a store write landing mid-pass must still be inside the
	// next incremental window.
	entry := knowledge.SyncLogEntry{
		Kind:       kind,
		Direction:  direction,
		Counts:     counts,
		Status:     "success",
		DurationMs: elapsed.Milliseconds(),
		GraphSize:  size,
		SyncedAt:   start.UTC(),
	}
	if err != nil {
		entry.Status = "error"
		entry.ErrorMessage = err.Error()
	}
	if logErr := e.store.AppendSyncLog(ctx, entry); logErr != nil {
		e.logger.Warn("failed to append sync log", "error", logErr)
	}

	if err != nil {
		e.logger.Error("sync pass failed", "kind", kind, "direction", direction, "error", err)
		return nil, err
	}
	e.logger.Info("sync pass complete",
		"kind", kind, "direction", direction, "graph_size", size, "duration", elapsed)
	return &Result{Kind: kind, Direction: direction, Counts: counts, GraphSize: size, Duration: elapsed}, nil
}

func (e *Engine) importPass(ctx context.Context) (map[string]int, int, error) {
	records, skipped, err := readGraph(e.graphPath)
	if err != nil {
		return nil, 0, err
	}

	counts := map[string]int{"malformed": skipped}
	for _, rec := range records {
		switch rec.Type {
		case recordEntity:
			existing, err := e.store.GetEntityByName(ctx, rec.Name)
			if err != nil {
				return counts, 0, fmt.Errorf("failed to check entity %s: %w", rec.Name, err)
			}
			if _, err := e.store.UpsertEntity(ctx, rec.Name, rec.EntityType, ""); err != nil {
				return counts, 0, fmt.Errorf("failed to import entity %s: %w", rec.Name, err)
			}
			if existing != nil {
				counts["entities_merged"]++
			} else {
				counts["entities"]++
			}
			obs := make([]knowledge.Observation, 0, len(rec.Observations))
			for _, content := range rec.Observations {
				if content == "" {
					continue
				}
				obs = append(obs, knowledge.Observation{Content: content, Source: "graph-import"})
			}
			if len(obs) > 0 {
				added, err := e.store.AddObservations(ctx, rec.Name, obs)
				if err != nil {
					return counts, 0, fmt.Errorf("failed to import observations for %s: %w", rec.Name, err)
				}
				counts["observations"] += added
				counts["observations_skipped"] += len(obs) - added
			}
		case recordRelation:
			existing, err := e.store.GetRelation(ctx, rec.From, rec.To, rec.RelationType)
			if err != nil {
				return counts, 0, fmt.Errorf("failed to check relation %s->%s: %w", rec.From, rec.To, err)
			}
			rel := knowledge.Relation{From: rec.From, To: rec.To, Type: rec.RelationType, Strength: 1}
			if err := e.store.UpsertRelation(ctx, rel); err != nil {
				return counts, 0, fmt.Errorf("failed to import relation %s->%s: %w", rec.From, rec.To, err)
			}
			if existing != nil {
				counts["relations_merged"]++
			} else {
				counts["relations"]++
			}
		}
	}
	return counts, len(records), nil
}

func (e *Engine) fullExportPass(ctx context.Context) (map[string]int, int, error) {
	if _, err := backup.Snapshot(e.graphPath, e.backupDir); err != nil {
		return nil, 0, err
	}
	if _, err := backup.Prune(e.backupDir, e.keepBackups); err != nil {
		e.logger.Warn("failed to prune graph backups", "error", err)
	}

	records, counts, err := e.deriveRecords(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := writeGraph(e.graphPath, records); err != nil {
		return counts, 0, err
	}
	return counts, len(records), nil
}

func (e *Engine) incrementalPass(ctx context.Context) (map[string]int, int, error) {
	since, ok, err := e.store.LastSuccessfulSync(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		since = time.Time{}
		e.logger.Debug("no prior successful sync, exporting from epoch")
	}

	current, skipped, err := readGraph(e.graphPath)
	if err != nil {
		return nil, 0, err
	}

	// Index the file's current representation so the delta merges into it
	// instead of overwriting.
	entityIdx := make(map[string]int)
	relationSeen := make(map[string]bool)
	merged := make([]Record, len(current))
	copy(merged, current)
	for i, rec := range merged {
		switch rec.Type {
		case recordEntity:
			entityIdx[rec.Name] = i
		case recordRelation:
			relationSeen[relationKey(rec.From, rec.To, rec.RelationType)] = true
		}
	}

	counts := map[string]int{"malformed": skipped}

	changed, err := e.store.EntitiesChangedSince(ctx, since)
	if err != nil {
		return counts, 0, err
	}
	for _, ent := range changed {
		rec, err := e.entityRecord(ctx, ent)
		if err != nil {
			return counts, 0, err
		}
		if i, ok := entityIdx[ent.Name]; ok {
			merged[i] = mergeEntityRecords(merged[i], rec)
		} else {
			entityIdx[ent.Name] = len(merged)
			merged = append(merged, rec)
		}
		counts["entities"]++
	}

	newRels, err := e.store.RelationsCreatedSince(ctx, since)
	if err != nil {
		return counts, 0, err
	}
	for _, rel := range newRels {
		key := relationKey(rel.From, rel.To, rel.Type)
		if relationSeen[key] {
			continue
		}
		relationSeen[key] = true
		merged = append(merged, Record{
			Type: recordRelation, From: rel.From, To: rel.To, RelationType: rel.Type,
		})
		counts["relations"]++
	}

	if err := writeGraph(e.graphPath, merged); err != nil {
		return counts, 0, err
	}
	return counts, len(merged), nil
}

// deriveRecords rebuilds the full external representation from the store.
func (e *Engine) deriveRecords(ctx context.Context) ([]Record, map[string]int, error) {
	entities, err := e.store.ListEntities(ctx)
	if err != nil {
		return nil, nil, err
	}
	relations, err := e.store.ListRelations(ctx)
	if err != nil {
		return nil, nil, err
	}

	counts := map[string]int{"entities": len(entities), "relations": len(relations)}
	records := make([]Record, 0, len(entities)+len(relations))
	for _, ent := range entities {
		rec, err := e.entityRecord(ctx, ent)
		if err != nil {
			return nil, counts, err
		}
		counts["observations"] += len(rec.Observations)
		records = append(records, rec)
	}
	for _, rel := range relations {
		records = append(records, Record{
			Type: recordRelation, From: rel.From, To: rel.To, RelationType: rel.Type,
		})
	}
	return records, counts, nil
}

func (e *Engine) entityRecord(ctx context.Context, ent knowledge.Entity) (Record, error) {
	obs, err := e.store.ListObservations(ctx, ent.Name)
	if err != nil {
		return Record{}, fmt.Errorf("failed to list observations for %s: %w", ent.Name, err)
	}
	contents := make([]string, 0, len(obs))
	for _, o := range obs {
		contents = append(contents, o.Content)
	}
	return Record{
		Type:         recordEntity,
		Name:         ent.Name,
		EntityType:   ent.Kind,
		Observations: contents,
	}, nil
}

// mergeEntityRecords unions the observations of the file's record with the
// store-derived one. The store wins on entity type; nothing is truncated.
func mergeEntityRecords(file, store Record) Record {
	out := store
	if out.EntityType == "" {
		out.EntityType = file.EntityType
	}
	seen := make(map[string]bool, len(out.Observations))
	for _, o := range out.Observations {
		seen[o] = true
	}
	for _, o := range file.Observations {
		if !seen[o] {
			seen[o] = true
			out.Observations = append(out.Observations, o)
		}
	}
	return out
}
