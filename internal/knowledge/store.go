package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is the storage format for all timestamps. The fractional
// seconds are fixed-width: timestamps are compared as TEXT in SQL, and
// trimming trailing zeros would break the lexicographic ordering the
// incremental sync windows rely on ("...00.52Z" sorts before "...00.5Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the embedded SQLite knowledge store. Reads may proceed
// concurrently; every public write runs in a single transaction under the
// write lock.
type Store struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the knowledge store at path.
// The parent directory is created if it does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	// Reads tolerate any fractional width, including timestamps written
	// by other tools or by earlier versions of this store.
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// withTx runs fn inside a single write transaction under the write lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Entities ---

// UpsertEntity creates the named entity or updates it in place.
// A non-empty kind or description replaces the stored value; empty ones
// never truncate. New entities with no kind default to "concept".
func (s *Store) UpsertEntity(ctx context.Context, name, kind, description string) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("entity name is required")
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertEntityTx(ctx, tx, name, kind, description)
	})
	if err != nil {
		return nil, err
	}
	return s.GetEntityByName(ctx, name)
}

func upsertEntityTx(ctx context.Context, tx *sql.Tx, name, kind, description string) error {
	insertKind := kind
	if insertKind == "" {
		insertKind = "concept"
	}
	ts := now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO entities (id, name, kind, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind = CASE WHEN ? != '' THEN ? ELSE entities.kind END,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE entities.description END,
			updated_at = excluded.updated_at
	`, uuid.NewString(), name, insertKind, description, ts, ts, kind, kind)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %q: %w", name, err)
	}
	return nil
}

// GetEntityByName returns the entity with the given name, or nil if absent.
func (s *Store) GetEntityByName(ctx context.Context, name string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, description, created_at, updated_at
		FROM entities WHERE name = ?
	`, name)
	return scanEntity(row)
}

// GetEntity returns the entity with the given ID, or nil if absent.
func (s *Store) GetEntity(ctx context.Context, id string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, description, created_at, updated_at
		FROM entities WHERE id = ?
	`, id)
	return scanEntity(row)
}

func scanEntity(row *sql.Row) (*Entity, error) {
	var e Entity
	var description sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&e.ID, &e.Name, &e.Kind, &description, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}
	e.Description = description.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// ListEntities returns all entities ordered by most recently updated.
func (s *Store) ListEntities(ctx context.Context) ([]Entity, error) {
	return s.queryEntities(ctx, `
		SELECT id, name, kind, description, created_at, updated_at
		FROM entities ORDER BY updated_at DESC
	`)
}

// SearchEntities returns entities whose name or description contains the
// query, case-insensitively, ordered by most recently updated.
// An empty result is returned when nothing matches.
func (s *Store) SearchEntities(ctx context.Context, query string, limit int) ([]Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryEntities(ctx, `
		SELECT id, name, kind, description, created_at, updated_at
		FROM entities
		WHERE instr(lower(name), lower(?)) > 0
		   OR instr(lower(COALESCE(description, '')), lower(?)) > 0
		ORDER BY updated_at DESC
		LIMIT ?
	`, query, query, limit)
}

// EntitiesChangedSince returns entities created or updated after t.
func (s *Store) EntitiesChangedSince(ctx context.Context, t time.Time) ([]Entity, error) {
	return s.queryEntities(ctx, `
		SELECT id, name, kind, description, created_at, updated_at
		FROM entities WHERE updated_at > ? ORDER BY updated_at
	`, t.UTC().Format(timeLayout))
}

func (s *Store) queryEntities(ctx context.Context, query string, args ...any) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		var description sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &description, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.Description = description.String
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// DeleteEntity removes the named entity. Its observations and any relations
// touching it are removed in the same transaction via foreign keys.
func (s *Store) DeleteEntity(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE name = ?`, name); err != nil {
			return fmt.Errorf("failed to delete entity %q: %w", name, err)
		}
		return nil
	})
}

// --- Observations ---

// Observe upserts the named entity and attaches an observation to it in one
// transaction. Returns true if the observation was new; re-asserting an
// identical fact is a no-op.
func (s *Store) Observe(ctx context.Context, entityName, entityKind string, obs Observation) (bool, error) {
	if entityName == "" {
		return false, fmt.Errorf("entity name is required")
	}
	if obs.Content == "" {
		return false, fmt.Errorf("observation content is required")
	}

	var added bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertEntityTx(ctx, tx, entityName, entityKind, ""); err != nil {
			return err
		}
		var err error
		added, err = addObservationTx(ctx, tx, entityName, obs)
		return err
	})
	return added, err
}

// AddObservations attaches observations to an existing entity in one
// transaction, skipping duplicates. Returns the number actually added.
func (s *Store) AddObservations(ctx context.Context, entityName string, obs []Observation) (int, error) {
	added := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE name = ?`, entityName).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("entity not found: %s", entityName)
		}
		if err != nil {
			return fmt.Errorf("failed to check entity: %w", err)
		}

		for _, o := range obs {
			ok, err := addObservationTx(ctx, tx, entityName, o)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return nil
	})
	return added, err
}

func addObservationTx(ctx context.Context, tx *sql.Tx, entityName string, obs Observation) (bool, error) {
	confidence := obs.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO observations (entity_id, content, source, source_ref, confidence, created_at)
		SELECT id, ?, ?, ?, ?, ? FROM entities WHERE name = ?
	`, obs.Content, obs.Source, obs.SourceRef, confidence, now(), entityName)
	if err != nil {
		return false, fmt.Errorf("failed to add observation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check observation insert: %w", err)
	}
	return n > 0, nil
}

// ListObservations returns the observations attached to the named entity,
// oldest first. An unknown entity yields an empty result.
func (s *Store) ListObservations(ctx context.Context, entityName string) ([]Observation, error) {
	return s.queryObservations(ctx, `
		SELECT o.id, o.entity_id, o.content, o.source, o.source_ref, o.confidence, o.created_at
		FROM observations o JOIN entities e ON e.id = o.entity_id
		WHERE e.name = ? ORDER BY o.id
	`, entityName)
}

// SearchObservations returns observations whose content contains the query,
// case-insensitively, newest first.
func (s *Store) SearchObservations(ctx context.Context, query string, limit int) ([]Observation, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryObservations(ctx, `
		SELECT id, entity_id, content, source, source_ref, confidence, created_at
		FROM observations
		WHERE instr(lower(content), lower(?)) > 0
		ORDER BY id DESC LIMIT ?
	`, query, limit)
}

// ObservationsCreatedSince returns observations created after t.
func (s *Store) ObservationsCreatedSince(ctx context.Context, t time.Time) ([]Observation, error) {
	return s.queryObservations(ctx, `
		SELECT id, entity_id, content, source, source_ref, confidence, created_at
		FROM observations WHERE created_at > ? ORDER BY id
	`, t.UTC().Format(timeLayout))
}

func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []Observation
	for rows.Next() {
		var o Observation
		var source, sourceRef sql.NullString
		var createdAt string
		if err := rows.Scan(&o.ID, &o.EntityID, &o.Content, &source, &sourceRef, &o.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		o.Source = source.String
		o.SourceRef = sourceRef.String
		o.CreatedAt = parseTime(createdAt)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// --- Relations ---

// UpsertRelation creates a directed, typed edge between two entities,
// creating stub entities for unknown names. Re-creating an existing triple
// updates its strength.
func (s *Store) UpsertRelation(ctx context.Context, rel Relation) error {
	if rel.From == "" || rel.To == "" || rel.Type == "" {
		return fmt.Errorf("relation requires from, to, and type")
	}
	if rel.Strength == 0 {
		rel.Strength = 1.0
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return upsertRelationTx(ctx, tx, rel)
	})
}

func upsertRelationTx(ctx context.Context, tx *sql.Tx, rel Relation) error {
	// Stub out unknown endpoints so the triple always satisfies the
	// foreign keys. Imported graphs may mention relations before entities.
	for _, name := range []string{rel.From, rel.To} {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE name = ?`, name).Scan(&exists)
		if err == sql.ErrNoRows {
			if err := upsertEntityTx(ctx, tx, name, "concept", ""); err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("failed to check relation endpoint: %w", err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO relations (from_name, to_name, relation_type, strength, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(from_name, to_name, relation_type) DO UPDATE SET
			strength = excluded.strength
	`, rel.From, rel.To, rel.Type, rel.Strength, now())
	if err != nil {
		return fmt.Errorf("failed to upsert relation %s->%s: %w", rel.From, rel.To, err)
	}
	return nil
}

// ListRelations returns all relations ordered by creation.
func (s *Store) ListRelations(ctx context.Context) ([]Relation, error) {
	return s.queryRelations(ctx, `
		SELECT from_name, to_name, relation_type, strength, created_at
		FROM relations ORDER BY created_at, from_name, to_name
	`)
}

// RelationsForEntity returns relations touching the named entity in either
// direction.
func (s *Store) RelationsForEntity(ctx context.Context, name string) ([]Relation, error) {
	return s.queryRelations(ctx, `
		SELECT from_name, to_name, relation_type, strength, created_at
		FROM relations WHERE from_name = ? OR to_name = ?
		ORDER BY created_at
	`, name, name)
}

// GetRelation returns one relation triple, or nil if absent.
func (s *Store) GetRelation(ctx context.Context, from, to, relType string) (*Relation, error) {
	rels, err := s.queryRelations(ctx, `
		SELECT from_name, to_name, relation_type, strength, created_at
		FROM relations WHERE from_name = ? AND to_name = ? AND relation_type = ?
	`, from, to, relType)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, nil
	}
	return &rels[0], nil
}

// RelationsCreatedSince returns relations created after t.
func (s *Store) RelationsCreatedSince(ctx context.Context, t time.Time) ([]Relation, error) {
	return s.queryRelations(ctx, `
		SELECT from_name, to_name, relation_type, strength, created_at
		FROM relations WHERE created_at > ? ORDER BY created_at
	`, t.UTC().Format(timeLayout))
}

func (s *Store) queryRelations(ctx context.Context, query string, args ...any) ([]Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var rels []Relation
	for rows.Next() {
		var r Relation
		var createdAt string
		if err := rows.Scan(&r.From, &r.To, &r.Type, &r.Strength, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// DeleteRelation removes one relation triple.
func (s *Store) DeleteRelation(ctx context.Context, from, to, relType string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM relations WHERE from_name = ? AND to_name = ? AND relation_type = ?
		`, from, to, relType); err != nil {
			return fmt.Errorf("failed to delete relation: %w", err)
		}
		return nil
	})
}
