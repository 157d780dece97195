package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// ErrNoSnapshot is returned when the store holds no snapshot.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Snapshot is one saved State with its summary columns.
type Snapshot struct {
	Seq         int64     `json:"seq"`
	Fingerprint string    `json:"fingerprint"`
	RootID      string    `json:"rootId"`
	EntityCount int       `json:"entityCount"`
	TrashCount  int       `json:"trashCount"`
	SavedAt     time.Time `json:"savedAt"`

	// State is nil in ListSnapshots results.
	State *vault.State `json:"-"`
}

// LoadLatestSnapshot returns the snapshot with the highest seq.
// Returns ErrNoSnapshot if the store is empty.
func (s *Store) LoadLatestSnapshot(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, seq, root_id, record, entity_count, trash_count, saved_at
		FROM snapshots
		ORDER BY seq DESC
		LIMIT 1
	`)
	return scanSnapshotRow(row)
}

// ReadSnapshot returns the snapshot with the given fingerprint.
// Returns ErrNoSnapshot if not found.
func (s *Store) ReadSnapshot(ctx context.Context, fingerprint string) (Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, seq, root_id, record, entity_count, trash_count, saved_at
		FROM snapshots
		WHERE fingerprint = ?
	`, fingerprint)
	return scanSnapshotRow(row)
}

// ListSnapshots returns snapshot summaries, oldest first, without decoding
// their records.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, seq, root_id, entity_count, trash_count, saved_at
		FROM snapshots
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		var savedAt int64
		if err := rows.Scan(&snap.Fingerprint, &snap.Seq, &snap.RootID, &snap.EntityCount, &snap.TrashCount, &savedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.SavedAt = fromUnixNano(savedAt)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

func scanSnapshotRow(row *sql.Row) (Snapshot, error) {
	var snap Snapshot
	var record string
	var savedAt int64
	err := row.Scan(&snap.Fingerprint, &snap.Seq, &snap.RootID, &record, &snap.EntityCount, &snap.TrashCount, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.SavedAt = fromUnixNano(savedAt)
	snap.State, err = unmarshalRecord(record)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", snap.Fingerprint, err)
	}
	return snap, nil
}

// ProvenanceFilter narrows QueryProvenance. Zero fields match everything.
type ProvenanceFilter struct {
	EntityID string
	// Since keeps entries at or after this instant.
	Since time.Time
	Action string
	// Property keeps entries with a change to this property.
	Property string
	// Limit keeps only the most recent Limit entries.
	Limit int
}

// ReadProvenance returns an entity's entries in log order.
// Returns an empty slice (not nil) if the entity has no entries.
func (s *Store) ReadProvenance(ctx context.Context, entityID string) ([]provenance.Entry, error) {
	return s.QueryProvenance(ctx, ProvenanceFilter{EntityID: entityID})
}

// ReadAllProvenance returns the whole log in (ts, seq, id) order.
func (s *Store) ReadAllProvenance(ctx context.Context) ([]provenance.Entry, error) {
	return s.QueryProvenance(ctx, ProvenanceFilter{})
}

// QueryProvenance returns the entries matching f, oldest first.
func (s *Store) QueryProvenance(ctx context.Context, f ProvenanceFilter) ([]provenance.Entry, error) {
	var where []string
	var args []any
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, toUnixNano(f.Since))
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.Property != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(changes) WHERE json_extract(value, '$.property') = ?)")
		args = append(args, f.Property)
	}

	query := "SELECT id, entity_id, ts, seq, action, changes FROM provenance_entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Limit > 0 {
		// Take the newest Limit rows, then restore log order.
		query = "SELECT * FROM (" + query + " ORDER BY ts DESC, seq DESC, id COLLATE BINARY DESC LIMIT ?)"
		args = append(args, f.Limit)
	}
	query += " ORDER BY ts ASC, seq ASC, id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	entries := []provenance.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provenance: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (provenance.Entry, error) {
	var e provenance.Entry
	var ts int64
	var changes string
	if err := rows.Scan(&e.ID, &e.EntityID, &ts, &e.Seq, &e.Action, &changes); err != nil {
		return provenance.Entry{}, fmt.Errorf("scan provenance: %w", err)
	}
	e.Timestamp = fromUnixNano(ts)
	var err error
	if e.Changes, err = unmarshalChanges(changes); err != nil {
		return provenance.Entry{}, fmt.Errorf("provenance %s: %w", e.ID, err)
	}
	return e, nil
}

// CountProvenance returns the number of stored entries.
func (s *Store) CountProvenance(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provenance_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count provenance: %w", err)
	}
	return n, nil
}
