package store

import (
	"context"
	"fmt"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// SaveSnapshot stores s as the newest snapshot.
//
// Snapshots are keyed by fingerprint. Saving a state that is already stored
// does not write a second copy: the existing row gets the next seq and is
// returned with inserted=false, so LoadLatestSnapshot sees it as current.
func (s *Store) SaveSnapshot(ctx context.Context, st *vault.State, savedAt time.Time) (snap Snapshot, inserted bool, err error) {
	fp, err := vault.Fingerprint(st)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: %w", err)
	}
	record, err := marshalRecord(vault.Export(st))
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM snapshots`).Scan(&next); err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: next seq: %w", err)
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE fingerprint = ?`, fp).Scan(&existing); err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: lookup: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(fingerprint, seq, root_id, record, entity_count, trash_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET seq = excluded.seq, saved_at = excluded.saved_at
	`,
		fp,
		next,
		st.RootID(),
		record,
		st.Len(),
		st.TrashLen(),
		toUnixNano(savedAt),
	)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, false, fmt.Errorf("save snapshot: commit: %w", err)
	}

	return Snapshot{
		Seq:         next,
		Fingerprint: fp,
		RootID:      st.RootID(),
		EntityCount: st.Len(),
		TrashCount:  st.TrashLen(),
		SavedAt:     savedAt.UTC(),
		State:       st,
	}, existing == 0, nil
}

// WriteProvenance appends entries to the provenance log in one
// transaction and returns how many were new.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - entries already stored
// are silently skipped.
//
// The change set of each entry is stored as canonical JSON together with
// its content hash.
func (s *Store) WriteProvenance(ctx context.Context, entries []provenance.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write provenance: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provenance_entries
		(id, entity_id, ts, seq, action, changes, changes_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("write provenance: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range entries {
		if e.ID == "" || e.EntityID == "" {
			return 0, fmt.Errorf("write provenance: entry requires id and entityId")
		}
		changes, hash, err := marshalChanges(e.Changes)
		if err != nil {
			return 0, fmt.Errorf("write provenance %s: %w", e.ID, err)
		}
		result, err := stmt.ExecContext(ctx,
			e.ID,
			e.EntityID,
			toUnixNano(e.Timestamp),
			e.Seq,
			e.Action,
			changes,
			hash,
		)
		if err != nil {
			return 0, fmt.Errorf("write provenance %s: %w", e.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("write provenance %s: rows affected: %w", e.ID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write provenance: commit: %w", err)
	}
	return inserted, nil
}
