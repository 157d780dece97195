package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/clock"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// Session is what a resumed editing session starts from: the newest
// snapshot and the full provenance log.
type Session struct {
	Snapshot   Snapshot
	Provenance []provenance.Entry
	// LastSeq is the highest provenance seq on disk. New entries must sort
	// after it.
	LastSeq int64
}

// Resume loads the newest snapshot and the provenance log. An empty store
// resumes to an empty State.
func (s *Store) Resume(ctx context.Context) (Session, error) {
	var sess Session
	snap, err := s.LoadLatestSnapshot(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		snap = Snapshot{State: vault.Empty()}
	case err != nil:
		return Session{}, fmt.Errorf("resume: %w", err)
	}
	sess.Snapshot = snap

	if sess.Provenance, err = s.ReadAllProvenance(ctx); err != nil {
		return Session{}, fmt.Errorf("resume: %w", err)
	}
	if sess.LastSeq, err = s.GetLastSeq(ctx); err != nil {
		return Session{}, fmt.Errorf("resume: %w", err)
	}
	return sess, nil
}

// Checkpoint saves the service's log and the state in one call. Entries
// already on disk are skipped.
func (s *Store) Checkpoint(ctx context.Context, st *vault.State, log *provenance.Service, c clock.Clock) (Snapshot, error) {
	if _, err := s.WriteProvenance(ctx, log.ExportHistory()); err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: %w", err)
	}
	snap, _, err := s.SaveSnapshot(ctx, st, c.Now())
	if err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: %w", err)
	}
	return snap, nil
}

// GetLastSeq returns the highest provenance seq stored, or 0.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM provenance_entries`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
