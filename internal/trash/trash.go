// Package trash implements soft delete for the normalized store.
//
// Trashed subtrees live inside the State, so trashing and restoring are
// ordinary state transitions: every function takes a snapshot and returns
// a new one, leaving the input untouched.
package trash

import (
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

const (
	// DefaultRetentionDays is how long trashed entries are kept by Cleanup.
	DefaultRetentionDays = 30
	// ExpiringSoonDays is the window GetStats uses for ExpiringSoon.
	ExpiringSoonDays = 7
)

const day = 24 * time.Hour

// Result is the outcome of MoveToTrash or Restore.
type Result struct {
	State *vault.State
	Entry vault.TrashedEntity
	// Warnings lists references that could not be re-attached on restore.
	Warnings []vault.Warning
}

// MoveToTrash detaches id and everything it owns from the live tables and
// records it in the trash with its original position. References to the
// subtree held elsewhere are stripped and remembered for Restore.
func MoveToTrash(s *vault.State, id string, now time.Time) (Result, error) {
	tx := s.Begin()
	detached, err := tx.Detach(id)
	if err != nil {
		return Result{State: s}, err
	}
	entry := vault.TrashedEntity{
		ID:               id,
		Kind:             detached.Subtree.Kind(),
		Subtree:          detached.Subtree,
		TrashedAt:        now.UTC(),
		OriginalParentID: detached.Parent.ParentID,
		OriginalSlot:     detached.Parent.Slot,
		OriginalIndex:    detached.Index,
		StrippedRefs:     detached.StrippedRefs,
	}
	tx.PutTrash(entry)
	return Result{State: tx.Commit(), Entry: entry}, nil
}

// RestoreOptions overrides where a trashed entry goes back.
type RestoreOptions struct {
	// ParentID selects a new parent. Empty means the original parent.
	ParentID string
	// Slot defaults to the original slot.
	Slot ir.Slot
	// Rules checks the new placement. Nil selects rules.Default().
	Rules *rules.Table
}

// Restore puts a trashed subtree back into the live tables. Without a
// ParentID it returns to its original parent at its original index
// (clamped to the current list length). References stripped at trash
// time are re-attached when their referrer still exists.
func Restore(s *vault.State, id string, opts RestoreOptions) (Result, error) {
	entry, ok := s.TrashEntry(id)
	if !ok {
		return Result{State: s}, vault.NewError(ir.ErrEntityNotFound, id, "%s not found in trash", id)
	}
	table := opts.Rules
	if table == nil {
		table = rules.Default()
	}

	parent, slot, index := entry.OriginalParentID, entry.OriginalSlot, entry.OriginalIndex
	if opts.ParentID != "" && opts.ParentID != entry.OriginalParentID {
		parent, index = opts.ParentID, -1
	}
	if opts.Slot != "" {
		slot = opts.Slot
	}
	if slot == "" {
		slot = ir.SlotItems
	}

	parentKind, live := s.Kind(parent)
	if !live {
		return Result{State: s}, vault.NewError(ir.ErrEntityNotFound, parent, "parent %s of trashed %s not found", parent, id)
	}
	if !table.CanContain(parentKind, slot, entry.Kind) {
		return Result{State: s}, vault.NewError(ir.ErrInvalidChildType, id, "%s cannot hold %s in %s", parentKind, entry.Kind, slot)
	}

	tx := s.Begin()
	warnings, err := tx.Graft(parent, slot, index, entry.Subtree)
	if err != nil {
		return Result{State: s}, err
	}
	warnings = append(warnings, tx.RestoreRefs(entry.StrippedRefs)...)
	tx.DeleteTrash(id)
	return Result{State: tx.Commit(), Entry: entry, Warnings: warnings}, nil
}

// Purge permanently deletes one trashed entry.
func Purge(s *vault.State, id string) (*vault.State, error) {
	tx := s.Begin()
	if !tx.DeleteTrash(id) {
		return s, vault.NewError(ir.ErrEntityNotFound, id, "%s not found in trash", id)
	}
	return tx.Commit(), nil
}

// EmptyTrash purges every trashed entry and returns the purged IDs, oldest
// first. An empty trash returns s unchanged.
func EmptyTrash(s *vault.State) (*vault.State, []string) {
	tx := s.Begin()
	var purged []string
	for _, entry := range s.TrashEntries() {
		tx.DeleteTrash(entry.ID)
		purged = append(purged, entry.ID)
	}
	return tx.Commit(), purged
}

// Cleanup purges entries trashed more than retentionDays before now and
// leaves newer ones alone. A non-positive retentionDays selects
// DefaultRetentionDays.
func Cleanup(s *vault.State, retentionDays int, now time.Time) (*vault.State, []string) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := now.Add(-time.Duration(retentionDays) * day)
	tx := s.Begin()
	var purged []string
	for _, entry := range s.TrashEntries() {
		if entry.TrashedAt.Before(cutoff) {
			tx.DeleteTrash(entry.ID)
			purged = append(purged, entry.ID)
		}
	}
	return tx.Commit(), purged
}

// Stats summarizes the trash.
type Stats struct {
	ItemCount   int             `json:"itemCount"`
	Oldest      *time.Time      `json:"oldestItem,omitempty"`
	Newest      *time.Time      `json:"newestItem,omitempty"`
	ItemsByType map[ir.Kind]int `json:"itemsByType"`
	// ExpiringSoon counts entries due for cleanup within ExpiringSoonDays
	// under the default retention.
	ExpiringSoon int `json:"expiringSoon"`
}

// GetStats reads trash statistics as of now.
func GetStats(s *vault.State, now time.Time) Stats {
	entries := s.TrashEntries()
	st := Stats{ItemCount: len(entries), ItemsByType: make(map[ir.Kind]int)}
	if len(entries) == 0 {
		return st
	}
	oldest, newest := entries[0].TrashedAt, entries[len(entries)-1].TrashedAt
	st.Oldest, st.Newest = &oldest, &newest
	for _, entry := range entries {
		st.ItemsByType[entry.Kind]++
		expires := entry.TrashedAt.Add(DefaultRetentionDays * day)
		if expires.Sub(now) <= ExpiringSoonDays*day {
			st.ExpiringSoon++
		}
	}
	return st
}
