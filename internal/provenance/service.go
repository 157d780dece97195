// Package provenance keeps the permanent audit trail of property changes.
//
// The log is append-only and independent of undo history: undoing an
// action does not remove its entries, and clearing one never touches the
// other.
package provenance

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/clock"
)

// Service records and queries provenance entries.
//
// Not safe for concurrent use; the session owns it.
type Service struct {
	clock clock.Clock
	ids   clock.IDGenerator
	seq   *clock.Sequence

	byEntity map[string][]Entry
	known    map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the timestamp source.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator sets the entry ID source.
func WithIDGenerator(g clock.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// New returns an empty Service using the system clock and UUIDv7 IDs
// unless overridden.
func New(opts ...Option) *Service {
	s := &Service{
		clock:    clock.System{},
		ids:      clock.UUIDv7Generator{},
		seq:      clock.NewSequence(),
		byEntity: make(map[string][]Entry),
		known:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordUpdate appends an entry for entityID. Nothing is recorded, and
// false is returned, when changes is empty.
func (s *Service) RecordUpdate(entityID string, changes []Change, action string) (Entry, bool) {
	if len(changes) == 0 {
		return Entry{}, false
	}
	e := Entry{
		ID:        s.ids.Generate(),
		EntityID:  entityID,
		Timestamp: s.clock.Now().UTC(),
		Seq:       s.seq.Next(),
		Action:    action,
		Changes:   slices.Clone(changes),
	}
	s.byEntity[entityID] = append(s.byEntity[entityID], e)
	s.known[e.ID] = true
	return e, true
}

// GetHistory returns the entity's entries oldest first. A positive max
// keeps only the most recent max entries.
func (s *Service) GetHistory(entityID string, max int) []Entry {
	list := s.byEntity[entityID]
	if max > 0 && len(list) > max {
		list = list[len(list)-max:]
	}
	return slices.Clone(list)
}

// GetAllHistory returns every entry ordered by timestamp, then sequence.
func (s *Service) GetAllHistory() []Entry {
	var out []Entry
	for _, list := range s.byEntity {
		out = append(out, list...)
	}
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}

// GetChangesSince returns the entity's entries at or after since.
func (s *Service) GetChangesSince(entityID string, since time.Time) []Entry {
	var out []Entry
	for _, e := range s.byEntity[entityID] {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out
}

// GetLastChange returns the entity's most recent entry.
func (s *Service) GetLastChange(entityID string) (Entry, bool) {
	list := s.byEntity[entityID]
	if len(list) == 0 {
		return Entry{}, false
	}
	return list[len(list)-1], true
}

// GetChangeSummary counts how often each property of the entity changed.
func (s *Service) GetChangeSummary(entityID string) map[string]int {
	out := make(map[string]int)
	for _, e := range s.byEntity[entityID] {
		for _, c := range e.Changes {
			out[c.Property]++
		}
	}
	return out
}

// ClearHistory drops the entries of the given entities, or of every
// entity when none are given.
func (s *Service) ClearHistory(entityIDs ...string) {
	if len(entityIDs) == 0 {
		s.byEntity = make(map[string][]Entry)
		s.known = make(map[string]bool)
		return
	}
	for _, id := range entityIDs {
		for _, e := range s.byEntity[id] {
			delete(s.known, e.ID)
		}
		delete(s.byEntity, id)
	}
}

// Len returns the number of entries held.
func (s *Service) Len() int { return len(s.known) }

// ExportHistory returns every entry in GetAllHistory order, ready to be
// persisted.
func (s *Service) ExportHistory() []Entry {
	return s.GetAllHistory()
}

// ImportHistory merges previously exported entries. Entries whose ID is
// already present are skipped. The sequence continues after the highest
// imported Seq so new entries sort after imported ones.
func (s *Service) ImportHistory(entries []Entry) (int, error) {
	var errs []error
	for i, e := range entries {
		if e.ID == "" || e.EntityID == "" {
			errs = append(errs, fmt.Errorf("entry %d: id and entityId are required", i))
		}
	}
	if len(errs) > 0 {
		return 0, fmt.Errorf("import history: %w", errors.Join(errs...))
	}

	sorted := slices.Clone(entries)
	sort.SliceStable(sorted, func(i, j int) bool { return before(sorted[i], sorted[j]) })
	imported := 0
	touched := make(map[string]bool)
	for _, e := range sorted {
		if s.known[e.ID] {
			continue
		}
		e.Timestamp = e.Timestamp.UTC()
		s.byEntity[e.EntityID] = append(s.byEntity[e.EntityID], e)
		s.known[e.ID] = true
		s.seq.Advance(e.Seq)
		touched[e.EntityID] = true
		imported++
	}
	for id := range touched {
		list := s.byEntity[id]
		sort.SliceStable(list, func(i, j int) bool { return before(list[i], list[j]) })
	}
	return imported, nil
}
