package vault

import (
	"slices"
	"sort"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// ParentRef locates an owned entity: its parent and the slot it sits in.
type ParentRef struct {
	ParentID string  `json:"parentId"`
	Slot     ir.Slot `json:"slot"`
}

// Warning is a non-fatal problem recorded during normalization or restore.
type Warning struct {
	Code     ir.ErrorCode `json:"code"`
	EntityID string       `json:"entityId"`
	Message  string       `json:"message"`
}

// RefLink is one position of a non-owning reference in a parent's list.
type RefLink struct {
	ParentID string  `json:"parentId"`
	Slot     ir.Slot `json:"slot"`
	Index    int     `json:"index"`
	ChildID  string  `json:"childId"`
}

// TrashedEntity is a removed subtree with enough context to put it back.
type TrashedEntity struct {
	ID               string    `json:"id"`
	Kind             ir.Kind   `json:"kind"`
	Subtree          *ir.Node  `json:"-"`
	TrashedAt        time.Time `json:"trashedAt"`
	OriginalParentID string    `json:"originalParentId"`
	OriginalSlot     ir.Slot   `json:"originalSlot"`
	OriginalIndex    int       `json:"originalIndex"`
	// StrippedRefs are references to the subtree that other parents held
	// when it was trashed.
	StrippedRefs []RefLink `json:"strippedRefs,omitempty"`
}

// State is an immutable snapshot of the normalized store.
// The zero value is an empty store with no root.
type State struct {
	entities map[ir.Kind]map[string]ir.Entity
	kinds    map[string]ir.Kind
	children map[string]map[ir.Slot][]string
	parents  map[string]ParentRef
	refs     map[string][]string
	root     string
	warnings []Warning
	trash    map[string]TrashedEntity
}

// Empty returns a State with no entities.
func Empty() *State {
	return &State{}
}

// RootID returns the root entity ID, or "" for an empty store.
func (s *State) RootID() string { return s.root }

// Len returns the number of live entities.
func (s *State) Len() int { return len(s.kinds) }

// Warnings returns the warnings recorded on this snapshot.
func (s *State) Warnings() []Warning { return slices.Clone(s.warnings) }

// Has reports whether id is a live entity.
func (s *State) Has(id string) bool {
	_, ok := s.kinds[id]
	return ok
}

// Kind returns the kind of a live entity.
func (s *State) Kind(id string) (ir.Kind, bool) {
	k, ok := s.kinds[id]
	return k, ok
}

// Entity returns a live entity. The result is shared with the snapshot
// and must not be modified; use ir.Clone before editing.
func (s *State) Entity(id string) (ir.Entity, bool) {
	k, ok := s.kinds[id]
	if !ok {
		return nil, false
	}
	e, ok := s.entities[k][id]
	return e, ok
}

// Children returns the ordered items of id, owned and referenced.
func (s *State) Children(id string) []string {
	return s.ChildrenIn(id, ir.SlotItems)
}

// ChildrenIn returns the ordered child list of id in slot.
func (s *State) ChildrenIn(id string, slot ir.Slot) []string {
	return slices.Clone(s.children[id][slot])
}

// Parent returns the owning parent of id. The root and unknown IDs have none.
func (s *State) Parent(id string) (string, bool) {
	p, ok := s.parents[id]
	return p.ParentID, ok
}

// ParentRef returns the owning parent and slot of id.
func (s *State) ParentRef(id string) (ParentRef, bool) {
	p, ok := s.parents[id]
	return p, ok
}

// IsOwned reports whether child is owned (not merely referenced) by
// parent in slot.
func (s *State) IsOwned(parent string, slot ir.Slot, child string) bool {
	p, ok := s.parents[child]
	return ok && p.ParentID == parent && p.Slot == slot
}

// Ancestors returns the owning chain of id from the root down to its
// direct parent. The root has no ancestors.
func (s *State) Ancestors(id string) []string {
	var chain []string
	for cur := id; ; {
		p, ok := s.parents[cur]
		if !ok {
			break
		}
		chain = append(chain, p.ParentID)
		cur = p.ParentID
	}
	slices.Reverse(chain)
	return chain
}

// Descendants returns every entity owned below id, in document order.
func (s *State) Descendants(id string) []string {
	var out []string
	s.walk(id, func(child string) { out = append(out, child) })
	return out
}

// walk visits owned descendants of id in document order (items,
// structures, annotations), excluding id itself.
func (s *State) walk(id string, fn func(string)) {
	for _, slot := range ir.Slots {
		for _, child := range s.children[id][slot] {
			if !s.IsOwned(id, slot, child) {
				continue
			}
			fn(child)
			s.walk(child, fn)
		}
	}
}

// EntitiesOfKind returns live entities of kind in document order.
func (s *State) EntitiesOfKind(kind ir.Kind) []ir.Entity {
	table := s.entities[kind]
	if len(table) == 0 {
		return []ir.Entity{}
	}
	out := make([]ir.Entity, 0, len(table))
	visit := func(id string) {
		if e, ok := table[id]; ok {
			out = append(out, e)
		}
	}
	if s.root != "" {
		visit(s.root)
		s.walk(s.root, visit)
	}
	return out
}

// ReferencedBy returns the parents holding a non-owning reference to id,
// sorted.
func (s *State) ReferencedBy(id string) []string {
	out := slices.Clone(s.refs[id])
	sort.Strings(out)
	return out
}

// TrashEntry returns a trashed entity by ID.
func (s *State) TrashEntry(id string) (TrashedEntity, bool) {
	t, ok := s.trash[id]
	return t, ok
}

// TrashEntries returns every trashed entity, oldest first. Ties are broken
// by ID.
func (s *State) TrashEntries() []TrashedEntity {
	out := make([]TrashedEntity, 0, len(s.trash))
	for _, t := range s.trash {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TrashedAt.Equal(out[j].TrashedAt) {
			return out[i].TrashedAt.Before(out[j].TrashedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TrashLen returns the number of trashed entries.
func (s *State) TrashLen() int { return len(s.trash) }

// IsTrashed reports whether id is the root of a trashed subtree, or
// contained in one.
func (s *State) IsTrashed(id string) bool {
	if _, ok := s.trash[id]; ok {
		return true
	}
	for _, t := range s.trash {
		found := false
		t.Subtree.Walk(func(n, _ *ir.Node, _ ir.Slot) bool {
			if !n.Ref && n.ID() == id {
				found = true
			}
			return !found && !n.Ref
		})
		if found {
			return true
		}
	}
	return false
}
