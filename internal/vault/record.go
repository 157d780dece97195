package vault

import (
	"fmt"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Record is the plain, JSON-serializable form of a State used for session
// resume. Entities are listed in document order with their owner; child
// lists carry the order of owned and referenced children.
type Record struct {
	Version  string         `json:"version"`
	RootID   string         `json:"rootId"`
	Entities []EntityRecord `json:"entities"`
	Lists    []ListRecord   `json:"lists"`
	Trash    []TrashRecord  `json:"trash"`
	Warnings []Warning      `json:"warnings"`
}

// EntityRecord is one live entity and its owner.
type EntityRecord struct {
	Fields map[string]any `json:"fields"`
	Parent string         `json:"parent,omitempty"`
	Slot   ir.Slot        `json:"slot,omitempty"`
}

// ListRecord is one ordered child list.
type ListRecord struct {
	Parent   string   `json:"parent"`
	Slot     ir.Slot  `json:"slot"`
	Children []string `json:"children"`
}

// TrashRecord is the plain form of a TrashedEntity.
type TrashRecord struct {
	ID               string         `json:"id"`
	Kind             ir.Kind        `json:"kind"`
	Subtree          map[string]any `json:"subtree"`
	TrashedAt        string         `json:"trashedAt"`
	OriginalParentID string         `json:"originalParentId"`
	OriginalSlot     ir.Slot        `json:"originalSlot"`
	OriginalIndex    int            `json:"originalIndex"`
	StrippedRefs     []RefLink      `json:"strippedRefs"`
}

// Export converts s into a Record.
func Export(s *State) Record {
	rec := Record{
		Version:  ir.RecordVersion,
		RootID:   s.root,
		Entities: []EntityRecord{},
		Lists:    []ListRecord{},
		Trash:    []TrashRecord{},
		Warnings: s.Warnings(),
	}
	if rec.Warnings == nil {
		rec.Warnings = []Warning{}
	}

	var order []string
	if s.root != "" {
		order = append([]string{s.root}, s.Descendants(s.root)...)
	}
	for _, id := range order {
		e, _ := s.Entity(id)
		er := EntityRecord{Fields: ir.EntityFields(e)}
		if p, ok := s.parents[id]; ok {
			er.Parent, er.Slot = p.ParentID, p.Slot
		}
		rec.Entities = append(rec.Entities, er)
		for _, slot := range ir.Slots {
			if list := s.children[id][slot]; len(list) > 0 {
				rec.Lists = append(rec.Lists, ListRecord{Parent: id, Slot: slot, Children: append([]string(nil), list...)})
			}
		}
	}

	for _, t := range s.TrashEntries() {
		refs := t.StrippedRefs
		if refs == nil {
			refs = []RefLink{}
		}
		rec.Trash = append(rec.Trash, TrashRecord{
			ID:               t.ID,
			Kind:             t.Kind,
			Subtree:          ir.CanonicalNode(t.Subtree),
			TrashedAt:        t.TrashedAt.UTC().Format(time.RFC3339Nano),
			OriginalParentID: t.OriginalParentID,
			OriginalSlot:     t.OriginalSlot,
			OriginalIndex:    t.OriginalIndex,
			StrippedRefs:     refs,
		})
	}
	return rec
}

// Import rebuilds a State from a Record and verifies its integrity.
func Import(rec Record) (*State, error) {
	if rec.Version != ir.RecordVersion {
		return nil, fmt.Errorf("import: unsupported record version %q", rec.Version)
	}
	s := newState()
	s.root = rec.RootID
	s.warnings = rec.Warnings

	for i, er := range rec.Entities {
		e, err := ir.EntityFromFields(er.Fields)
		if err != nil {
			return nil, fmt.Errorf("import: entities[%d]: %w", i, err)
		}
		if s.Has(e.EntityID()) {
			return nil, fmt.Errorf("import: duplicate id %s", e.EntityID())
		}
		s.putEntity(e)
		if er.Parent != "" {
			s.parents[e.EntityID()] = ParentRef{ParentID: er.Parent, Slot: er.Slot}
		}
	}

	for _, lr := range rec.Lists {
		for _, child := range lr.Children {
			s.appendChild(lr.Parent, lr.Slot, child)
			if !s.IsOwned(lr.Parent, lr.Slot, child) {
				s.refs[child] = append(s.refs[child], lr.Parent)
			}
		}
	}

	if problems := s.CheckIntegrity(); len(problems) > 0 {
		return nil, fmt.Errorf("import: %s (%d problems)", problems[0].Message, len(problems))
	}

	for i, tr := range rec.Trash {
		subtree, err := ir.NodeFromCanonical(tr.Subtree)
		if err != nil {
			return nil, fmt.Errorf("import: trash[%d]: %w", i, err)
		}
		at, err := time.Parse(time.RFC3339Nano, tr.TrashedAt)
		if err != nil {
			return nil, fmt.Errorf("import: trash[%d]: %w", i, err)
		}
		if s.trash == nil {
			s.trash = make(map[string]TrashedEntity)
		}
		s.trash[tr.ID] = TrashedEntity{
			ID:               tr.ID,
			Kind:             tr.Kind,
			Subtree:          subtree,
			TrashedAt:        at,
			OriginalParentID: tr.OriginalParentID,
			OriginalSlot:     tr.OriginalSlot,
			OriginalIndex:    tr.OriginalIndex,
			StrippedRefs:     tr.StrippedRefs,
		}
	}
	return s, nil
}

// Canonical converts the record into plain maps for ir.MarshalCanonical.
func (r Record) Canonical() map[string]any {
	entities := make([]any, len(r.Entities))
	for i, er := range r.Entities {
		m := map[string]any{"fields": er.Fields}
		if er.Parent != "" {
			m["parent"] = er.Parent
			m["slot"] = string(er.Slot)
		}
		entities[i] = m
	}
	lists := make([]any, len(r.Lists))
	for i, lr := range r.Lists {
		lists[i] = map[string]any{"parent": lr.Parent, "slot": string(lr.Slot), "children": lr.Children}
	}
	trash := make([]any, len(r.Trash))
	for i, tr := range r.Trash {
		refs := make([]any, len(tr.StrippedRefs))
		for j, ref := range tr.StrippedRefs {
			refs[j] = map[string]any{"parentId": ref.ParentID, "slot": string(ref.Slot), "index": ref.Index, "childId": ref.ChildID}
		}
		trash[i] = map[string]any{
			"id":               tr.ID,
			"kind":             string(tr.Kind),
			"subtree":          tr.Subtree,
			"trashedAt":        tr.TrashedAt,
			"originalParentId": tr.OriginalParentID,
			"originalSlot":     string(tr.OriginalSlot),
			"originalIndex":    tr.OriginalIndex,
			"strippedRefs":     refs,
		}
	}
	warnings := make([]any, len(r.Warnings))
	for i, w := range r.Warnings {
		warnings[i] = map[string]any{"code": string(w.Code), "entityId": w.EntityID, "message": w.Message}
	}
	return map[string]any{
		"version":  r.Version,
		"rootId":   r.RootID,
		"entities": entities,
		"lists":    lists,
		"trash":    trash,
		"warnings": warnings,
	}
}

// Fingerprint returns the content hash of a State's record form. Two
// states with equal fingerprints hold the same entities, order, trash and
// warnings.
func Fingerprint(s *State) (string, error) {
	return ir.Fingerprint(ir.DomainState, Export(s).Canonical())
}
