package rules

import (
	"slices"
	"sort"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Evidence names what a behavior needs before it has a visible effect.
type Evidence string

const (
	EvidenceDuration Evidence = "duration"
	EvidencePaged    Evidence = "paged"
)

// Behavior describes one behavior token.
type Behavior struct {
	Token       string    `json:"token"`
	Category    string    `json:"category"`
	ValidFor    []ir.Kind `json:"validFor"`
	Description string    `json:"description"`
	Requires    Evidence  `json:"requires,omitempty"`
}

// DisjointSet is a group of mutually exclusive behavior tokens. Default,
// when set, is implied if no member is present.
type DisjointSet struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
	Default string   `json:"default,omitempty"`
}

// Conflict reports two or more tokens from the same disjoint set.
type Conflict struct {
	Set       string   `json:"set"`
	Behaviors []string `json:"behaviors"`
}

// Table is the decoded rule set.
type Table struct {
	hierarchy   map[ir.Kind]map[ir.Slot][]ir.Kind
	limits      map[ir.Kind]map[ir.Slot]int
	behaviors   map[string]Behavior
	sets        map[string]DisjointSet
	setNames    []string
	setOf       map[string]string
	inheritance map[ir.Kind][]ir.Kind
}

// IsBehaviorValidForType reports whether behavior may appear on kind.
// Unknown tokens are never valid.
func (t *Table) IsBehaviorValidForType(behavior string, kind ir.Kind) bool {
	b, ok := t.behaviors[behavior]
	return ok && slices.Contains(b.ValidFor, kind)
}

// Behavior returns the definition of a token.
func (t *Table) Behavior(token string) (Behavior, bool) {
	b, ok := t.behaviors[token]
	return b, ok
}

// Behaviors returns every behavior definition ordered by category, then token.
func (t *Table) Behaviors() []Behavior {
	out := make([]Behavior, 0, len(t.behaviors))
	for _, b := range t.behaviors {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// FindBehaviorConflicts returns one Conflict per disjoint set that has more
// than one distinct member present, in set-name order. Duplicates of the
// same token are not a conflict.
func (t *Table) FindBehaviorConflicts(behaviors []string) []Conflict {
	present := make(map[string][]string)
	for _, b := range behaviors {
		set, ok := t.setOf[b]
		if !ok || slices.Contains(present[set], b) {
			continue
		}
		present[set] = append(present[set], b)
	}
	var conflicts []Conflict
	for _, name := range t.setNames {
		if members := present[name]; len(members) > 1 {
			conflicts = append(conflicts, Conflict{Set: name, Behaviors: members})
		}
	}
	return conflicts
}

// DisjointSetOf returns the disjoint set containing behavior.
func (t *Table) DisjointSetOf(behavior string) (DisjointSet, bool) {
	name, ok := t.setOf[behavior]
	if !ok {
		return DisjointSet{}, false
	}
	return t.sets[name], true
}

// DisjointSets returns every disjoint set in name order.
func (t *Table) DisjointSets() []DisjointSet {
	out := make([]DisjointSet, len(t.setNames))
	for i, name := range t.setNames {
		out[i] = t.sets[name]
	}
	return out
}

// DefaultFor returns the implied token of a disjoint set, or "" when the
// set has no default or does not exist.
func (t *Table) DefaultFor(set string) string {
	return t.sets[set].Default
}

// CanContain reports whether a parent of kind parent may hold child in slot.
func (t *Table) CanContain(parent ir.Kind, slot ir.Slot, child ir.Kind) bool {
	return slices.Contains(t.hierarchy[parent][slot], child)
}

// AllowedChildren returns the kinds a parent may hold in slot.
func (t *Table) AllowedChildren(parent ir.Kind, slot ir.Slot) []ir.Kind {
	return slices.Clone(t.hierarchy[parent][slot])
}

// SlotsFor returns the slots a parent kind may use, in document order.
func (t *Table) SlotsFor(parent ir.Kind) []ir.Slot {
	var out []ir.Slot
	for _, slot := range ir.Slots {
		if len(t.hierarchy[parent][slot]) > 0 {
			out = append(out, slot)
		}
	}
	return out
}

// SlotLimit returns the maximum number of children in slot, or 0 when
// unbounded.
func (t *Table) SlotLimit(parent ir.Kind, slot ir.Slot) int {
	return t.limits[parent][slot]
}

// InheritsFrom reports whether child takes unset behaviors from an
// enclosing ancestor of kind ancestor.
func (t *Table) InheritsFrom(child, ancestor ir.Kind) bool {
	return slices.Contains(t.inheritance[child], ancestor)
}

// EffectiveBehaviors returns own plus, for each disjoint set own leaves
// unset, the member inherited from the parent when kind inherits from
// parentKind and the member is valid on kind. Explicit choices always win.
func (t *Table) EffectiveBehaviors(kind ir.Kind, own []string, parentKind ir.Kind, parentBehaviors []string) []string {
	out := slices.Clone(own)
	if parentKind == "" || !t.InheritsFrom(kind, parentKind) {
		return out
	}
	for _, name := range t.setNames {
		set := t.sets[name]
		if containsAny(own, set.Members) {
			continue
		}
		for _, b := range parentBehaviors {
			if slices.Contains(set.Members, b) && t.IsBehaviorValidForType(b, kind) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// InheritanceConflicts returns, for each disjoint set, the inherited
// parent member that disagrees with an explicit member of own.
func (t *Table) InheritanceConflicts(kind ir.Kind, own []string, parentKind ir.Kind, parentBehaviors []string) []Conflict {
	if parentKind == "" || !t.InheritsFrom(kind, parentKind) {
		return nil
	}
	var conflicts []Conflict
	for _, name := range t.setNames {
		set := t.sets[name]
		var mine, theirs string
		for _, b := range own {
			if slices.Contains(set.Members, b) {
				mine = b
				break
			}
		}
		for _, b := range parentBehaviors {
			if slices.Contains(set.Members, b) {
				theirs = b
				break
			}
		}
		if mine != "" && theirs != "" && mine != theirs {
			conflicts = append(conflicts, Conflict{Set: name, Behaviors: []string{theirs, mine}})
		}
	}
	return conflicts
}

func containsAny(list, candidates []string) bool {
	for _, c := range candidates {
		if slices.Contains(list, c) {
			return true
		}
	}
	return false
}
