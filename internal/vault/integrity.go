package vault

import (
	"fmt"
	"slices"
	"sort"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// CheckIntegrity verifies the structural invariants of s and returns one
// warning per violation. A State produced by Normalize or by committed
// Txns always returns an empty list; Import uses it to reject damaged
// records.
func (s *State) CheckIntegrity() []Warning {
	var problems []Warning
	report := func(id, format string, args ...any) {
		problems = append(problems, Warning{Code: ir.ErrStructuralIntegrity, EntityID: id, Message: fmt.Sprintf(format, args...)})
	}

	if s.root == "" {
		if len(s.kinds) > 0 {
			report("", "entities present without a root")
		}
		return problems
	}
	if kind, ok := s.kinds[s.root]; !ok {
		report(s.root, "root %s is not live", s.root)
	} else if !kind.IsRootKind() {
		report(s.root, "root %s has kind %s", s.root, kind)
	}
	if _, ok := s.parents[s.root]; ok {
		report(s.root, "root %s has a parent", s.root)
	}

	tabled := 0
	for kind, table := range s.entities {
		for id, e := range table {
			tabled++
			if s.kinds[id] != kind || e.EntityKind() != kind || e.EntityID() != id {
				report(id, "entity %s filed under %s does not match its kind index", id, kind)
			}
		}
	}
	if tabled != len(s.kinds) {
		report("", "kind index has %d entries but tables hold %d entities", len(s.kinds), tabled)
	}

	for child, p := range s.parents {
		if n := count(s.children[p.ParentID][p.Slot], child); n != 1 {
			report(child, "%s appears %d times in its parent list %s.%s", child, n, p.ParentID, p.Slot)
		}
	}

	for parent, slots := range s.children {
		if !s.Has(parent) {
			report(parent, "child lists kept for missing entity %s", parent)
			continue
		}
		for slot, list := range slots {
			for _, child := range list {
				if !s.Has(child) {
					report(child, "%s.%s lists missing entity %s", parent, slot, child)
					continue
				}
				if count(list, child) != 1 {
					report(child, "%s.%s lists %s more than once", parent, slot, child)
				}
				if !s.IsOwned(parent, slot, child) && !slices.Contains(s.refs[child], parent) {
					report(child, "%s.%s lists %s without ownership or reference", parent, slot, child)
				}
			}
		}
	}

	for child, referrers := range s.refs {
		for _, parent := range referrers {
			listed := false
			for _, slot := range ir.Slots {
				if slices.Contains(s.children[parent][slot], child) && !s.IsOwned(parent, slot, child) {
					listed = true
				}
			}
			if !listed {
				report(child, "reference index says %s references %s, lists disagree", parent, child)
			}
		}
	}

	reachable := map[string]bool{s.root: true}
	s.walk(s.root, func(id string) { reachable[id] = true })
	for id := range s.kinds {
		if !reachable[id] {
			report(id, "%s is not reachable from the root", id)
		}
	}

	for _, scc := range s.collectionGraph().referenceCycles() {
		report(scc[0], "%s", formatCycle(append(scc, scc[0])))
	}

	sort.Slice(problems, func(i, j int) bool {
		if problems[i].EntityID != problems[j].EntityID {
			return problems[i].EntityID < problems[j].EntityID
		}
		return problems[i].Message < problems[j].Message
	})
	return problems
}

func count(list []string, id string) int {
	n := 0
	for _, v := range list {
		if v == id {
			n++
		}
	}
	return n
}
