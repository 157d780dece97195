package vault

import (
	"fmt"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Normalize flattens a document tree into a State in a single walk.
//
// Problems never abort the import; they are recorded as warnings and the
// offending node is dropped:
//   - a second entity with an already-seen ID (the first one wins)
//   - a reference to an ID that is not owned anywhere in the tree, or that
//     names a different kind
//   - a repeated entry in one child list
//   - a collection reference that would close a cycle
//
// A root that is not a Collection or Manifest is rejected as a whole: the
// result is an empty State carrying one InvalidChildType warning.
//
// Entities are cloned; later edits to the input tree do not leak into
// the State.
func Normalize(root *ir.Node) *State {
	s := newState()
	if root == nil {
		return s
	}
	n := &normalizer{s: s, refKinds: make(map[refKey]ir.Kind)}
	if !root.Kind().IsRootKind() {
		n.warn(ir.ErrInvalidChildType, root.ID(), "root must be a Collection or Manifest, found %s", root.Kind())
		return s
	}
	n.add(root, "", "")
	s.root = root.ID()
	n.resolveRefs()
	return s
}

func newState() *State {
	return &State{
		entities: make(map[ir.Kind]map[string]ir.Entity),
		kinds:    make(map[string]ir.Kind),
		children: make(map[string]map[ir.Slot][]string),
		parents:  make(map[string]ParentRef),
		refs:     make(map[string][]string),
	}
}

type refKey struct {
	parent string
	slot   ir.Slot
	child  string
}

type normalizer struct {
	s        *State
	refKinds map[refKey]ir.Kind
	order    []string // parents in document order
}

func (n *normalizer) warn(code ir.ErrorCode, id, format string, args ...any) {
	n.s.warnings = append(n.s.warnings, Warning{Code: code, EntityID: id, Message: fmt.Sprintf(format, args...)})
}

func (n *normalizer) add(node *ir.Node, parent string, slot ir.Slot) {
	s := n.s
	id := node.ID()
	if node.Ref {
		key := refKey{parent, slot, id}
		if _, dup := n.refKinds[key]; dup {
			n.warn(ir.ErrStructuralIntegrity, id, "duplicate reference to %s in %s.%s dropped", id, parent, slot)
			return
		}
		n.refKinds[key] = node.Kind()
		s.appendChild(parent, slot, id)
		return
	}
	if existing, dup := s.kinds[id]; dup {
		n.warn(ir.ErrStructuralIntegrity, id, "duplicate id %s (%s, first seen as %s) dropped", id, node.Kind(), existing)
		return
	}

	s.putEntity(ir.Clone(node.Entity))
	if parent != "" {
		s.appendChild(parent, slot, id)
		s.parents[id] = ParentRef{ParentID: parent, Slot: slot}
	}
	n.order = append(n.order, id)
	for _, childSlot := range ir.Slots {
		for _, child := range node.Children(childSlot) {
			n.add(child, id, childSlot)
		}
	}
}

// resolveRefs drops dangling or repeated references and builds the
// reference index. Owned collection edges are in place before any
// reference is accepted, so a reference is rejected exactly when it would
// close a cycle.
func (n *normalizer) resolveRefs() {
	s := n.s
	graph := make(linkGraph)
	for _, parent := range n.order {
		if s.kinds[parent] != ir.KindCollection {
			continue
		}
		for _, child := range s.children[parent][ir.SlotItems] {
			if s.kinds[child] == ir.KindCollection && s.IsOwned(parent, ir.SlotItems, child) {
				graph[parent] = append(graph[parent], child)
			}
		}
	}

	for _, parent := range n.order {
		for _, slot := range ir.Slots {
			list := s.children[parent][slot]
			if len(list) == 0 {
				continue
			}
			seen := make(map[string]bool, len(list))
			for _, child := range list {
				if s.IsOwned(parent, slot, child) {
					seen[child] = true
				}
			}
			kept := make([]string, 0, len(list))
			for _, child := range list {
				if s.IsOwned(parent, slot, child) {
					kept = append(kept, child)
					continue
				}
				want := n.refKinds[refKey{parent, slot, child}]
				got, live := s.kinds[child]
				switch {
				case seen[child]:
					n.warn(ir.ErrStructuralIntegrity, child, "duplicate entry %s in %s.%s dropped", child, parent, slot)
					continue
				case !live:
					n.warn(ir.ErrStructuralIntegrity, child, "dangling reference from %s to %s dropped", parent, child)
					continue
				case got != want:
					n.warn(ir.ErrStructuralIntegrity, child, "reference from %s to %s expects %s, found %s; dropped", parent, child, want, got)
					continue
				}
				if got == ir.KindCollection && s.kinds[parent] == ir.KindCollection {
					if cycle := graph.cyclePath(parent, child); cycle != nil {
						n.warn(ir.ErrStructuralIntegrity, child, "%s; reference dropped", formatCycle(cycle))
						continue
					}
					graph[parent] = append(graph[parent], child)
				}
				seen[child] = true
				kept = append(kept, child)
				s.refs[child] = append(s.refs[child], parent)
			}
			s.children[parent][slot] = kept
		}
	}
}

// putEntity stores e in its kind table. Callers own the maps being written.
func (s *State) putEntity(e ir.Entity) {
	kind := e.EntityKind()
	table := s.entities[kind]
	if table == nil {
		table = make(map[string]ir.Entity)
		s.entities[kind] = table
	}
	table[e.EntityID()] = e
	s.kinds[e.EntityID()] = kind
}

func (s *State) appendChild(parent string, slot ir.Slot, child string) {
	slots := s.children[parent]
	if slots == nil {
		slots = make(map[ir.Slot][]string)
		s.children[parent] = slots
	}
	slots[slot] = append(slots[slot], child)
}

// Denormalize rebuilds the document tree from the root. Child order
// matches the stored lists exactly; references come back as ref nodes.
// Entities are cloned so the caller may edit the tree freely.
func Denormalize(s *State) *ir.Node {
	if s.root == "" {
		return nil
	}
	return DenormalizeFrom(s, s.root)
}

// DenormalizeFrom rebuilds the subtree rooted at id, or returns nil when id
// is not live.
func DenormalizeFrom(s *State, id string) *ir.Node {
	e, ok := s.Entity(id)
	if !ok {
		return nil
	}
	return s.subtree(id, e, true)
}

func (s *State) subtree(id string, e ir.Entity, clone bool) *ir.Node {
	if clone {
		e = ir.Clone(e)
	}
	node := &ir.Node{Entity: e}
	for _, slot := range ir.Slots {
		list := s.children[id][slot]
		if len(list) == 0 {
			continue
		}
		children := make([]*ir.Node, 0, len(list))
		for _, child := range list {
			kind := s.kinds[child]
			if !s.IsOwned(id, slot, child) {
				children = append(children, ir.RefNode(kind, child))
				continue
			}
			children = append(children, s.subtree(child, s.entities[kind][child], clone))
		}
		node.SetChildren(slot, children)
	}
	return node
}
