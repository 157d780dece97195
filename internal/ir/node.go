package ir

// Node is the nested tree form of a document, used at the edges
// (import, export, trash subtrees). The vault stores the flat form.
type Node struct {
	Entity Entity

	// Ref marks a non-owning reference: only the ID and kind are meaningful.
	// Ranges reference canvases; collections may reference other collections.
	Ref bool

	Items       []*Node
	Annotations []*Node
	Structures  []*Node
}

// NewNode wraps an entity with the given items.
func NewNode(e Entity, items ...*Node) *Node {
	return &Node{Entity: e, Items: items}
}

// RefNode builds a reference to an entity owned elsewhere.
func RefNode(kind Kind, id string) *Node {
	e, err := NewEntity(kind, id)
	if err != nil {
		return nil
	}
	return &Node{Entity: e, Ref: true}
}

// ID returns the node's entity ID.
func (n *Node) ID() string { return n.Entity.EntityID() }

// Kind returns the node's entity kind.
func (n *Node) Kind() Kind { return n.Entity.EntityKind() }

// Children returns the child list for a slot.
func (n *Node) Children(slot Slot) []*Node {
	switch slot {
	case SlotItems:
		return n.Items
	case SlotAnnotations:
		return n.Annotations
	case SlotStructures:
		return n.Structures
	default:
		return nil
	}
}

// SetChildren replaces the child list for a slot.
func (n *Node) SetChildren(slot Slot, children []*Node) {
	switch slot {
	case SlotItems:
		n.Items = children
	case SlotAnnotations:
		n.Annotations = children
	case SlotStructures:
		n.Structures = children
	}
}

// WalkFunc is called for every node in pre-order. parent is nil for the
// root. Returning false skips the node's children.
type WalkFunc func(n, parent *Node, slot Slot) bool

// Walk visits the tree in document order: items, structures, annotations.
func (n *Node) Walk(fn WalkFunc) {
	walk(n, nil, SlotItems, fn)
}

func walk(n, parent *Node, slot Slot, fn WalkFunc) {
	if n == nil || !fn(n, parent, slot) {
		return
	}
	for _, s := range Slots {
		for _, child := range n.Children(s) {
			walk(child, n, s, fn)
		}
	}
}

// Count returns the number of owned nodes in the tree (references excluded).
func (n *Node) Count() int {
	count := 0
	n.Walk(func(node, _ *Node, _ Slot) bool {
		if !node.Ref {
			count++
		}
		return !node.Ref
	})
	return count
}
