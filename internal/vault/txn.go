package vault

import (
	"slices"
	"sort"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Txn accumulates edits against a base State and yields a new State on
// Commit. Maps are copied on first write: untouched kind tables, child
// lists and entity values are shared with the base.
//
// A Txn is single-use and not safe for concurrent use. After any method
// returns an error the Txn should be discarded; the base State is never
// affected.
type Txn struct {
	base *State
	s    *State

	dirty       bool
	ownTables   bool
	ownTable    map[ir.Kind]bool
	ownKinds    bool
	ownChildren bool
	ownSlots    map[string]bool
	ownParents  bool
	ownRefs     bool
	ownTrash    bool
}

// Begin opens a transaction on s.
func (s *State) Begin() *Txn {
	work := *s
	return &Txn{
		base:     s,
		s:        &work,
		ownTable: make(map[ir.Kind]bool),
		ownSlots: make(map[string]bool),
	}
}

// View returns the in-progress state for reads. It must not be retained
// past Commit.
func (tx *Txn) View() *State { return tx.s }

// Commit returns the new State. When nothing was written the base State
// itself is returned.
func (tx *Txn) Commit() *State {
	if !tx.dirty {
		return tx.base
	}
	return tx.s
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (tx *Txn) table(kind ir.Kind) map[string]ir.Entity {
	tx.dirty = true
	if !tx.ownTables {
		tx.s.entities = cloneMap(tx.s.entities)
		tx.ownTables = true
	}
	if !tx.ownTable[kind] {
		tx.s.entities[kind] = cloneMap(tx.s.entities[kind])
		tx.ownTable[kind] = true
	}
	return tx.s.entities[kind]
}

func (tx *Txn) kinds() map[string]ir.Kind {
	tx.dirty = true
	if !tx.ownKinds {
		tx.s.kinds = cloneMap(tx.s.kinds)
		tx.ownKinds = true
	}
	return tx.s.kinds
}

func (tx *Txn) parents() map[string]ParentRef {
	tx.dirty = true
	if !tx.ownParents {
		tx.s.parents = cloneMap(tx.s.parents)
		tx.ownParents = true
	}
	return tx.s.parents
}

func (tx *Txn) refIndex() map[string][]string {
	tx.dirty = true
	if !tx.ownRefs {
		tx.s.refs = cloneMap(tx.s.refs)
		tx.ownRefs = true
	}
	return tx.s.refs
}

func (tx *Txn) trashTable() map[string]TrashedEntity {
	tx.dirty = true
	if !tx.ownTrash {
		tx.s.trash = cloneMap(tx.s.trash)
		tx.ownTrash = true
	}
	return tx.s.trash
}

// setList replaces a child list. list must be a fresh slice.
func (tx *Txn) setList(parent string, slot ir.Slot, list []string) {
	tx.dirty = true
	if !tx.ownChildren {
		tx.s.children = cloneMap(tx.s.children)
		tx.ownChildren = true
	}
	if !tx.ownSlots[parent] {
		tx.s.children[parent] = cloneMap(tx.s.children[parent])
		tx.ownSlots[parent] = true
	}
	if len(list) == 0 {
		delete(tx.s.children[parent], slot)
		return
	}
	tx.s.children[parent][slot] = list
}

func (tx *Txn) dropLists(parent string) {
	if _, ok := tx.s.children[parent]; !ok {
		return
	}
	tx.dirty = true
	if !tx.ownChildren {
		tx.s.children = cloneMap(tx.s.children)
		tx.ownChildren = true
	}
	delete(tx.s.children, parent)
}

func (tx *Txn) insertChild(parent string, slot ir.Slot, index int, child string) int {
	list := tx.s.children[parent][slot]
	if index < 0 || index > len(list) {
		index = len(list)
	}
	tx.setList(parent, slot, slices.Insert(slices.Clone(list), index, child))
	return index
}

func (tx *Txn) removeChild(parent string, slot ir.Slot, child string) int {
	list := tx.s.children[parent][slot]
	idx := slices.Index(list, child)
	if idx < 0 {
		return -1
	}
	tx.setList(parent, slot, slices.Delete(slices.Clone(list), idx, idx+1))
	return idx
}

func (tx *Txn) addRef(child, parent string) {
	refs := tx.refIndex()
	refs[child] = append(slices.Clone(refs[child]), parent)
}

func (tx *Txn) dropRef(child, parent string) {
	refs := tx.refIndex()
	list := refs[child]
	idx := slices.Index(list, parent)
	if idx < 0 {
		return
	}
	if len(list) == 1 {
		delete(refs, child)
		return
	}
	refs[child] = slices.Delete(slices.Clone(list), idx, idx+1)
}

// SetRoot installs e as the root of an empty store.
func (tx *Txn) SetRoot(e ir.Entity) error {
	if tx.s.root != "" {
		return errorf(ir.ErrStructuralIntegrity, e.EntityID(), "store already has root %s", tx.s.root)
	}
	if !e.EntityKind().IsRootKind() {
		return errorf(ir.ErrInvalidChildType, e.EntityID(), "root must be Collection or Manifest, got %s", e.EntityKind())
	}
	tx.table(e.EntityKind())[e.EntityID()] = e
	tx.kinds()[e.EntityID()] = e.EntityKind()
	tx.s.root = e.EntityID()
	return nil
}

// Put replaces a live entity with a new value of the same kind.
func (tx *Txn) Put(e ir.Entity) error {
	id := e.EntityID()
	kind, ok := tx.s.kinds[id]
	if !ok {
		return notFound(id)
	}
	if kind != e.EntityKind() {
		return errorf(ir.ErrInvalidShape, id, "cannot replace %s with %s", kind, e.EntityKind())
	}
	tx.table(kind)[id] = e
	return nil
}

// Graft inserts a subtree under parent in slot at index (a negative or
// out-of-range index appends). Every owned ID in the subtree must be new.
// References inside the subtree whose target is not live, has the wrong
// kind, or would close a collection cycle are dropped and reported as
// warnings.
func (tx *Txn) Graft(parent string, slot ir.Slot, index int, node *ir.Node) ([]Warning, error) {
	if node == nil || node.Ref {
		return nil, errorf(ir.ErrInvalidShape, parent, "graft requires an owned subtree")
	}
	if !tx.s.Has(parent) {
		return nil, notFound(parent)
	}
	seen := make(map[string]bool)
	var clash string
	node.Walk(func(n, _ *ir.Node, _ ir.Slot) bool {
		if n.Ref || clash != "" {
			return false
		}
		if seen[n.ID()] || tx.s.Has(n.ID()) {
			clash = n.ID()
			return false
		}
		seen[n.ID()] = true
		return true
	})
	if clash != "" {
		return nil, errorf(ir.ErrStructuralIntegrity, clash, "duplicate id %s", clash)
	}

	tx.insertChild(parent, slot, index, node.ID())
	tx.parents()[node.ID()] = ParentRef{ParentID: parent, Slot: slot}
	var pending []pendingRef
	var warnings []Warning
	tx.graftNode(node, &pending, &warnings)

	// References are resolved once every owned node is in place, so a
	// subtree may reference its own members in any order.
	for _, ref := range pending {
		if w, ok := tx.checkRef(ref); !ok {
			tx.removeChild(ref.ParentID, ref.Slot, ref.ChildID)
			warnings = append(warnings, w)
			continue
		}
		tx.addRef(ref.ChildID, ref.ParentID)
	}
	return warnings, nil
}

type pendingRef struct {
	RefLink
	kind ir.Kind
}

func (tx *Txn) graftNode(node *ir.Node, pending *[]pendingRef, warnings *[]Warning) {
	id := node.ID()
	kind := node.Kind()
	tx.table(kind)[id] = node.Entity
	tx.kinds()[id] = kind
	for _, slot := range ir.Slots {
		children := node.Children(slot)
		if len(children) == 0 {
			continue
		}
		listed := make(map[string]bool, len(children))
		for _, child := range children {
			if !child.Ref {
				listed[child.ID()] = true
			}
		}
		list := make([]string, 0, len(children))
		for _, child := range children {
			cid := child.ID()
			if child.Ref {
				if listed[cid] {
					*warnings = append(*warnings, Warning{Code: ir.ErrStructuralIntegrity, EntityID: cid, Message: "duplicate entry " + cid + " in " + id + " dropped"})
					continue
				}
				listed[cid] = true
				*pending = append(*pending, pendingRef{RefLink: RefLink{ParentID: id, Slot: slot, Index: len(list), ChildID: cid}, kind: child.Kind()})
			} else {
				tx.parents()[cid] = ParentRef{ParentID: id, Slot: slot}
			}
			list = append(list, cid)
		}
		tx.setList(id, slot, list)
		for _, child := range children {
			if !child.Ref {
				tx.graftNode(child, pending, warnings)
			}
		}
	}
}

func (tx *Txn) checkRef(ref pendingRef) (Warning, bool) {
	parent, cid := ref.ParentID, ref.ChildID
	kind, live := tx.s.kinds[cid]
	switch {
	case !live:
		return Warning{Code: ir.ErrStructuralIntegrity, EntityID: cid, Message: "reference from " + parent + " to missing " + cid + " dropped"}, false
	case kind != ref.kind:
		return Warning{Code: ir.ErrStructuralIntegrity, EntityID: cid, Message: "reference from " + parent + " to " + cid + " expects " + string(ref.kind) + ", found " + string(kind) + "; dropped"}, false
	}
	if kind == ir.KindCollection && tx.s.kinds[parent] == ir.KindCollection {
		graph := tx.s.collectionGraph()
		// The pending edge itself is already listed; drop it before
		// asking whether the child reaches the parent.
		if idx := slices.Index(graph[parent], cid); idx >= 0 {
			graph[parent] = slices.Delete(slices.Clone(graph[parent]), idx, idx+1)
		}
		if cycle := graph.cyclePath(parent, cid); cycle != nil {
			return Warning{Code: ir.ErrStructuralIntegrity, EntityID: cid, Message: formatCycle(cycle) + "; reference dropped"}, false
		}
	}
	return Warning{}, true
}

// Detached describes a subtree removed by Detach.
type Detached struct {
	Subtree *ir.Node
	Parent  ParentRef
	Index   int
	// StrippedRefs lists references to the subtree held by other parents,
	// in removal order. RestoreRefs replays them in reverse.
	StrippedRefs []RefLink
}

// Detach removes id and everything it owns from the live tables. References
// to the removed entities from outside the subtree are stripped and
// reported; references held inside the subtree stay in the returned nodes.
// The root cannot be detached.
func (tx *Txn) Detach(id string) (Detached, error) {
	e, ok := tx.s.Entity(id)
	if !ok {
		return Detached{}, notFound(id)
	}
	if id == tx.s.root {
		return Detached{}, errorf(ir.ErrStructuralIntegrity, id, "cannot remove root %s", id)
	}
	subtree := tx.s.subtree(id, e, false)
	members := append([]string{id}, tx.s.Descendants(id)...)
	inside := make(map[string]bool, len(members))
	for _, m := range members {
		inside[m] = true
	}

	var stripped []RefLink
	for _, m := range members {
		for _, referrer := range tx.s.ReferencedBy(m) {
			if inside[referrer] {
				continue
			}
			for _, slot := range ir.Slots {
				if idx := tx.removeChild(referrer, slot, m); idx >= 0 {
					stripped = append(stripped, RefLink{ParentID: referrer, Slot: slot, Index: idx, ChildID: m})
				}
			}
			tx.dropRef(m, referrer)
		}
	}

	for _, m := range members {
		for _, slot := range ir.Slots {
			for _, child := range tx.s.children[m][slot] {
				if !tx.s.IsOwned(m, slot, child) {
					tx.dropRef(child, m)
				}
			}
		}
	}

	parent := tx.s.parents[id]
	index := tx.removeChild(parent.ParentID, parent.Slot, id)

	parents := tx.parents()
	kinds := tx.kinds()
	for _, m := range members {
		kind := kinds[m]
		delete(tx.table(kind), m)
		delete(kinds, m)
		delete(parents, m)
		tx.dropLists(m)
	}

	return Detached{Subtree: subtree, Parent: parent, Index: index, StrippedRefs: stripped}, nil
}

// RestoreRefs re-inserts stripped references in reverse removal order, so
// each lands at the index it was removed from. Links whose parent or child
// is no longer live, or that are already present, are skipped with a warning.
func (tx *Txn) RestoreRefs(links []RefLink) []Warning {
	var warnings []Warning
	for i := len(links) - 1; i >= 0; i-- {
		link := links[i]
		switch {
		case !tx.s.Has(link.ParentID):
			warnings = append(warnings, Warning{Code: ir.ErrEntityNotFound, EntityID: link.ChildID, Message: "referrer " + link.ParentID + " no longer exists; reference not restored"})
			continue
		case !tx.s.Has(link.ChildID):
			warnings = append(warnings, Warning{Code: ir.ErrEntityNotFound, EntityID: link.ChildID, Message: "entity " + link.ChildID + " not live; reference not restored"})
			continue
		case slices.Contains(tx.s.children[link.ParentID][link.Slot], link.ChildID):
			continue
		}
		tx.insertChild(link.ParentID, link.Slot, link.Index, link.ChildID)
		tx.addRef(link.ChildID, link.ParentID)
	}
	return warnings
}

// Reorder replaces the child list of parent in slot. The new order must be
// a permutation of the current list: nothing dropped, added or repeated.
func (tx *Txn) Reorder(parent string, slot ir.Slot, order []string) error {
	if !tx.s.Has(parent) {
		return notFound(parent)
	}
	current := tx.s.children[parent][slot]
	if !samePermutation(current, order) {
		return errorf(ir.ErrInvalidShape, parent, "new order must contain exactly the current %d children of %s.%s", len(current), parent, slot)
	}
	tx.setList(parent, slot, slices.Clone(order))
	return nil
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	sort.Strings(x)
	sort.Strings(y)
	return slices.Equal(x, y) && slices.Equal(slices.Compact(slices.Clone(y)), y)
}

// Move re-parents an owned entity. References to it are unaffected.
func (tx *Txn) Move(id, parent string, slot ir.Slot, index int) error {
	if !tx.s.Has(id) {
		return notFound(id)
	}
	if !tx.s.Has(parent) {
		return notFound(parent)
	}
	if id == tx.s.root {
		return errorf(ir.ErrStructuralIntegrity, id, "cannot move root %s", id)
	}
	if parent == id || slices.Contains(tx.s.Ancestors(parent), id) {
		return errorf(ir.ErrStructuralIntegrity, id, "cannot move %s into its own subtree", id)
	}
	if slices.Contains(tx.s.children[parent][slot], id) && !tx.s.IsOwned(parent, slot, id) {
		return errorf(ir.ErrStructuralIntegrity, id, "%s already references %s", parent, id)
	}
	old := tx.s.parents[id]
	if tx.s.kinds[id] == ir.KindCollection && tx.s.kinds[parent] == ir.KindCollection {
		graph := tx.s.collectionGraph()
		if idx := slices.Index(graph[old.ParentID], id); idx >= 0 {
			graph[old.ParentID] = slices.Delete(slices.Clone(graph[old.ParentID]), idx, idx+1)
		}
		if cycle := graph.cyclePath(parent, id); cycle != nil {
			return errorf(ir.ErrStructuralIntegrity, id, "%s", formatCycle(cycle))
		}
	}
	tx.removeChild(old.ParentID, old.Slot, id)
	tx.insertChild(parent, slot, index, id)
	tx.parents()[id] = ParentRef{ParentID: parent, Slot: slot}
	return nil
}

// Link adds a non-owning reference to child in parent's slot list.
func (tx *Txn) Link(parent string, slot ir.Slot, index int, child string) error {
	if !tx.s.Has(parent) {
		return notFound(parent)
	}
	if !tx.s.Has(child) {
		return notFound(child)
	}
	if slices.Contains(tx.s.children[parent][slot], child) {
		return errorf(ir.ErrStructuralIntegrity, child, "%s already lists %s in %s", parent, child, slot)
	}
	if tx.s.kinds[child] == ir.KindCollection && tx.s.kinds[parent] == ir.KindCollection {
		if cycle := tx.s.collectionGraph().cyclePath(parent, child); cycle != nil {
			return errorf(ir.ErrStructuralIntegrity, child, "%s", formatCycle(cycle))
		}
	}
	tx.insertChild(parent, slot, index, child)
	tx.addRef(child, parent)
	return nil
}

// Unlink removes a non-owning reference. Owned children cannot be unlinked.
func (tx *Txn) Unlink(parent string, slot ir.Slot, child string) error {
	if !tx.s.Has(parent) {
		return notFound(parent)
	}
	if !slices.Contains(tx.s.children[parent][slot], child) {
		return errorf(ir.ErrEntityNotFound, child, "%s does not reference %s in %s", parent, child, slot)
	}
	if tx.s.IsOwned(parent, slot, child) {
		return errorf(ir.ErrStructuralIntegrity, child, "%s owns %s; remove it instead of unlinking", parent, child)
	}
	tx.removeChild(parent, slot, child)
	tx.dropRef(child, parent)
	return nil
}

// PutTrash stores a trash entry, replacing any entry with the same ID.
func (tx *Txn) PutTrash(t TrashedEntity) {
	tx.trashTable()[t.ID] = t
}

// DeleteTrash removes a trash entry and reports whether it existed.
func (tx *Txn) DeleteTrash(id string) bool {
	if _, ok := tx.s.trash[id]; !ok {
		return false
	}
	delete(tx.trashTable(), id)
	return true
}

// Rekey replaces the entity stored under old with e, which carries a new ID
// of the same kind. Every list entry, parent link and reference that names
// old is rewritten to the new ID in place.
func (tx *Txn) Rekey(old string, e ir.Entity) error {
	kind, ok := tx.s.kinds[old]
	if !ok {
		return notFound(old)
	}
	id := e.EntityID()
	if kind != e.EntityKind() {
		return errorf(ir.ErrInvalidShape, old, "cannot replace %s with %s", kind, e.EntityKind())
	}
	if id == old {
		return tx.Put(e)
	}
	if tx.s.Has(id) {
		return errorf(ir.ErrStructuralIntegrity, id, "duplicate id %s", id)
	}

	table := tx.table(kind)
	delete(table, old)
	table[id] = e
	kinds := tx.kinds()
	delete(kinds, old)
	kinds[id] = kind
	if tx.s.root == old {
		tx.s.root = id
	}

	parents := tx.parents()
	if p, ok := parents[old]; ok {
		delete(parents, old)
		parents[id] = p
		tx.replaceInList(p.ParentID, p.Slot, old, id)
	}
	for _, slot := range ir.Slots {
		list := tx.s.children[old][slot]
		if len(list) == 0 {
			continue
		}
		for _, child := range list {
			if p, ok := parents[child]; ok && p.ParentID == old && p.Slot == slot {
				parents[child] = ParentRef{ParentID: id, Slot: slot}
				continue
			}
			refs := tx.refIndex()
			refs[child] = replaceAll(refs[child], old, id)
		}
		tx.setList(id, slot, slices.Clone(list))
	}
	tx.dropLists(old)

	if referrers, ok := tx.s.refs[old]; ok {
		refs := tx.refIndex()
		delete(refs, old)
		refs[id] = referrers
		for _, referrer := range referrers {
			for _, slot := range ir.Slots {
				tx.replaceInList(referrer, slot, old, id)
			}
		}
	}
	if kind == ir.KindCanvas {
		tx.retarget(old, id)
	}
	return nil
}

// retarget points every annotation targeting old at id instead.
func (tx *Txn) retarget(old, id string) {
	for aid, e := range tx.s.entities[ir.KindAnnotation] {
		a := e.(*ir.Annotation)
		if a.Target.Source != old {
			continue
		}
		c := ir.Clone(a).(*ir.Annotation)
		c.Target.Source = id
		tx.table(ir.KindAnnotation)[aid] = c
	}
}

func (tx *Txn) replaceInList(parent string, slot ir.Slot, old, id string) {
	list := tx.s.children[parent][slot]
	if !slices.Contains(list, old) {
		return
	}
	tx.setList(parent, slot, replaceAll(list, old, id))
}

func replaceAll(list []string, old, id string) []string {
	out := slices.Clone(list)
	for i, v := range out {
		if v == old {
			out[i] = id
		}
	}
	return out
}
