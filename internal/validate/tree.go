package validate

import (
	"strings"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// ValidateTree checks every node of a document tree. The result maps entity
// IDs to their issues; entities without issues are absent.
func (v *Validator) ValidateTree(root *ir.Node) map[string][]Issue {
	w := v.newWalk(nil)
	if root == nil {
		return w.out
	}
	if !root.Kind().IsRootKind() {
		w.add(root.ID(), errorIssue(CategoryHierarchy, ir.ErrInvalidChildType, "type", "root must be Collection or Manifest, got %s", root.Kind()))
	}
	w.index(root)
	w.visit(root, "", "", nil)
	return w.out
}

// ValidateSubtree checks a subtree about to be inserted under parent in
// slot of s. IDs already live in s are reported as duplicates, and
// references may point at live entities outside the subtree.
func (v *Validator) ValidateSubtree(s *vault.State, parent string, slot ir.Slot, root *ir.Node) map[string][]Issue {
	w := v.newWalk(s.Kind)
	if root == nil {
		return w.out
	}
	w.index(root)
	for id := range w.owned {
		if s.Has(id) {
			w.add(id, errorIssue(CategoryIdentity, ir.ErrStructuralIntegrity, "id", "id %s is already in use", id))
		}
	}
	ctx := v.PlacementContext(s, parent, slot)
	w.visit(root, ctx.ParentKind, ctx.Slot, ctx.ParentBehaviors)
	return w.out
}

// ValidateState checks the denormalized tree of s.
func (v *Validator) ValidateState(s *vault.State) map[string][]Issue {
	if s.RootID() == "" {
		return map[string][]Issue{}
	}
	return v.ValidateTree(vault.Denormalize(s))
}

func (v *Validator) newWalk(outside func(string) (ir.Kind, bool)) *treeWalk {
	return &treeWalk{
		v:         v,
		owned:     make(map[string]*ir.Node),
		outside:   outside,
		out:       make(map[string][]Issue),
		durations: make(map[string]bool),
		done:      make(map[*ir.Node]bool),
	}
}

type treeWalk struct {
	v     *Validator
	owned map[string]*ir.Node
	// outside resolves IDs that are not part of the walked tree.
	outside func(string) (ir.Kind, bool)
	out     map[string][]Issue
	// durations memoizes hasDuration per ID.
	durations map[string]bool
	done      map[*ir.Node]bool
}

// index records owned nodes by ID and reports duplicates.
func (w *treeWalk) index(root *ir.Node) {
	root.Walk(func(n, _ *ir.Node, _ ir.Slot) bool {
		if n.Ref {
			return false
		}
		if _, dup := w.owned[n.ID()]; dup {
			w.add(n.ID(), errorIssue(CategoryIdentity, ir.ErrStructuralIntegrity, "id", "duplicate id %s", n.ID()))
			return false
		}
		w.owned[n.ID()] = n
		return true
	})
}

func (w *treeWalk) kindOf(id string) (ir.Kind, bool) {
	if n, ok := w.owned[id]; ok {
		return n.Kind(), true
	}
	if w.outside != nil {
		return w.outside(id)
	}
	return "", false
}

func (w *treeWalk) add(id string, issues ...Issue) {
	for i := range issues {
		issues[i].EntityID = id
	}
	w.out[id] = append(w.out[id], issues...)
}

func (w *treeWalk) visit(n *ir.Node, parentKind ir.Kind, slot ir.Slot, parentEff []string) {
	if w.done[n] {
		return
	}
	w.done[n] = true
	table := w.v.rules

	ctx := Context{ParentKind: parentKind, Slot: slot, ParentBehaviors: parentEff, HasDuration: w.hasDuration(n.ID(), map[string]bool{})}
	if issues := w.v.ValidateItem(n.Entity, ctx); len(issues) > 0 {
		w.add(n.ID(), issues...)
	}

	kind := n.Kind()
	for _, s := range ir.Slots {
		children := n.Children(s)
		if limit := table.SlotLimit(kind, s); limit > 0 && len(children) > limit {
			w.add(n.ID(), errorIssue(CategoryHierarchy, ir.ErrInvalidShape, string(s), "%s holds at most %d entries in %s, found %d", kind, limit, s, len(children)))
		}
		for _, child := range children {
			if child.Ref {
				w.checkRef(n, s, child)
			}
		}
	}
	if kind == ir.KindAnnotationPage && parentKind == ir.KindCanvas {
		w.checkMotivations(n, slot)
	}
	if a, ok := n.Entity.(*ir.Annotation); ok {
		w.checkTarget(a)
	}

	eff := table.EffectiveBehaviors(kind, n.Entity.Common().Behavior, parentKind, parentEff)
	for _, s := range ir.Slots {
		for _, child := range n.Children(s) {
			if !child.Ref {
				w.visit(child, kind, s, eff)
			}
		}
	}
}

func (w *treeWalk) checkRef(parent *ir.Node, slot ir.Slot, ref *ir.Node) {
	if !w.v.rules.CanContain(parent.Kind(), slot, ref.Kind()) {
		w.add(parent.ID(), errorIssue(CategoryHierarchy, ir.ErrInvalidChildType, string(slot), "%s cannot reference %s %s in %s", parent.Kind(), ref.Kind(), ref.ID(), slot))
		return
	}
	kind, ok := w.kindOf(ref.ID())
	switch {
	case !ok:
		w.add(parent.ID(), warningIssue(CategoryHierarchy, ir.ErrStructuralIntegrity, string(slot), "reference to %s, which is not in this document", ref.ID()))
	case kind != ref.Kind():
		w.add(parent.ID(), errorIssue(CategoryHierarchy, ir.ErrStructuralIntegrity, string(slot), "reference to %s expects %s, found %s", ref.ID(), ref.Kind(), kind))
	}
}

// checkMotivations flags annotations whose motivation does not match the
// page's role: the items page paints, annotations pages do not.
func (w *treeWalk) checkMotivations(page *ir.Node, slot ir.Slot) {
	for _, child := range page.Items {
		a, ok := child.Entity.(*ir.Annotation)
		if !ok {
			continue
		}
		painting := a.Motivation == ir.MotivationPainting
		switch {
		case slot == ir.SlotItems && !painting:
			w.add(a.ID, warningIssue(CategoryHierarchy, ir.ErrInvalidShape, "motivation", "painting page holds a %q annotation", a.Motivation))
		case slot == ir.SlotAnnotations && painting:
			w.add(a.ID, warningIssue(CategoryHierarchy, ir.ErrInvalidShape, "motivation", "painting annotation sits on a supplementary page"))
		}
	}
}

func (w *treeWalk) checkTarget(a *ir.Annotation) {
	source, _, _ := strings.Cut(a.Target.Source, "#")
	if source == "" {
		return
	}
	if kind, ok := w.kindOf(source); !ok || kind != ir.KindCanvas {
		w.add(a.ID, warningIssue(CategoryHierarchy, ir.ErrStructuralIntegrity, "target.source", "target %s is not a canvas in this document", source))
	}
}

func (w *treeWalk) hasDuration(id string, seen map[string]bool) bool {
	if d, ok := w.durations[id]; ok {
		return d
	}
	if seen[id] {
		return false
	}
	seen[id] = true
	n, ok := w.owned[id]
	if !ok {
		return false
	}
	result := false
	if c, ok := n.Entity.(*ir.Canvas); ok {
		result = c.IsTimeBased()
	} else {
		for _, slot := range ir.Slots {
			for _, child := range n.Children(slot) {
				if w.hasDuration(child.ID(), seen) {
					result = true
				}
			}
		}
	}
	w.durations[id] = result
	return result
}
