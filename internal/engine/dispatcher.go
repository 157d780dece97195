package engine

import (
	"fmt"
	"slices"
	"sort"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/clock"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/trash"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/validate"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// Result is the outcome of one dispatch.
//
// On failure State is the input State itself and Err is a *DispatchError.
// On success State is a new snapshot, or the input when the action was a
// no-op.
type Result struct {
	Success bool
	State   *vault.State
	Err     error
	// Warnings never block an action.
	Warnings []validate.Issue
	// Changes lists what the action changed, per entity, in the order the
	// entities were touched.
	Changes []EntityChanges
	// Notes describe automatic corrections made by HealEntity.
	Notes []string
}

// Dispatcher validates actions against a State and applies them.
// It holds no state of its own and is safe to share.
type Dispatcher struct {
	validator *validate.Validator
	clock     clock.Clock
}

// NewDispatcher returns a Dispatcher. A nil validator selects the default
// rule table; a nil clock selects the system clock.
func NewDispatcher(v *validate.Validator, c clock.Clock) *Dispatcher {
	if v == nil {
		v = validate.New(nil)
	}
	if c == nil {
		c = clock.System{}
	}
	return &Dispatcher{validator: v, clock: c}
}

// Validator returns the validator actions are checked with.
func (d *Dispatcher) Validator() *validate.Validator { return d.validator }

// Dispatch applies a to s. s is never modified.
func (d *Dispatcher) Dispatch(s *vault.State, a Action) Result {
	if s == nil {
		s = vault.Empty()
	}
	if a == nil {
		return Result{State: s, Err: newError(ir.ErrInvalidShape, "", "", "no action")}
	}
	op := &operation{d: d, base: s, tx: s.Begin(), name: a.Type()}
	next, err := op.run(a)
	if err != nil {
		return Result{State: s, Err: wrapError(a.Type(), err)}
	}
	return Result{
		Success:  true,
		State:    next,
		Warnings: op.warnings,
		Changes:  op.changes.list(),
		Notes:    op.notes,
	}
}

// operation carries one dispatch. Edits go through tx; base is the
// untouched input and supplies "before" values for structural changes.
type operation struct {
	d    *Dispatcher
	base *vault.State
	tx   *vault.Txn
	name string

	warnings []validate.Issue
	changes  changeSet
	notes    []string
}

func (op *operation) run(a Action) (*vault.State, error) {
	var err error
	switch a := a.(type) {
	case UpdateLabel:
		err = op.edit(a.ID, func(e ir.Entity) error {
			e.Common().Label = emptyAsNil(a.Label)
			return nil
		})
	case UpdateSummary:
		err = op.edit(a.ID, func(e ir.Entity) error {
			e.Common().Summary = emptyAsNil(a.Summary)
			return nil
		})
	case UpdateMetadata:
		err = op.edit(a.ID, func(e ir.Entity) error {
			e.Common().Metadata = ir.CloneMetadata(a.Metadata)
			return nil
		})
	case UpdateBehavior:
		err = op.edit(a.ID, func(e ir.Entity) error {
			e.Common().Behavior = cloneStrings(a.Behavior)
			return nil
		})
	case UpdateRights:
		err = op.edit(a.ID, func(e ir.Entity) error {
			e.Common().Rights = a.Rights
			return nil
		})
	case UpdateNavDate:
		err = op.edit(a.ID, func(e ir.Entity) error {
			e.Common().NavDate = a.NavDate
			return nil
		})
	case UpdateCanvasDimensions:
		err = op.edit(a.ID, func(e ir.Entity) error {
			c, ok := e.(*ir.Canvas)
			if !ok {
				return newError(ir.ErrInvalidShape, op.name, a.ID, "%s is a %s, not a Canvas", a.ID, e.EntityKind())
			}
			c.Width, c.Height, c.Duration = a.Width, a.Height, a.Duration
			return nil
		})
	case BatchUpdate:
		err = op.batch(a)
	case AddCanvas:
		err = op.addCanvas(a)
	case AddChild:
		err = op.addChild(a.ParentID, a.Slot, a.Index, a.Child)
	case RemoveEntity:
		err = op.remove(a.ID)
	case ReorderChildren:
		err = op.reorder(a)
	case MoveEntity:
		err = op.move(a)
	case LinkReference:
		err = op.link(a)
	case UnlinkReference:
		err = op.unlink(a)
	case HealEntity:
		err = op.heal(a.ID)
	case MoveToTrash:
		return op.moveToTrash(a)
	case RestoreFromTrash:
		return op.restore(a)
	default:
		err = newError(ir.ErrInvalidShape, op.name, "", "unsupported action %T", a)
	}
	if err != nil {
		return nil, err
	}
	return op.tx.Commit(), nil
}

// edit replaces one entity with a mutated copy after validating it.
func (op *operation) edit(id string, mutate func(ir.Entity) error) error {
	view := op.tx.View()
	cur, ok := view.Entity(id)
	if !ok {
		return notFound(op.name, id)
	}
	next := ir.Clone(cur)
	if err := mutate(next); err != nil {
		return err
	}
	changes := diffEntity(cur, next)
	if len(changes) == 0 {
		return nil
	}
	if err := op.check(view, cur, next, changes); err != nil {
		return err
	}
	if err := op.tx.Put(next); err != nil {
		return err
	}
	op.changes.add(id, changes...)
	return nil
}

type issueKey struct {
	code    ir.ErrorCode
	field   string
	message string
}

func keyOf(i validate.Issue) issueKey { return issueKey{i.Code, i.Field, i.Message} }

// check validates next in the entity's current position. An error blocks
// the edit when it is new or sits on a property the edit changes, so an
// entity imported with unrelated problems stays editable. New warnings are
// reported.
func (op *operation) check(s *vault.State, cur, next ir.Entity, changes []provenance.Change) error {
	v := op.d.validator
	ctx := v.ItemContext(s, cur.EntityID())
	if _, ok := next.(*ir.Canvas); ok {
		// A canvas's duration comes from the entity being validated.
		ctx.HasDuration = false
	}
	seen := make(map[issueKey]bool)
	for _, issue := range v.ValidateItem(cur, ctx) {
		seen[keyOf(issue)] = true
	}
	var blocking []validate.Issue
	for _, issue := range v.ValidateItem(next, ctx) {
		fresh := !seen[keyOf(issue)]
		switch {
		case issue.Level == validate.LevelError && (fresh || touchesAny(issue.Field, changes)):
			blocking = append(blocking, issue)
		case issue.Level == validate.LevelWarning && fresh:
			op.warnings = append(op.warnings, issue)
		}
	}
	if len(blocking) > 0 {
		return issueError(op.name, blocking)
	}
	return nil
}

func touchesAny(field string, changes []provenance.Change) bool {
	for _, c := range changes {
		if touches(field, c.Property) || (isExtent(c.Property) && isExtent(field)) {
			return true
		}
	}
	return false
}

func isExtent(p string) bool { return p == "width" || p == "height" || p == "duration" }

func (op *operation) batch(a BatchUpdate) error {
	if len(a.Updates) == 0 {
		return newError(ir.ErrInvalidShape, op.name, "", "batch has no updates")
	}
	for i, u := range a.Updates {
		if u.Changes.IsEmpty() {
			return newError(ir.ErrInvalidShape, op.name, u.ID, "update[%d] sets no properties", i)
		}
		err := op.edit(u.ID, func(e ir.Entity) error {
			u.Changes.apply(e.Common())
			return nil
		})
		if err != nil {
			de := wrapError(op.name, err)
			de.Message = fmt.Sprintf("update[%d]: %s", i, de.Message)
			return de
		}
	}
	return nil
}

func (op *operation) addCanvas(a AddCanvas) error {
	if a.Canvas == nil || a.Canvas.Ref {
		return newError(ir.ErrInvalidShape, op.name, a.ManifestID, "no canvas given")
	}
	if a.Canvas.Kind() != ir.KindCanvas {
		return newError(ir.ErrInvalidChildType, op.name, a.Canvas.ID(), "expected a Canvas, got %s", a.Canvas.Kind())
	}
	kind, ok := op.tx.View().Kind(a.ManifestID)
	if !ok {
		return notFound(op.name, a.ManifestID)
	}
	if kind != ir.KindManifest {
		return newError(ir.ErrInvalidChildType, op.name, a.ManifestID, "%s is a %s, not a Manifest", a.ManifestID, kind)
	}
	return op.addChild(a.ManifestID, ir.SlotItems, a.Index, a.Canvas)
}

func (op *operation) addChild(parent string, slot ir.Slot, index *int, child *ir.Node) error {
	if child == nil || child.Ref {
		return newError(ir.ErrInvalidShape, op.name, parent, "no child subtree given")
	}
	slot, err := op.slot(slot)
	if err != nil {
		return err
	}
	view := op.tx.View()
	parentKind, ok := view.Kind(parent)
	if !ok {
		return notFound(op.name, parent)
	}
	table := op.d.validator.Rules()
	if !table.CanContain(parentKind, slot, child.Kind()) {
		return newError(ir.ErrInvalidChildType, op.name, child.ID(), "%s cannot hold %s in %s", parentKind, child.Kind(), slot)
	}
	before := view.ChildrenIn(parent, slot)
	if limit := table.SlotLimit(parentKind, slot); limit > 0 && len(before) >= limit {
		return newError(ir.ErrInvalidShape, op.name, parent, "%s holds at most %d entries in %s", parentKind, limit, slot)
	}
	var trashed string
	child.Walk(func(n, _ *ir.Node, _ ir.Slot) bool {
		if n.Ref || trashed != "" {
			return false
		}
		if view.IsTrashed(n.ID()) {
			trashed = n.ID()
		}
		return trashed == ""
	})
	if trashed != "" {
		return newError(ir.ErrStructuralIntegrity, op.name, trashed, "id %s belongs to a trashed entity", trashed)
	}
	if err := op.collect(op.d.validator.ValidateSubtree(view, parent, slot, child)); err != nil {
		return err
	}

	warnings, err := op.tx.Graft(parent, slot, indexOrAppend(index), cloneTree(child))
	if err != nil {
		return err
	}
	op.vaultWarnings(warnings)
	op.changes.add(parent, listChange(slot, before, op.tx.View().ChildrenIn(parent, slot)))
	op.changes.add(child.ID(), provenance.Change{Property: PropertyParent, OldValue: ir.Null{}, NewValue: parentValue(parent)})
	return nil
}

// collect splits per-entity issues into blocking errors and warnings,
// visiting entities in ID order.
func (op *operation) collect(byID map[string][]validate.Issue) error {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var blocking []validate.Issue
	for _, id := range ids {
		blocking = append(blocking, validate.Errors(byID[id])...)
		op.warnings = append(op.warnings, validate.Warnings(byID[id])...)
	}
	if len(blocking) > 0 {
		return issueError(op.name, blocking)
	}
	return nil
}

func (op *operation) vaultWarnings(warnings []vault.Warning) {
	for _, w := range warnings {
		op.warnings = append(op.warnings, validate.Issue{
			Level:    validate.LevelWarning,
			Category: validate.CategoryHierarchy,
			Code:     w.Code,
			EntityID: w.EntityID,
			Message:  w.Message,
		})
	}
}

func (op *operation) remove(id string) error {
	if !op.tx.View().Has(id) {
		return notFound(op.name, id)
	}
	detached, err := op.tx.Detach(id)
	if err != nil {
		return err
	}
	op.recordDetach(id, detached.Parent, detached.StrippedRefs, op.tx.View())
	op.changes.add(id, provenance.Change{Property: PropertyParent, OldValue: parentValue(detached.Parent.ParentID), NewValue: ir.Null{}})
	return nil
}

// recordDetach records the list changes caused by removing id: the owning
// parent's list and every list a reference was stripped from.
func (op *operation) recordDetach(id string, parent vault.ParentRef, stripped []vault.RefLink, after *vault.State) {
	op.recordList(parent.ParentID, parent.Slot, after)
	for _, link := range stripped {
		op.recordList(link.ParentID, link.Slot, after)
		op.warnings = append(op.warnings, validate.Issue{
			Level:    validate.LevelWarning,
			Category: validate.CategoryHierarchy,
			Code:     ir.ErrStructuralIntegrity,
			EntityID: link.ParentID,
			Field:    string(link.Slot),
			Message:  fmt.Sprintf("reference to %s removed with %s", link.ChildID, id),
		})
	}
}

// recordList records a child list change once per parent and slot.
func (op *operation) recordList(parent string, slot ir.Slot, after *vault.State) {
	if op.changes.has(parent, string(slot)) {
		return
	}
	before, now := op.base.ChildrenIn(parent, slot), after.ChildrenIn(parent, slot)
	if slices.Equal(before, now) {
		return
	}
	op.changes.add(parent, listChange(slot, before, now))
}

func (op *operation) reorder(a ReorderChildren) error {
	slot, err := op.slot(a.Slot)
	if err != nil {
		return err
	}
	if !op.tx.View().Has(a.ParentID) {
		return notFound(op.name, a.ParentID)
	}
	if err := op.tx.Reorder(a.ParentID, slot, a.Order); err != nil {
		return err
	}
	op.recordList(a.ParentID, slot, op.tx.View())
	return nil
}

func (op *operation) move(a MoveEntity) error {
	slot, err := op.slot(a.Slot)
	if err != nil {
		return err
	}
	view := op.tx.View()
	e, ok := view.Entity(a.ID)
	if !ok {
		return notFound(op.name, a.ID)
	}
	parentKind, ok := view.Kind(a.ParentID)
	if !ok {
		return notFound(op.name, a.ParentID)
	}
	table := op.d.validator.Rules()
	if !table.CanContain(parentKind, slot, e.EntityKind()) {
		return newError(ir.ErrInvalidChildType, op.name, a.ID, "%s cannot hold %s in %s", parentKind, e.EntityKind(), slot)
	}
	old, _ := view.ParentRef(a.ID)
	if old.ParentID != a.ParentID || old.Slot != slot {
		if limit := table.SlotLimit(parentKind, slot); limit > 0 && len(view.ChildrenIn(a.ParentID, slot)) >= limit {
			return newError(ir.ErrInvalidShape, op.name, a.ParentID, "%s holds at most %d entries in %s", parentKind, limit, slot)
		}
	}

	v := op.d.validator
	seen := make(map[issueKey]bool)
	for _, issue := range v.ValidateItem(e, v.ItemContext(view, a.ID)) {
		seen[keyOf(issue)] = true
	}
	if err := op.tx.Move(a.ID, a.ParentID, slot, indexOrAppend(a.Index)); err != nil {
		return err
	}
	after := op.tx.View()
	for _, issue := range validate.Warnings(v.ValidateItem(e, v.ItemContext(after, a.ID))) {
		if !seen[keyOf(issue)] {
			op.warnings = append(op.warnings, issue)
		}
	}
	op.recordList(old.ParentID, old.Slot, after)
	op.recordList(a.ParentID, slot, after)
	if old.ParentID != a.ParentID {
		op.changes.add(a.ID, provenance.Change{Property: PropertyParent, OldValue: parentValue(old.ParentID), NewValue: parentValue(a.ParentID)})
	}
	return nil
}

// referable lists the parent/child pairings that may hold non-owning
// references.
func referable(parent ir.Kind, slot ir.Slot, child ir.Kind) bool {
	if slot != ir.SlotItems {
		return false
	}
	switch parent {
	case ir.KindRange:
		return child == ir.KindCanvas
	case ir.KindCollection:
		return child == ir.KindCollection || child == ir.KindManifest
	}
	return false
}

func (op *operation) link(a LinkReference) error {
	slot, err := op.slot(a.Slot)
	if err != nil {
		return err
	}
	view := op.tx.View()
	parentKind, ok := view.Kind(a.ParentID)
	if !ok {
		return notFound(op.name, a.ParentID)
	}
	childKind, ok := view.Kind(a.ChildID)
	if !ok {
		return notFound(op.name, a.ChildID)
	}
	if !referable(parentKind, slot, childKind) || !op.d.validator.Rules().CanContain(parentKind, slot, childKind) {
		return newError(ir.ErrInvalidChildType, op.name, a.ChildID, "%s cannot reference %s in %s", parentKind, childKind, slot)
	}
	if parentKind == ir.KindRange {
		rangeManifest, canvasManifest := manifestOf(view, a.ParentID), manifestOf(view, a.ChildID)
		if rangeManifest != canvasManifest {
			return newError(ir.ErrInvalidChildType, op.name, a.ChildID, "canvas %s belongs to %s, not %s", a.ChildID, canvasManifest, rangeManifest)
		}
	}
	if err := op.tx.Link(a.ParentID, slot, indexOrAppend(a.Index), a.ChildID); err != nil {
		return err
	}
	op.recordList(a.ParentID, slot, op.tx.View())
	return nil
}

// manifestOf returns the closest Manifest owning id.
func manifestOf(s *vault.State, id string) string {
	chain := s.Ancestors(id)
	for i := len(chain) - 1; i >= 0; i-- {
		if kind, _ := s.Kind(chain[i]); kind == ir.KindManifest {
			return chain[i]
		}
	}
	return ""
}

func (op *operation) unlink(a UnlinkReference) error {
	slot, err := op.slot(a.Slot)
	if err != nil {
		return err
	}
	if err := op.tx.Unlink(a.ParentID, slot, a.ChildID); err != nil {
		return err
	}
	op.recordList(a.ParentID, slot, op.tx.View())
	return nil
}

func (op *operation) heal(id string) error {
	view := op.tx.View()
	cur, ok := view.Entity(id)
	if !ok {
		return notFound(op.name, id)
	}
	healed, fixes := validate.Heal(cur, op.d.validator.Rules())
	if len(fixes) == 0 {
		return nil
	}
	if newID := healed.EntityID(); newID != id {
		targeting := annotationsTargeting(view, id)
		if err := op.tx.Rekey(id, healed); err != nil {
			return err
		}
		after := op.tx.View()
		for _, before := range targeting {
			now, _ := after.Entity(before.EntityID())
			op.changes.add(before.EntityID(), diffEntity(before, now)...)
		}
		if len(targeting) > 0 {
			op.notes = append(op.notes, fmt.Sprintf("retargeted %d annotation(s) from %s to %s", len(targeting), id, newID))
		}
	} else if err := op.tx.Put(healed); err != nil {
		return err
	}
	op.changes.add(healed.EntityID(), diffEntity(cur, healed)...)
	op.notes = append(op.notes, fixes...)
	return nil
}

// annotationsTargeting lists the annotations whose target source is id.
func annotationsTargeting(s *vault.State, id string) []ir.Entity {
	var out []ir.Entity
	for _, e := range s.EntitiesOfKind(ir.KindAnnotation) {
		if e.(*ir.Annotation).Target.Source == id {
			out = append(out, e)
		}
	}
	return out
}

func (op *operation) moveToTrash(a MoveToTrash) (*vault.State, error) {
	res, err := trash.MoveToTrash(op.base, a.ID, op.d.clock.Now())
	if err != nil {
		return nil, err
	}
	parent := vault.ParentRef{ParentID: res.Entry.OriginalParentID, Slot: res.Entry.OriginalSlot}
	op.recordDetach(a.ID, parent, res.Entry.StrippedRefs, res.State)
	op.changes.add(a.ID, provenance.Change{Property: PropertyTrashed, OldValue: ir.Bool(false), NewValue: ir.Bool(true)})
	return res.State, nil
}

func (op *operation) restore(a RestoreFromTrash) (*vault.State, error) {
	var slot ir.Slot
	if a.Slot != "" {
		var err error
		if slot, err = op.slot(a.Slot); err != nil {
			return nil, err
		}
	}
	res, err := trash.Restore(op.base, a.ID, trash.RestoreOptions{
		ParentID: a.ParentID,
		Slot:     slot,
		Rules:    op.d.validator.Rules(),
	})
	if err != nil {
		return nil, err
	}
	if ref, ok := res.State.ParentRef(a.ID); ok {
		op.recordList(ref.ParentID, ref.Slot, res.State)
	}
	for _, link := range res.Entry.StrippedRefs {
		op.recordList(link.ParentID, link.Slot, res.State)
	}
	op.vaultWarnings(res.Warnings)
	op.changes.add(a.ID, provenance.Change{Property: PropertyTrashed, OldValue: ir.Bool(true), NewValue: ir.Bool(false)})
	return res.State, nil
}

// slot resolves an optional slot name, defaulting to items.
func (op *operation) slot(s ir.Slot) (ir.Slot, error) {
	slot, err := ir.ParseSlot(string(s))
	if err != nil {
		return "", newError(ir.ErrInvalidShape, op.name, "", "%v", err)
	}
	return slot, nil
}

// cloneTree deep-copies a subtree so the caller's nodes never end up in a
// State.
func cloneTree(n *ir.Node) *ir.Node {
	if n == nil {
		return nil
	}
	out := &ir.Node{Entity: ir.Clone(n.Entity), Ref: n.Ref}
	for _, slot := range ir.Slots {
		children := n.Children(slot)
		if len(children) == 0 {
			continue
		}
		copied := make([]*ir.Node, len(children))
		for i, child := range children {
			copied[i] = cloneTree(child)
		}
		out.SetChildren(slot, copied)
	}
	return out
}

// changeSet accumulates changes per entity in first-touched order.
type changeSet struct {
	order []string
	byID  map[string][]provenance.Change
}

func (c *changeSet) add(id string, changes ...provenance.Change) {
	if len(changes) == 0 {
		return
	}
	if c.byID == nil {
		c.byID = make(map[string][]provenance.Change)
	}
	if _, ok := c.byID[id]; !ok {
		c.order = append(c.order, id)
	}
	c.byID[id] = append(c.byID[id], changes...)
}

func (c *changeSet) has(id, property string) bool {
	for _, change := range c.byID[id] {
		if change.Property == property {
			return true
		}
	}
	return false
}

func (c *changeSet) list() []EntityChanges {
	out := make([]EntityChanges, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, EntityChanges{EntityID: id, Changes: c.byID[id]})
	}
	return out
}
