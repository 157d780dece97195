package validate

import (
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// EffectiveBehaviors resolves the behaviors in force on a live entity,
// applying inheritance from the root down.
func (v *Validator) EffectiveBehaviors(s *vault.State, id string) []string {
	var eff []string
	var parentKind ir.Kind
	for _, link := range append(s.Ancestors(id), id) {
		e, ok := s.Entity(link)
		if !ok {
			return nil
		}
		eff = v.rules.EffectiveBehaviors(e.EntityKind(), e.Common().Behavior, parentKind, eff)
		parentKind = e.EntityKind()
	}
	return eff
}

// PlacementContext returns the Context for an entity placed under parent
// in slot.
func (v *Validator) PlacementContext(s *vault.State, parent string, slot ir.Slot) Context {
	kind, _ := s.Kind(parent)
	return Context{
		ParentKind:      kind,
		Slot:            slot,
		ParentBehaviors: v.EffectiveBehaviors(s, parent),
	}
}

// ItemContext returns the Context of a live entity at its current position.
func (v *Validator) ItemContext(s *vault.State, id string) Context {
	var ctx Context
	if ref, ok := s.ParentRef(id); ok {
		ctx = v.PlacementContext(s, ref.ParentID, ref.Slot)
	}
	ctx.HasDuration = HasDuration(s, id)
	return ctx
}

// HasDuration reports whether a live entity is, owns or references a
// time-based canvas.
func HasDuration(s *vault.State, id string) bool {
	seen := make(map[string]bool)
	var visit func(string) bool
	visit = func(id string) bool {
		if seen[id] {
			return false
		}
		seen[id] = true
		e, ok := s.Entity(id)
		if !ok {
			return false
		}
		if c, ok := e.(*ir.Canvas); ok {
			return c.IsTimeBased()
		}
		for _, slot := range ir.Slots {
			for _, child := range s.ChildrenIn(id, slot) {
				if visit(child) {
					return true
				}
			}
		}
		return false
	}
	return visit(id)
}
