package engine

import (
	"slices"
	"strings"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
)

// EntityChanges groups the property changes an action made to one entity.
type EntityChanges struct {
	EntityID string              `json:"entityId"`
	Changes  []provenance.Change `json:"changes"`
}

// Provenance property names for structural changes.
const (
	PropertyParent  = "parent"
	PropertyTrashed = "trashed"
	PropertyID      = "id"
)

// diffEntity lists the properties that differ between two versions of an
// entity, in a fixed order.
func diffEntity(before, after ir.Entity) []provenance.Change {
	var out []provenance.Change
	add := func(property string, old, new ir.Value) {
		out = append(out, provenance.Change{Property: property, OldValue: old, NewValue: new})
	}
	b, a := before.Common(), after.Common()
	if b.ID != a.ID {
		add(PropertyID, ir.Str(b.ID), ir.Str(a.ID))
	}
	if !b.Label.Equal(a.Label) {
		add("label", ir.ValueOfLanguageMap(b.Label), ir.ValueOfLanguageMap(a.Label))
	}
	if !b.Summary.Equal(a.Summary) {
		add("summary", ir.ValueOfLanguageMap(b.Summary), ir.ValueOfLanguageMap(a.Summary))
	}
	if !ir.MetadataEqual(b.Metadata, a.Metadata) {
		add("metadata", ir.ValueOfMetadata(b.Metadata), ir.ValueOfMetadata(a.Metadata))
	}
	if !slices.Equal(b.Behavior, a.Behavior) {
		add("behavior", ir.ValueOfStrings(b.Behavior), ir.ValueOfStrings(a.Behavior))
	}
	if b.Rights != a.Rights {
		add("rights", ir.ValueOfString(b.Rights), ir.ValueOfString(a.Rights))
	}
	if b.NavDate != a.NavDate {
		add("navDate", ir.ValueOfString(b.NavDate), ir.ValueOfString(a.NavDate))
	}
	if bc, ok := before.(*ir.Canvas); ok {
		ac := after.(*ir.Canvas)
		if bc.Width != ac.Width {
			add("width", intValue(bc.Width), intValue(ac.Width))
		}
		if bc.Height != ac.Height {
			add("height", intValue(bc.Height), intValue(ac.Height))
		}
		if bc.Duration != ac.Duration {
			add("duration", ir.ValueOfFloat(bc.Duration), ir.ValueOfFloat(ac.Duration))
		}
	}
	if ba, ok := before.(*ir.Annotation); ok {
		aa := after.(*ir.Annotation)
		if ba.Target.Source != aa.Target.Source {
			add("target", ir.ValueOfString(ba.Target.Source), ir.ValueOfString(aa.Target.Source))
		}
	}
	return out
}

func intValue(n int) ir.Value {
	if n == 0 {
		return ir.Null{}
	}
	return ir.Int(n)
}

// listChange records a child list before and after a structural edit.
func listChange(slot ir.Slot, before, after []string) provenance.Change {
	return provenance.Change{
		Property: string(slot),
		OldValue: listValue(before),
		NewValue: listValue(after),
	}
}

func listValue(list []string) ir.Value {
	if len(list) == 0 {
		return ir.Array{}
	}
	return ir.ValueOfStrings(list)
}

func parentValue(id string) ir.Value {
	return ir.ValueOfString(id)
}

// touches reports whether an issue field falls under property, so that
// "label.en[0]" and "behavior[2]" belong to "label" and "behavior".
func touches(field, property string) bool {
	return field == property ||
		strings.HasPrefix(field, property+".") ||
		strings.HasPrefix(field, property+"[")
}
