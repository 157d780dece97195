package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

func TestDefaultLoads(t *testing.T) {
	table := Default()
	require.NotNil(t, table)
	assert.Same(t, table, Default(), "default table is shared")
	assert.Len(t, table.DisjointSets(), 5)
}

func TestIsBehaviorValidForType(t *testing.T) {
	table := Default()

	tests := []struct {
		behavior string
		kind     ir.Kind
		valid    bool
	}{
		{"facing-pages", ir.KindManifest, false},
		{"facing-pages", ir.KindCanvas, true},
		{"paged", ir.KindManifest, true},
		{"paged", ir.KindCollection, true},
		{"paged", ir.KindCanvas, false},
		{"auto-advance", ir.KindCanvas, true},
		{"repeat", ir.KindCanvas, false},
		{"multi-part", ir.KindCollection, true},
		{"multi-part", ir.KindManifest, false},
		{"thumbnail-nav", ir.KindRange, true},
		{"hidden", ir.KindAnnotation, true},
		{"sparkly", ir.KindManifest, false},
	}

	for _, tt := range tests {
		t.Run(tt.behavior+"/"+string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.valid, table.IsBehaviorValidForType(tt.behavior, tt.kind))
		})
	}
}

func TestFindBehaviorConflicts(t *testing.T) {
	table := Default()

	conflicts := table.FindBehaviorConflicts([]string{"paged", "continuous"})
	require.Len(t, conflicts, 1)
	assert.Equal(t, "layout", conflicts[0].Set)
	assert.Equal(t, []string{"paged", "continuous"}, conflicts[0].Behaviors)

	assert.Empty(t, table.FindBehaviorConflicts([]string{"paged", "auto-advance"}))
	assert.Empty(t, table.FindBehaviorConflicts([]string{"paged", "paged"}), "repeated token is not a conflict")
	assert.Empty(t, table.FindBehaviorConflicts(nil))
}

func TestFindBehaviorConflictsMultipleSets(t *testing.T) {
	conflicts := Default().FindBehaviorConflicts([]string{"repeat", "paged", "no-repeat", "individuals"})
	require.Len(t, conflicts, 2)
	assert.Equal(t, "layout", conflicts[0].Set)
	assert.Equal(t, "temporal-repeat", conflicts[1].Set)
}

func TestDisjointSetOfAndDefaults(t *testing.T) {
	table := Default()

	set, ok := table.DisjointSetOf("continuous")
	require.True(t, ok)
	assert.Equal(t, "layout", set.Name)
	assert.Equal(t, "individuals", set.Default)

	_, ok = table.DisjointSetOf("multi-part")
	assert.False(t, ok)

	assert.Equal(t, "no-auto-advance", table.DefaultFor("temporal-advance"))
	assert.Equal(t, "no-repeat", table.DefaultFor("temporal-repeat"))
	assert.Equal(t, "", table.DefaultFor("canvas-paging"))
	assert.Equal(t, "", table.DefaultFor("no-such-set"))
}

func TestHierarchy(t *testing.T) {
	table := Default()

	assert.True(t, table.CanContain(ir.KindManifest, ir.SlotItems, ir.KindCanvas))
	assert.False(t, table.CanContain(ir.KindManifest, ir.SlotItems, ir.KindManifest))
	assert.True(t, table.CanContain(ir.KindCollection, ir.SlotItems, ir.KindManifest))
	assert.True(t, table.CanContain(ir.KindCollection, ir.SlotItems, ir.KindCollection))
	assert.False(t, table.CanContain(ir.KindCollection, ir.SlotItems, ir.KindCanvas))
	assert.True(t, table.CanContain(ir.KindRange, ir.SlotItems, ir.KindRange))
	assert.True(t, table.CanContain(ir.KindManifest, ir.SlotStructures, ir.KindRange))
	assert.False(t, table.CanContain(ir.KindAnnotation, ir.SlotItems, ir.KindAnnotation))

	assert.ElementsMatch(t, []ir.Kind{ir.KindCanvas, ir.KindRange}, table.AllowedChildren(ir.KindRange, ir.SlotItems))
	assert.Equal(t, []ir.Slot{ir.SlotItems, ir.SlotStructures, ir.SlotAnnotations}, table.SlotsFor(ir.KindManifest))
	assert.Empty(t, table.SlotsFor(ir.KindAnnotation))

	assert.Equal(t, 1, table.SlotLimit(ir.KindCanvas, ir.SlotItems))
	assert.Equal(t, 0, table.SlotLimit(ir.KindCanvas, ir.SlotAnnotations))
}

func TestInheritance(t *testing.T) {
	table := Default()

	assert.True(t, table.InheritsFrom(ir.KindCanvas, ir.KindManifest))
	assert.True(t, table.InheritsFrom(ir.KindRange, ir.KindManifest))
	assert.True(t, table.InheritsFrom(ir.KindCollection, ir.KindCollection))
	assert.False(t, table.InheritsFrom(ir.KindManifest, ir.KindCollection))
	assert.False(t, table.InheritsFrom(ir.KindCanvas, ir.KindRange))
}

func TestEffectiveBehaviors(t *testing.T) {
	table := Default()

	// Canvas takes auto-advance from its manifest; paged is not valid on canvases.
	eff := table.EffectiveBehaviors(ir.KindCanvas, []string{"facing-pages"}, ir.KindManifest, []string{"paged", "auto-advance"})
	assert.Equal(t, []string{"facing-pages", "auto-advance"}, eff)

	// Explicit choice wins over the inherited member of the same set.
	eff = table.EffectiveBehaviors(ir.KindCanvas, []string{"no-auto-advance"}, ir.KindManifest, []string{"auto-advance"})
	assert.Equal(t, []string{"no-auto-advance"}, eff)

	// Manifests never inherit from collections.
	eff = table.EffectiveBehaviors(ir.KindManifest, nil, ir.KindCollection, []string{"paged"})
	assert.Empty(t, eff)
}

func TestInheritanceConflicts(t *testing.T) {
	table := Default()

	conflicts := table.InheritanceConflicts(ir.KindCanvas, []string{"no-auto-advance"}, ir.KindManifest, []string{"auto-advance"})
	require.Len(t, conflicts, 1)
	assert.Equal(t, Conflict{Set: "temporal-advance", Behaviors: []string{"auto-advance", "no-auto-advance"}}, conflicts[0])

	assert.Empty(t, table.InheritanceConflicts(ir.KindManifest, []string{"individuals"}, ir.KindCollection, []string{"paged"}))
}

func TestBehaviorsOrdered(t *testing.T) {
	all := Default().Behaviors()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Category == cur.Category {
			assert.Less(t, prev.Token, cur.Token)
		} else {
			assert.Less(t, prev.Category, cur.Category)
		}
	}

	b, ok := Default().Behavior("auto-advance")
	require.True(t, ok)
	assert.Equal(t, EvidenceDuration, b.Requires)
}
