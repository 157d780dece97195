package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

var inManifest = Context{ParentKind: ir.KindManifest, Slot: ir.SlotItems}

func TestValidateItemClean(t *testing.T) {
	v := New(nil)
	assert.Empty(t, v.ValidateItem(canvas("a"), inManifest))
	assert.Empty(t, v.ValidateItem(painting("an", id("a")), Context{ParentKind: ir.KindAnnotationPage}))

	c := canvas("av")
	c.Width, c.Height, c.Duration = 0, 0, 12.5
	assert.Empty(t, v.ValidateItem(c, inManifest), "duration alone is enough")
}

func TestValidateItemIdentity(t *testing.T) {
	v := New(nil)

	c := canvas("a")
	c.ID = id("a") + "#xywh=0,0,10,10"
	issues := v.ValidateItem(c, inManifest)
	require.Len(t, issues, 1)
	assert.Equal(t, CategoryIdentity, issues[0].Category)
	assert.True(t, issues[0].Fixable)
	assert.Equal(t, c.ID, issues[0].EntityID)

	m := &ir.Manifest{Base: ir.Base{ID: "urn:uuid:1234", Label: label("m")}}
	issues = v.ValidateItem(m, Context{})
	require.Len(t, issues, 1)
	assert.Equal(t, LevelError, issues[0].Level)
	assert.Equal(t, "id", issues[0].Field)
	assert.False(t, issues[0].Fixable)
}

func TestValidateItemMissingLabelIsWarning(t *testing.T) {
	c := canvas("a")
	c.Label = nil
	issues := New(nil).ValidateItem(c, inManifest)
	require.Len(t, issues, 1)
	assert.Equal(t, LevelWarning, issues[0].Level)
	assert.Equal(t, "label", issues[0].Field)
	assert.True(t, issues[0].Fixable)
	assert.False(t, HasErrors(issues))
}

func TestValidateItemShape(t *testing.T) {
	v := New(nil)
	tests := []struct {
		name   string
		mutate func(c *ir.Canvas)
		field  string
	}{
		{"bad language", func(c *ir.Canvas) { c.Label = ir.LanguageMap{"english!": {"x"}} }, "label"},
		{"empty language values", func(c *ir.Canvas) { c.Summary = ir.LanguageMap{"en": {}} }, "summary.en"},
		{"metadata without value", func(c *ir.Canvas) {
			c.Metadata = []ir.MetadataEntry{{Label: label("Date")}}
		}, "metadata[0].value"},
		{"relative rights", func(c *ir.Canvas) { c.Rights = "by-nc" }, "rights"},
		{"bad navDate", func(c *ir.Canvas) { c.NavDate = "2024-13-01" }, "navDate"},
		{"half dimensions", func(c *ir.Canvas) { c.Height = 0 }, "width"},
		{"no extent", func(c *ir.Canvas) { c.Width, c.Height = 0, 0 }, "width"},
		{"negative duration", func(c *ir.Canvas) { c.Duration = -1 }, "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := canvas("a")
			tt.mutate(c)
			issues := Errors(v.ValidateItem(c, inManifest))
			require.NotEmpty(t, issues)
			assert.Equal(t, tt.field, issues[0].Field)
			assert.Equal(t, ir.ErrInvalidShape, issues[0].Code)
		})
	}
}

func TestValidateItemAcceptsWellFormedOptionalFields(t *testing.T) {
	c := canvas("a")
	c.Label = ir.LanguageMap{"en-GB": {"Folio 1"}, "none": {"f. 1"}}
	c.Rights = "http://creativecommons.org/licenses/by/4.0/"
	c.NavDate = "1856-01-01T00:00:00Z"
	c.Metadata = []ir.MetadataEntry{{Label: label("Date"), Value: ir.LanguageMap{"none": {"1856"}}}}
	assert.Empty(t, New(nil).ValidateItem(c, inManifest))
}

func TestValidateItemAnnotation(t *testing.T) {
	v := New(nil)
	ctx := Context{ParentKind: ir.KindAnnotationPage}

	a := comment("c1", id("a"), "")
	a.Motivation = "shouting"
	issues := v.ValidateItem(a, ctx)
	assert.Equal(t, []string{"motivation", "body.value"}, fields(issues))

	a = comment("c2", id("a"), "ok")
	a.Target.Selector = &ir.Selector{Type: ir.SelectorFragment, Value: "xywh=1,2,-3,4"}
	assert.Equal(t, []string{"target.selector"}, fields(v.ValidateItem(a, ctx)))

	a.Target.Selector = &ir.Selector{Type: ir.SelectorFragment, Value: "xywh=pixel:1,2,3,4"}
	assert.Empty(t, v.ValidateItem(a, ctx))

	a.Target.Selector = &ir.Selector{Type: ir.SelectorSVG, Value: "<path d='M0 0'/>"}
	assert.Equal(t, []string{"target.selector"}, fields(v.ValidateItem(a, ctx)))

	a.Target.Selector = &ir.Selector{Type: ir.SelectorSVG, Value: "<svg xmlns='http://www.w3.org/2000/svg'><path d='M0 0'/></svg>"}
	assert.Empty(t, v.ValidateItem(a, ctx))

	a = comment("c3", id("a")+"#xywh=1,2", "ok")
	assert.Equal(t, []string{"target.source"}, fields(v.ValidateItem(a, ctx)))

	img := painting("p1", id("a"))
	img.Body.ID = "a.jpg"
	assert.Equal(t, []string{"body.id"}, fields(v.ValidateItem(img, ctx)))
}

func TestValidateItemHierarchy(t *testing.T) {
	v := New(nil)
	issues := v.ValidateItem(canvas("a"), Context{ParentKind: ir.KindCollection, Slot: ir.SlotItems})
	require.Len(t, issues, 1)
	assert.Equal(t, ir.ErrInvalidChildType, issues[0].Code)
	assert.Equal(t, CategoryHierarchy, issues[0].Category)
	assert.Contains(t, issues[0].Message, "Collection, Manifest")

	m := &ir.Manifest{Base: ir.Base{ID: id("m"), Label: label("m")}}
	assert.Empty(t, v.ValidateItem(m, Context{ParentKind: ir.KindCollection}), "slot defaults to items")

	r := &ir.Range{Base: ir.Base{ID: id("r"), Label: label("r")}}
	assert.Empty(t, v.ValidateItem(r, Context{ParentKind: ir.KindManifest, Slot: ir.SlotStructures}))
	assert.Equal(t, []ir.ErrorCode{ir.ErrInvalidChildType},
		codes(v.ValidateItem(r, Context{ParentKind: ir.KindManifest, Slot: ir.SlotItems})))
}

func TestValidateItemBehaviorsUseContext(t *testing.T) {
	v := New(nil)
	c := canvas("a")
	c.Behavior = []string{"facing-pages"}

	paged := Context{ParentKind: ir.KindManifest, Slot: ir.SlotItems, ParentBehaviors: []string{"paged"}}
	assert.Empty(t, v.ValidateItem(c, paged))

	issues := v.ValidateItem(c, inManifest)
	require.Len(t, issues, 1)
	assert.Equal(t, LevelWarning, issues[0].Level)

	c.Behavior = []string{"facing-pages", "non-paged"}
	assert.Equal(t, []ir.ErrorCode{ir.ErrConflictingBehavior}, codes(Errors(v.ValidateItem(c, paged))))

	c.Behavior = []string{"auto-advance"}
	c.Duration = 30
	assert.Empty(t, v.ValidateItem(c, inManifest), "a time-based canvas evidences its own duration")
}

func TestIssueError(t *testing.T) {
	issue := Issue{Code: ir.ErrInvalidShape, Field: "label", Message: "bad"}
	assert.Equal(t, "InvalidShape: label: bad", issue.Error())
	issue.Field = ""
	assert.Equal(t, "InvalidShape: bad", issue.Error())
}
