package harness

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/testutil"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

func archiveResult(t *testing.T) *Result {
	t.Helper()
	data, err := os.ReadFile(archiveDoc)
	require.NoError(t, err)
	root, err := ir.DecodeDocument(data)
	require.NoError(t, err)
	r := NewResult()
	r.Final = vault.Normalize(root)
	return r
}

func TestAssertChildren(t *testing.T) {
	r := archiveResult(t)
	ok := Assertion{Type: AssertChildren, ID: psalter, Children: []string{
		"https://example.org/iiif/p1", "https://example.org/iiif/p2", "https://example.org/iiif/p3",
	}}
	assert.NoError(t, assertChildren(r, ok))

	structures := Assertion{Type: AssertChildren, ID: psalter, Slot: "structures", Children: []string{psalter + "/toc"}}
	assert.NoError(t, assertChildren(r, structures))

	wrong := Assertion{Type: AssertChildren, ID: psalter, Children: []string{"https://example.org/iiif/p1"}}
	err := assertChildren(r, wrong)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertChildren, ae.Type)

	missing := Assertion{Type: AssertChildren, ID: "https://example.org/iiif/nope"}
	require.ErrorAs(t, assertChildren(r, missing), &ae)
	assert.Equal(t, "not found", ae.Actual)

	badSlot := Assertion{Type: AssertChildren, ID: psalter, Slot: "thumbnails"}
	assert.Error(t, assertChildren(r, badSlot))
}

func TestAssertEntity_SubsetMatch(t *testing.T) {
	r := archiveResult(t)

	tests := []struct {
		name   string
		expect map[string]any
		ok     bool
	}{
		{"label", map[string]any{"label": map[string]any{"en": []any{"Psalter"}}}, true},
		{"type and id", map[string]any{"type": "Manifest", "id": psalter}, true},
		{"wrong label", map[string]any{"label": map[string]any{"en": []any{"Hours"}}}, false},
		{"unset field", map[string]any{"rights": "http://example.org/rights"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertEntity(r, Assertion{Type: AssertEntity, ID: psalter, Expect: tt.expect})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	t.Run("canvas numbers", func(t *testing.T) {
		err := assertEntity(r, Assertion{Type: AssertEntity, ID: "https://example.org/iiif/p1", Expect: map[string]any{
			"width":  1000,
			"height": 1500,
		}})
		assert.NoError(t, err)
	})
}

func TestAssertTrashAndAbsent(t *testing.T) {
	r := archiveResult(t)
	p2 := "https://example.org/iiif/p2"

	require.Error(t, assertInTrash(r, Assertion{ID: p2}))
	require.Error(t, assertAbsent(r, Assertion{ID: p2}))

	res := engine.NewDispatcher(nil, testutil.NewFixedClock(testutil.Epoch)).Dispatch(r.Final, engine.MoveToTrash{ID: p2})
	require.True(t, res.Success)
	r.Final = res.State

	assert.NoError(t, assertInTrash(r, Assertion{ID: p2}))
	assert.NoError(t, assertInTrash(r, Assertion{ID: p2 + "/image"}))
	err := assertAbsent(r, Assertion{ID: p2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "in trash", ae.Actual)

	assert.NoError(t, assertAbsent(r, Assertion{ID: "https://example.org/iiif/nope"}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := []TraceEvent{
		{Step: 0, Op: "UpdateLabel", Case: CaseSuccess},
		{Step: 1, Op: "MoveToTrash", Case: "EntityNotFound"},
		{Step: 2, Op: DoUndo, Case: CaseSuccess},
		{Step: 3, Op: "MoveToTrash", Case: CaseSuccess},
	}

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"UpdateLabel", "MoveToTrash"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"UpdateLabel", DoUndo, "MoveToTrash"}}))
	// The rejected MoveToTrash does not count, so it cannot come before undo.
	assert.Error(t, assertTraceOrder(trace, Assertion{Actions: []string{"MoveToTrash", DoUndo}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Actions: []string{"RemoveEntity"}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := []TraceEvent{
		{Op: "ReorderChildren", Case: CaseSuccess},
		{Op: "ReorderChildren", Case: "InvalidShape"},
		{Op: DoRedo, Case: CaseEmpty},
	}
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "ReorderChildren", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: DoRedo, Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: "ReorderChildren", Count: 2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 occurrences", ae.Actual)
}

func TestAssertProvenanceCount(t *testing.T) {
	r := archiveResult(t)
	clk := testutil.NewFixedClock(testutil.Epoch)
	eng := engine.New(r.Final, engine.WithClock(clk), engine.WithIDGenerator(testutil.NewSequentialIDs("p")))
	require.True(t, eng.Dispatch(engine.UpdateLabel{ID: psalter, Label: ir.LanguageMap{"en": {"New"}}}).Success)
	require.True(t, eng.Dispatch(engine.UpdateRights{ID: psalter, Rights: "http://example.org/rights"}).Success)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()
	_, err = st.Checkpoint(ctx, eng.State(), eng.Provenance(), clk)
	require.NoError(t, err)

	assert.NoError(t, assertProvenanceCount(ctx, st, Assertion{ID: psalter, Count: 2}))
	assert.NoError(t, assertProvenanceCount(ctx, st, Assertion{ID: psalter, Property: "rights", Count: 1}))
	assert.Error(t, assertProvenanceCount(ctx, st, Assertion{ID: psalter, Property: "summary", Count: 1}))
}

func TestAssertValid(t *testing.T) {
	r := archiveResult(t)
	eng := engine.New(r.Final)
	assert.NoError(t, assertValid(eng))

	broken := r.Final.Begin()
	e, _ := r.Final.Entity(psalter)
	m := ir.Clone(e)
	m.Common().Behavior = []string{"paged", "continuous"}
	require.NoError(t, broken.Put(m))
	eng.Load(broken.Commit())

	err := assertValid(eng)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Actual, "ConflictingBehavior")
}

func TestEvaluateAssertions_RequiresContext(t *testing.T) {
	r := archiveResult(t)
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertProvenanceCount, ID: psalter},
		{Type: AssertValid},
		{Type: "bogus"},
	}, nil)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "requires a store")
	assert.Contains(t, errs[1], "requires an engine")
	assert.Contains(t, errs[2], `unknown assertion type "bogus"`)
}
