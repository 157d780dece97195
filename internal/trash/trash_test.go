package trash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/testutil"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

const base = "https://example.org/iiif/"

func id(name string) string { return base + name }

func canvas(name string) *ir.Canvas {
	return &ir.Canvas{Base: ir.Base{ID: id(name), Label: ir.LanguageMap{"en": {name}}}, Width: 800, Height: 600}
}

// archive: root -> m1 [a, b] (structures r -> a, b), m2 [c]
func archive(t *testing.T) *vault.State {
	t.Helper()
	r := ir.NewNode(&ir.Range{Base: ir.Base{ID: id("r")}}, ir.RefNode(ir.KindCanvas, id("a")), ir.RefNode(ir.KindCanvas, id("b")))
	m1 := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: id("m1")}}, ir.NewNode(canvas("a")), ir.NewNode(canvas("b")))
	m1.Structures = []*ir.Node{r}
	m2 := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: id("m2")}}, ir.NewNode(canvas("c")))
	s := vault.Normalize(ir.NewNode(&ir.Collection{Base: ir.Base{ID: id("root")}}, m1, m2))
	require.Empty(t, s.Warnings())
	return s
}

func trashed(t *testing.T, s *vault.State, name string, at time.Time) *vault.State {
	t.Helper()
	res, err := MoveToTrash(s, id(name), at)
	require.NoError(t, err)
	require.Empty(t, res.State.CheckIntegrity())
	return res.State
}

func TestMoveToTrashAndRestore(t *testing.T) {
	s := archive(t)
	before, err := vault.Fingerprint(s)
	require.NoError(t, err)

	res, err := MoveToTrash(s, id("b"), testutil.Epoch)
	require.NoError(t, err)
	next := res.State
	assert.False(t, next.Has(id("b")))
	assert.Equal(t, []string{id("a")}, next.Children(id("m1")))
	assert.Equal(t, []string{id("a")}, next.Children(id("r")), "reference stripped")
	assert.Equal(t, id("m1"), res.Entry.OriginalParentID)
	assert.Equal(t, 1, res.Entry.OriginalIndex)
	assert.Equal(t, ir.KindCanvas, res.Entry.Kind)
	assert.Equal(t, testutil.Epoch, res.Entry.TrashedAt)
	assert.True(t, next.IsTrashed(id("b")))
	assert.True(t, s.Has(id("b")), "input untouched")

	back, err := Restore(next, id("b"), RestoreOptions{})
	require.NoError(t, err)
	assert.Empty(t, back.Warnings)
	assert.Equal(t, []string{id("a"), id("b")}, back.State.Children(id("m1")))
	assert.Equal(t, []string{id("a"), id("b")}, back.State.Children(id("r")))
	assert.Equal(t, 0, back.State.TrashLen())
	restored, _ := back.State.Entity(id("b"))
	assert.Equal(t, canvas("b"), restored)

	after, err := vault.Fingerprint(back.State)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMoveToTrashNotFound(t *testing.T) {
	s := archive(t)
	res, err := MoveToTrash(s, id("ghost"), testutil.Epoch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, ir.ErrEntityNotFound, vault.CodeOf(err))
	assert.Same(t, s, res.State)
}

func TestMoveRootToTrashFails(t *testing.T) {
	s := archive(t)
	_, err := MoveToTrash(s, id("root"), testutil.Epoch)
	assert.Equal(t, ir.ErrStructuralIntegrity, vault.CodeOf(err))
}

func TestMoveSubtreeToTrash(t *testing.T) {
	s := archive(t)
	next := trashed(t, s, "m1", testutil.Epoch)
	assert.Equal(t, 3, next.Len())
	assert.True(t, next.IsTrashed(id("a")), "owned descendants travel with the subtree")

	back, err := Restore(next, id("m1"), RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, vault.Denormalize(s), vault.Denormalize(back.State))
}

func TestRestoreIndexIsClamped(t *testing.T) {
	s := archive(t)
	s = trashed(t, s, "b", testutil.Epoch)
	s = trashed(t, s, "a", testutil.Epoch.Add(time.Minute))

	res, err := Restore(s, id("b"), RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{id("b")}, res.State.Children(id("m1")))

	res, err = Restore(res.State, id("a"), RestoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{id("a"), id("b")}, res.State.Children(id("m1")))
	assert.Equal(t, []string{id("a"), id("b")}, res.State.Children(id("r")))
}

func TestRestoreToExplicitParent(t *testing.T) {
	s := trashed(t, archive(t), "b", testutil.Epoch)
	res, err := Restore(s, id("b"), RestoreOptions{ParentID: id("m2")})
	require.NoError(t, err)
	assert.Equal(t, []string{id("c"), id("b")}, res.State.Children(id("m2")))
	parent, _ := res.State.Parent(id("b"))
	assert.Equal(t, id("m2"), parent)
	assert.Empty(t, res.State.CheckIntegrity())
}

func TestRestoreErrors(t *testing.T) {
	s := trashed(t, archive(t), "b", testutil.Epoch)

	res, err := Restore(s, id("ghost"), RestoreOptions{})
	assert.Equal(t, ir.ErrEntityNotFound, vault.CodeOf(err))
	assert.Contains(t, err.Error(), "not found in trash")
	assert.Same(t, s, res.State)

	_, err = Restore(s, id("b"), RestoreOptions{ParentID: id("root")})
	assert.Equal(t, ir.ErrInvalidChildType, vault.CodeOf(err))

	_, err = Restore(s, id("b"), RestoreOptions{ParentID: id("nowhere")})
	assert.Equal(t, ir.ErrEntityNotFound, vault.CodeOf(err))

	gone := trashed(t, s, "m1", testutil.Epoch)
	_, err = Restore(gone, id("b"), RestoreOptions{})
	assert.Equal(t, ir.ErrEntityNotFound, vault.CodeOf(err), "original parent is itself in the trash")
}

func TestRestoreSkipsVanishedReferrer(t *testing.T) {
	s := trashed(t, archive(t), "b", testutil.Epoch)
	s = trashed(t, s, "r", testutil.Epoch)
	res, err := Restore(s, id("b"), RestoreOptions{})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0].Message, id("r"))
	assert.Empty(t, res.State.CheckIntegrity())
}

func TestPurge(t *testing.T) {
	s := trashed(t, archive(t), "b", testutil.Epoch)
	next, err := Purge(s, id("b"))
	require.NoError(t, err)
	assert.Equal(t, 0, next.TrashLen())

	_, err = Purge(next, id("b"))
	assert.Equal(t, ir.ErrEntityNotFound, vault.CodeOf(err))
}

func TestEmptyTrash(t *testing.T) {
	s := archive(t)
	same, purged := EmptyTrash(s)
	assert.Same(t, s, same, "empty trash is a no-op")
	assert.Empty(t, purged)

	s = trashed(t, s, "c", testutil.Epoch.Add(time.Hour))
	s = trashed(t, s, "a", testutil.Epoch)
	next, purged := EmptyTrash(s)
	assert.Equal(t, []string{id("a"), id("c")}, purged)
	assert.Equal(t, 0, next.TrashLen())
	assert.Equal(t, 2, s.TrashLen())
}

func TestCleanup(t *testing.T) {
	clock := testutil.NewFixedClock(time.Time{})
	s := trashed(t, archive(t), "a", clock.Now())
	clock.AdvanceDays(20)
	s = trashed(t, s, "c", clock.Now())
	clock.AdvanceDays(15)

	next, purged := Cleanup(s, 30, clock.Now())
	assert.Equal(t, []string{id("a")}, purged)
	_, kept := next.TrashEntry(id("c"))
	assert.True(t, kept)

	_, purged = Cleanup(s, 0, clock.Now())
	assert.Equal(t, []string{id("a")}, purged, "zero selects the default retention")

	next, purged = Cleanup(s, 10, clock.Now())
	assert.Equal(t, []string{id("a"), id("c")}, purged)
	assert.Equal(t, 0, next.TrashLen())
}

func TestGetStats(t *testing.T) {
	s := archive(t)
	st := GetStats(s, testutil.Epoch)
	assert.Equal(t, 0, st.ItemCount)
	assert.Nil(t, st.Oldest)
	assert.Empty(t, st.ItemsByType)

	s = trashed(t, s, "a", testutil.Epoch)
	later := testutil.Epoch.Add(25 * day)
	s = trashed(t, s, "r", later)

	st = GetStats(s, testutil.Epoch.Add(26*day))
	assert.Equal(t, 2, st.ItemCount)
	require.NotNil(t, st.Oldest)
	assert.Equal(t, testutil.Epoch, *st.Oldest)
	assert.Equal(t, later, *st.Newest)
	assert.Equal(t, map[ir.Kind]int{ir.KindCanvas: 1, ir.KindRange: 1}, st.ItemsByType)
	assert.Equal(t, 1, st.ExpiringSoon)
}
