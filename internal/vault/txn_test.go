package vault

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

func sameMap(a, b any) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func TestPutSharesUntouchedTables(t *testing.T) {
	s := normalized(t)
	before, err := Fingerprint(s)
	require.NoError(t, err)

	e, _ := s.Entity(id("a"))
	edited := ir.Clone(e)
	edited.Common().Label = label("folio a")

	next := commit(t, s, func(tx *Txn) error { return tx.Put(edited) })

	got, _ := next.Entity(id("a"))
	assert.Equal(t, "folio a", ir.LabelText(got))
	old, _ := s.Entity(id("a"))
	assert.Equal(t, "a", ir.LabelText(old), "base state is unchanged")

	after, err := Fingerprint(s)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	assert.True(t, sameMap(s.entities[ir.KindManifest], next.entities[ir.KindManifest]), "untouched kind table shared")
	assert.False(t, sameMap(s.entities[ir.KindCanvas], next.entities[ir.KindCanvas]))
	assert.True(t, sameMap(s.children, next.children), "child lists untouched")

	bOld, _ := s.Entity(id("b"))
	bNew, _ := next.Entity(id("b"))
	assert.Same(t, bOld, bNew, "untouched entity reused by reference")
}

func TestPutErrors(t *testing.T) {
	s := normalized(t)
	tx := s.Begin()

	err := tx.Put(canvas("missing"))
	assert.Equal(t, ir.ErrEntityNotFound, CodeOf(err))

	err = tx.Put(&ir.Range{Base: ir.Base{ID: id("a")}})
	assert.Equal(t, ir.ErrInvalidShape, CodeOf(err))
}

func TestCommitWithoutWritesReturnsBase(t *testing.T) {
	s := normalized(t)
	assert.Same(t, s, s.Begin().Commit())
}

func TestGraftAppendsAndIndexes(t *testing.T) {
	s := normalized(t)
	next := commit(t, s, func(tx *Txn) error {
		w, err := tx.Graft(id("m1"), ir.SlotItems, -1, ir.NewNode(canvas("new")))
		assert.Empty(t, w)
		return err
	})

	assert.Equal(t, []string{id("a"), id("b"), id("new")}, next.Children(id("m1")))
	parent, _ := next.Parent(id("new"))
	assert.Equal(t, id("m1"), parent)
	assert.False(t, s.Has(id("new")))
}

func TestGraftAtIndex(t *testing.T) {
	s := normalized(t)
	next := commit(t, s, func(tx *Txn) error {
		_, err := tx.Graft(id("m1"), ir.SlotItems, 0, ir.NewNode(canvas("first")))
		return err
	})
	assert.Equal(t, []string{id("first"), id("a"), id("b")}, next.Children(id("m1")))
}

func TestGraftDuplicateID(t *testing.T) {
	s := normalized(t)
	_, err := s.Begin().Graft(id("m1"), ir.SlotItems, -1, ir.NewNode(canvas("c")))
	require.Error(t, err)
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err))

	_, err = s.Begin().Graft(id("nowhere"), ir.SlotItems, -1, ir.NewNode(canvas("x")))
	assert.Equal(t, ir.ErrEntityNotFound, CodeOf(err))
}

func TestGraftDropsDanglingReferences(t *testing.T) {
	s := normalized(t)
	r := ir.NewNode(&ir.Range{Base: ir.Base{ID: id("r3")}},
		ir.RefNode(ir.KindCanvas, id("a")), ir.RefNode(ir.KindCanvas, id("gone")))

	var warnings []Warning
	next := commit(t, s, func(tx *Txn) error {
		var err error
		warnings, err = tx.Graft(id("m1"), ir.SlotStructures, -1, r)
		return err
	})
	require.Len(t, warnings, 1)
	assert.Equal(t, id("gone"), warnings[0].EntityID)
	assert.Equal(t, []string{id("a")}, next.Children(id("r3")))
	assert.Equal(t, []string{id("r1"), id("r3")}, next.ReferencedBy(id("a")))
}

func TestDetachStripsReferencesAndRestores(t *testing.T) {
	s := normalized(t)

	var detached Detached
	trashed := commit(t, s, func(tx *Txn) error {
		var err error
		detached, err = tx.Detach(id("b"))
		return err
	})

	assert.False(t, trashed.Has(id("b")))
	assert.Equal(t, []string{id("a")}, trashed.Children(id("m1")))
	assert.Equal(t, []string{id("a"), id("r2")}, trashed.Children(id("r1")))
	assert.Empty(t, trashed.Children(id("r2")))
	assert.Equal(t, ParentRef{ParentID: id("m1"), Slot: ir.SlotItems}, detached.Parent)
	assert.Equal(t, 1, detached.Index)
	assert.Equal(t, []RefLink{
		{ParentID: id("r1"), Slot: ir.SlotItems, Index: 1, ChildID: id("b")},
		{ParentID: id("r2"), Slot: ir.SlotItems, Index: 0, ChildID: id("b")},
	}, detached.StrippedRefs)

	restored := commit(t, trashed, func(tx *Txn) error {
		if _, err := tx.Graft(detached.Parent.ParentID, detached.Parent.Slot, detached.Index, detached.Subtree); err != nil {
			return err
		}
		assert.Empty(t, tx.RestoreRefs(detached.StrippedRefs))
		return nil
	})

	assert.Equal(t, Denormalize(s), Denormalize(restored))
}

func TestDetachSubtree(t *testing.T) {
	s := normalized(t)
	var detached Detached
	next := commit(t, s, func(tx *Txn) error {
		var err error
		detached, err = tx.Detach(id("m1"))
		return err
	})

	for _, gone := range []string{"m1", "a", "pa", "an1", "b", "r1", "r2"} {
		assert.False(t, next.Has(id(gone)), gone)
	}
	assert.Empty(t, detached.StrippedRefs, "references inside the subtree are kept in it")
	assert.Equal(t, archive().Items[0], detached.Subtree)
	assert.Equal(t, 4, next.Len())
}

func TestDetachRootFails(t *testing.T) {
	s := normalized(t)
	_, err := s.Begin().Detach(id("root"))
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err))

	_, err = s.Begin().Detach(id("missing"))
	assert.Equal(t, ir.ErrEntityNotFound, CodeOf(err))
}

func TestReorder(t *testing.T) {
	s := normalized(t)
	next := commit(t, s, func(tx *Txn) error {
		return tx.Reorder(id("m1"), ir.SlotItems, []string{id("b"), id("a")})
	})
	assert.Equal(t, []string{id("b"), id("a")}, next.Children(id("m1")))
	assert.Equal(t, []string{id("a"), id("b")}, s.Children(id("m1")))

	for _, order := range [][]string{
		{id("a")},
		{id("a"), id("a")},
		{id("a"), id("b"), id("c")},
		{id("a"), id("c")},
	} {
		err := next.Begin().Reorder(id("m1"), ir.SlotItems, order)
		assert.Equal(t, ir.ErrInvalidShape, CodeOf(err), "%v", order)
	}
}

func TestMove(t *testing.T) {
	s := normalized(t)
	next := commit(t, s, func(tx *Txn) error {
		return tx.Move(id("b"), id("m2"), ir.SlotItems, 0)
	})
	assert.Equal(t, []string{id("b"), id("c")}, next.Children(id("m2")))
	assert.Equal(t, []string{id("a")}, next.Children(id("m1")))
	assert.Equal(t, []string{id("r1"), id("r2")}, next.ReferencedBy(id("b")), "references survive a move")

	err := s.Begin().Move(id("m1"), id("a"), ir.SlotItems, -1)
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err), "cannot move into own subtree")

	err = s.Begin().Move(id("root"), id("sub"), ir.SlotItems, -1)
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err))
}

func TestLinkUnlink(t *testing.T) {
	s := normalized(t)
	next := commit(t, s, func(tx *Txn) error {
		return tx.Link(id("r2"), ir.SlotItems, 0, id("a"))
	})
	assert.Equal(t, []string{id("a"), id("b")}, next.Children(id("r2")))
	assert.Equal(t, []string{id("r1"), id("r2")}, next.ReferencedBy(id("a")))

	err := next.Begin().Link(id("r2"), ir.SlotItems, -1, id("a"))
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err), "already listed")

	back := commit(t, next, func(tx *Txn) error {
		return tx.Unlink(id("r2"), ir.SlotItems, id("a"))
	})
	assert.Equal(t, []string{id("b")}, back.Children(id("r2")))

	err = s.Begin().Unlink(id("m1"), ir.SlotItems, id("a"))
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err), "owned children cannot be unlinked")

	err = s.Begin().Unlink(id("r2"), ir.SlotItems, id("a"))
	assert.Equal(t, ir.ErrEntityNotFound, CodeOf(err))
}

func TestLinkRejectsCollectionCycle(t *testing.T) {
	s := normalized(t)
	err := s.Begin().Link(id("sub"), ir.SlotItems, -1, id("root"))
	require.Error(t, err)
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err))
	assert.Contains(t, err.Error(), "reference cycle")

	next := commit(t, s, func(tx *Txn) error {
		_, err := tx.Graft(id("root"), ir.SlotItems, -1, ir.NewNode(&ir.Collection{Base: ir.Base{ID: id("other")}}))
		if err != nil {
			return err
		}
		return tx.Link(id("sub"), ir.SlotItems, -1, id("other"))
	})
	assert.Equal(t, []string{id("sub")}, next.ReferencedBy(id("other")))

	err = next.Begin().Move(id("sub"), id("other"), ir.SlotItems, -1)
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err), "owning a collection that references you is a cycle")
}

func TestTrashTable(t *testing.T) {
	s := normalized(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := commit(t, s, func(tx *Txn) error {
		tx.PutTrash(TrashedEntity{ID: id("x"), Kind: ir.KindCanvas, Subtree: ir.NewNode(canvas("x")), TrashedAt: at.Add(time.Hour)})
		tx.PutTrash(TrashedEntity{ID: id("y"), Kind: ir.KindCanvas, Subtree: ir.NewNode(canvas("y")), TrashedAt: at})
		return nil
	})
	entries := next.TrashEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, id("y"), entries[0].ID, "oldest first")
	assert.True(t, next.IsTrashed(id("x")))
	assert.False(t, s.IsTrashed(id("x")))

	tx := next.Begin()
	assert.True(t, tx.DeleteTrash(id("x")))
	assert.False(t, tx.DeleteTrash(id("x")))
	assert.Equal(t, 1, tx.Commit().TrashLen())
	assert.Equal(t, 2, next.TrashLen())
}

func TestSetRoot(t *testing.T) {
	tx := Empty().Begin()
	require.NoError(t, tx.SetRoot(&ir.Manifest{Base: ir.Base{ID: id("m")}}))
	s := tx.Commit()
	assert.Equal(t, id("m"), s.RootID())
	assert.Empty(t, s.CheckIntegrity())

	err := s.Begin().SetRoot(&ir.Manifest{Base: ir.Base{ID: id("m2")}})
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err))

	err = Empty().Begin().SetRoot(canvas("c"))
	assert.Equal(t, ir.ErrInvalidChildType, CodeOf(err))
}

func TestRekeyReferencedCanvas(t *testing.T) {
	s := normalized(t)
	renamed := canvas("b2")
	next := commit(t, s, func(tx *Txn) error { return tx.Rekey(id("b"), renamed) })

	assert.False(t, next.Has(id("b")))
	assert.Equal(t, []string{id("a"), id("b2")}, next.Children(id("m1")))
	assert.Equal(t, []string{id("a"), id("b2"), id("r2")}, next.Children(id("r1")))
	assert.Equal(t, []string{id("b2")}, next.Children(id("r2")))
	assert.Equal(t, []string{id("r1"), id("r2")}, next.ReferencedBy(id("b2")))
	parent, ok := next.Parent(id("b2"))
	require.True(t, ok)
	assert.Equal(t, id("m1"), parent)

	assert.True(t, s.Has(id("b")), "base untouched")
}

func TestRekeyCanvasRetargetsAnnotations(t *testing.T) {
	s := normalized(t)
	next := commit(t, s, func(tx *Txn) error { return tx.Rekey(id("a"), canvas("a2")) })

	e, ok := next.Entity(id("an1"))
	require.True(t, ok)
	assert.Equal(t, id("a2"), e.(*ir.Annotation).Target.Source)
	assert.Equal(t, []string{id("pa")}, next.Children(id("a2")))

	before, _ := s.Entity(id("an1"))
	assert.Equal(t, id("a"), before.(*ir.Annotation).Target.Source, "base untouched")
}

func TestRekeyContainer(t *testing.T) {
	s := normalized(t)
	next := commit(t, s, func(tx *Txn) error {
		if err := tx.Rekey(id("r1"), &ir.Range{Base: ir.Base{ID: id("r1x")}}); err != nil {
			return err
		}
		return tx.Rekey(id("root"), &ir.Collection{Base: ir.Base{ID: id("top")}})
	})

	assert.Equal(t, id("top"), next.RootID())
	assert.Equal(t, []string{id("r1x")}, next.ChildrenIn(id("m1"), ir.SlotStructures))
	assert.Equal(t, []string{id("r1x")}, next.ReferencedBy(id("a")))
	parent, _ := next.Parent(id("r2"))
	assert.Equal(t, id("r1x"), parent)
	parent, _ = next.Parent(id("m1"))
	assert.Equal(t, id("top"), parent)
}

func TestRekeyErrors(t *testing.T) {
	s := normalized(t)
	err := s.Begin().Rekey(id("ghost"), canvas("x"))
	assert.Equal(t, ir.ErrEntityNotFound, CodeOf(err))

	err = s.Begin().Rekey(id("b"), canvas("a"))
	assert.Equal(t, ir.ErrStructuralIntegrity, CodeOf(err))

	err = s.Begin().Rekey(id("b"), &ir.Range{Base: ir.Base{ID: id("b3")}})
	assert.Equal(t, ir.ErrInvalidShape, CodeOf(err))
}
