package vault

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

const base = "https://example.org/iiif/"

func id(name string) string { return base + name }

func label(s string) ir.LanguageMap { return ir.LanguageMap{"en": {s}} }

func canvas(name string) *ir.Canvas {
	return &ir.Canvas{Base: ir.Base{ID: id(name), Label: label(name)}, Width: 1000, Height: 1500}
}

// archive builds:
//
//	root (Collection)
//	  m1 (Manifest): items [a, b], structures [r1 -> (a, b, r2 -> (b))]
//	    a: items [pa -> (an1)]
//	  sub (Collection): items [m2 -> (c)]
func archive() *ir.Node {
	an1 := &ir.Annotation{
		Base:       ir.Base{ID: id("an1")},
		Motivation: ir.MotivationPainting,
		Body:       ir.Body{Type: ir.BodyImage, ID: "https://example.org/img/a.jpg", Format: "image/jpeg"},
		Target:     ir.Target{Source: id("a")},
	}
	pa := ir.NewNode(&ir.AnnotationPage{Base: ir.Base{ID: id("pa")}}, ir.NewNode(an1))
	a := ir.NewNode(canvas("a"), pa)
	b := ir.NewNode(canvas("b"))

	r2 := ir.NewNode(&ir.Range{Base: ir.Base{ID: id("r2"), Label: label("r2")}}, ir.RefNode(ir.KindCanvas, id("b")))
	r1 := ir.NewNode(&ir.Range{Base: ir.Base{ID: id("r1"), Label: label("r1")}},
		ir.RefNode(ir.KindCanvas, id("a")), ir.RefNode(ir.KindCanvas, id("b")), r2)

	m1 := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: id("m1"), Label: label("m1"), Behavior: []string{"paged"}}}, a, b)
	m1.Structures = []*ir.Node{r1}

	m2 := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: id("m2"), Label: label("m2")}}, ir.NewNode(canvas("c")))
	sub := ir.NewNode(&ir.Collection{Base: ir.Base{ID: id("sub"), Label: label("sub")}}, m2)

	return ir.NewNode(&ir.Collection{Base: ir.Base{ID: id("root"), Label: label("root")}}, m1, sub)
}

func normalized(t *testing.T) *State {
	t.Helper()
	s := Normalize(archive())
	require.Empty(t, s.Warnings())
	require.Empty(t, s.CheckIntegrity())
	return s
}

func commit(t *testing.T, s *State, fn func(tx *Txn) error) *State {
	t.Helper()
	tx := s.Begin()
	require.NoError(t, fn(tx))
	next := tx.Commit()
	require.Empty(t, next.CheckIntegrity())
	return next
}
