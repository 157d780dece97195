package engine

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/testutil"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

const base = "https://example.org/iiif/"

func id(name string) string { return base + name }

func label(s string) ir.LanguageMap { return ir.LanguageMap{"en": {s}} }

// canvasNode builds a labelled canvas painted by one image.
func canvasNode(name string) *ir.Node {
	c := &ir.Canvas{Base: ir.Base{ID: id(name), Label: label(name)}, Width: 1000, Height: 1500}
	anno := &ir.Annotation{
		Base:       ir.Base{ID: id(name + "/anno"), Label: label(name + " image")},
		Motivation: ir.MotivationPainting,
		Body:       ir.Body{Type: ir.BodyImage, ID: "https://example.org/img/" + name + ".jpg", Format: "image/jpeg"},
		Target:     ir.Target{Source: id(name)},
	}
	page := ir.NewNode(&ir.AnnotationPage{Base: ir.Base{ID: id(name + "/page"), Label: label(name + " page")}}, ir.NewNode(anno))
	return ir.NewNode(c, page)
}

// archive builds:
//
//	root (Collection): items [m, m2]
//	  m (Manifest): items [a, b], structures [r -> (a, b)]
//	  m2 (Manifest): items [c]
func archive(t *testing.T) *vault.State {
	t.Helper()
	r := ir.NewNode(&ir.Range{Base: ir.Base{ID: id("r"), Label: label("r")}},
		ir.RefNode(ir.KindCanvas, id("a")), ir.RefNode(ir.KindCanvas, id("b")))
	m := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: id("m"), Label: label("m")}}, canvasNode("a"), canvasNode("b"))
	m.Structures = []*ir.Node{r}
	m2 := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: id("m2"), Label: label("m2")}}, canvasNode("c"))
	root := ir.NewNode(&ir.Collection{Base: ir.Base{ID: id("root"), Label: label("root")}}, m, m2)

	s := vault.Normalize(root)
	require.Empty(t, s.Warnings())
	require.Empty(t, New(s).Validate(), "fixture is clean")
	return s
}

func quietLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

// newTestEngine starts a session with a fixed clock and sequential IDs.
func newTestEngine(t *testing.T, s *vault.State, opts ...Option) (*Engine, *testutil.FixedClock) {
	t.Helper()
	clk := testutil.NewFixedClock(testutil.Epoch)
	base := []Option{
		WithClock(clk),
		WithIDGenerator(testutil.NewSequentialIDs("prov")),
		WithLogger(quietLogger()),
	}
	return New(s, append(base, opts...)...), clk
}

func fingerprint(t *testing.T, s *vault.State) string {
	t.Helper()
	fp, err := vault.Fingerprint(s)
	require.NoError(t, err)
	return fp
}

func intPtr(n int) *int { return &n }

func properties(changes []EntityChanges, entityID string) []string {
	var out []string
	for _, ec := range changes {
		if ec.EntityID != entityID {
			continue
		}
		for _, c := range ec.Changes {
			out = append(out, c.Property)
		}
	}
	return out
}
