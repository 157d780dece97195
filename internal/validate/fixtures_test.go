package validate

import (
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

const base = "https://example.org/iiif/"

func id(name string) string { return base + name }

func label(s string) ir.LanguageMap { return ir.LanguageMap{"en": {s}} }

func canvas(name string) *ir.Canvas {
	return &ir.Canvas{Base: ir.Base{ID: id(name), Label: label(name)}, Width: 1000, Height: 1500}
}

func painting(name, target string) *ir.Annotation {
	return &ir.Annotation{
		Base:       ir.Base{ID: id(name), Label: label(name)},
		Motivation: ir.MotivationPainting,
		Body:       ir.Body{Type: ir.BodyImage, ID: "https://example.org/img/" + name + ".jpg", Format: "image/jpeg"},
		Target:     ir.Target{Source: target},
	}
}

func comment(name, target, text string) *ir.Annotation {
	return &ir.Annotation{
		Base:       ir.Base{ID: id(name), Label: label(name)},
		Motivation: ir.MotivationCommenting,
		Body:       ir.Body{Type: ir.BodyTextual, Value: text, Language: "en"},
		Target:     ir.Target{Source: target},
	}
}

func page(name string, annos ...*ir.Annotation) *ir.Node {
	items := make([]*ir.Node, len(annos))
	for i, a := range annos {
		items[i] = ir.NewNode(a)
	}
	return ir.NewNode(&ir.AnnotationPage{Base: ir.Base{ID: id(name), Label: label(name)}}, items...)
}

// book builds a fully labelled manifest:
//
//	m (Manifest, paged): items [a -> pa(an-a), b -> pb(an-b)], structures [r -> (a, b)]
//	  a: annotations [notes(note)]
func book() *ir.Node {
	a := ir.NewNode(canvas("a"), page("pa", painting("an-a", id("a"))))
	a.Annotations = []*ir.Node{page("notes", comment("note", id("a")+"#xywh=10,10,50,50", "margin note"))}
	b := ir.NewNode(canvas("b"), page("pb", painting("an-b", id("b"))))
	r := ir.NewNode(&ir.Range{Base: ir.Base{ID: id("r"), Label: label("r")}},
		ir.RefNode(ir.KindCanvas, id("a")), ir.RefNode(ir.KindCanvas, id("b")))
	m := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: id("m"), Label: label("m"), Behavior: []string{"paged"}}}, a, b)
	m.Structures = []*ir.Node{r}
	return m
}

func codes(issues []Issue) []ir.ErrorCode {
	out := make([]ir.ErrorCode, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}

func fields(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Field
	}
	return out
}
