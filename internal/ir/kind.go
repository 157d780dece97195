package ir

import "fmt"

// Kind discriminates the six resource variants.
type Kind string

const (
	KindCollection     Kind = "Collection"
	KindManifest       Kind = "Manifest"
	KindCanvas         Kind = "Canvas"
	KindRange          Kind = "Range"
	KindAnnotationPage Kind = "AnnotationPage"
	KindAnnotation     Kind = "Annotation"
)

// Kinds lists every kind in containment order, broadest first.
var Kinds = []Kind{
	KindCollection,
	KindManifest,
	KindCanvas,
	KindRange,
	KindAnnotationPage,
	KindAnnotation,
}

// ValidKinds defines the allowed kind strings.
var ValidKinds = map[Kind]bool{
	KindCollection:     true,
	KindManifest:       true,
	KindCanvas:         true,
	KindRange:          true,
	KindAnnotationPage: true,
	KindAnnotation:     true,
}

// ParseKind converts a document "type" value into a Kind.
// Foreign kinds (e.g. "AnnotationCollection", "Choice") are rejected.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !ValidKinds[k] {
		return "", fmt.Errorf("unsupported resource type %q", s)
	}
	return k, nil
}

// IsRootKind reports whether k may be the root of a document.
func (k Kind) IsRootKind() bool {
	return k == KindCollection || k == KindManifest
}

// Slot names one of the ordered child lists a resource can own.
type Slot string

const (
	// SlotItems holds the primary children (canvases, pages, annotations...).
	SlotItems Slot = "items"
	// SlotAnnotations holds supplementary annotation pages.
	SlotAnnotations Slot = "annotations"
	// SlotStructures holds a manifest's top-level ranges.
	SlotStructures Slot = "structures"
)

// Slots lists the slots in document serialization order.
var Slots = []Slot{SlotItems, SlotStructures, SlotAnnotations}

// ParseSlot converts a string into a Slot, defaulting empty to SlotItems.
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case "", SlotItems:
		return SlotItems, nil
	case SlotAnnotations:
		return SlotAnnotations, nil
	case SlotStructures:
		return SlotStructures, nil
	default:
		return "", fmt.Errorf("unknown slot %q", s)
	}
}
