package ir

// LanguageMap maps a BCP 47 language tag (or "none") to string values.
type LanguageMap map[string][]string

// MetadataEntry is a single label/value pair shown to end users.
type MetadataEntry struct {
	Label LanguageMap `json:"label"`
	Value LanguageMap `json:"value"`
}

// Entity is a sealed interface for the six resource kinds.
// Only *Collection, *Manifest, *Canvas, *Range, *AnnotationPage and
// *Annotation implement it.
type Entity interface {
	EntityID() string
	EntityKind() Kind
	Common() *Base
	entity() // Sealed
}

// Base holds the fields every resource carries.
type Base struct {
	ID       string          `json:"id"`
	Label    LanguageMap     `json:"label,omitempty"`
	Summary  LanguageMap     `json:"summary,omitempty"`
	Metadata []MetadataEntry `json:"metadata,omitempty"`
	Rights   string          `json:"rights,omitempty"`
	Behavior []string        `json:"behavior,omitempty"`
	NavDate  string          `json:"navDate,omitempty"` // RFC 3339
}

// EntityID returns the resource URI.
func (b *Base) EntityID() string { return b.ID }

// Common returns the shared fields for in-place edits on a cloned entity.
func (b *Base) Common() *Base { return b }

// Collection is an ordered grouping of manifests and sub-collections.
type Collection struct {
	Base
}

// Manifest describes a single compound object: its canvases and ranges.
type Manifest struct {
	Base
	Start string `json:"start,omitempty"` // canvas ID to open first
}

// Canvas is a single view (page, image, time segment) of a manifest.
type Canvas struct {
	Base
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"` // seconds, time-based media only
}

// IsTimeBased reports whether the canvas presents time-based media.
func (c *Canvas) IsTimeBased() bool { return c.Duration > 0 }

// Range is a named, ordered subsequence of canvases (chapters, sections).
type Range struct {
	Base
}

// AnnotationPage is an ordered container of annotations.
type AnnotationPage struct {
	Base
}

// Annotation links a body to a target with a motivation.
type Annotation struct {
	Base
	Motivation string `json:"motivation"`
	Body       Body   `json:"body"`
	Target     Target `json:"target"`
}

// Annotation motivations from the W3C model plus the IIIF additions.
const (
	MotivationPainting      = "painting"
	MotivationSupplementing = "supplementing"
	MotivationCommenting    = "commenting"
	MotivationTagging       = "tagging"
)

// ValidMotivations lists every accepted motivation token.
var ValidMotivations = map[string]bool{
	"assessing":     true,
	"bookmarking":   true,
	"classifying":   true,
	"commenting":    true,
	"describing":    true,
	"editing":       true,
	"highlighting":  true,
	"identifying":   true,
	"linking":       true,
	"moderating":    true,
	"painting":      true,
	"questioning":   true,
	"replying":      true,
	"supplementing": true,
	"tagging":       true,
}

// Body types.
const (
	BodyTextual = "TextualBody"
	BodyImage   = "Image"
)

// Body is the content of an annotation: text or an image resource.
type Body struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`       // Image only
	Value    string `json:"value,omitempty"`    // TextualBody only
	Language string `json:"language,omitempty"` // TextualBody only
	Format   string `json:"format,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Selector types.
const (
	SelectorFragment = "FragmentSelector"
	SelectorSVG      = "SvgSelector"
)

// Selector narrows a target to a region of the source canvas.
type Selector struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Target is what an annotation is about: a whole canvas or a region of one.
type Target struct {
	Source   string    `json:"source"`
	Selector *Selector `json:"selector,omitempty"`
}

func (*Collection) entity()     {}
func (*Manifest) entity()       {}
func (*Canvas) entity()         {}
func (*Range) entity()          {}
func (*AnnotationPage) entity() {}
func (*Annotation) entity()     {}

func (*Collection) EntityKind() Kind     { return KindCollection }
func (*Manifest) EntityKind() Kind       { return KindManifest }
func (*Canvas) EntityKind() Kind         { return KindCanvas }
func (*Range) EntityKind() Kind          { return KindRange }
func (*AnnotationPage) EntityKind() Kind { return KindAnnotationPage }
func (*Annotation) EntityKind() Kind     { return KindAnnotation }

// NewEntity returns an empty entity of the given kind with its ID set.
func NewEntity(kind Kind, id string) (Entity, error) {
	base := Base{ID: id}
	switch kind {
	case KindCollection:
		return &Collection{Base: base}, nil
	case KindManifest:
		return &Manifest{Base: base}, nil
	case KindCanvas:
		return &Canvas{Base: base}, nil
	case KindRange:
		return &Range{Base: base}, nil
	case KindAnnotationPage:
		return &AnnotationPage{Base: base}, nil
	case KindAnnotation:
		return &Annotation{Base: base}, nil
	default:
		_, err := ParseKind(string(kind))
		return nil, err
	}
}

// LabelText returns the first label value, preferring "none" then "en".
// Used for logs and summaries; returns "" for unlabeled entities.
func LabelText(e Entity) string {
	label := e.Common().Label
	for _, lang := range []string{"none", "en"} {
		if v := label[lang]; len(v) > 0 {
			return v[0]
		}
	}
	for _, lang := range label.SortedLanguages() {
		if v := label[lang]; len(v) > 0 {
			return v[0]
		}
	}
	return ""
}
