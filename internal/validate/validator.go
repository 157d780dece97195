package validate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
)

// Validator checks entities against a rule table.
type Validator struct {
	rules *rules.Table
}

// New returns a Validator for table. A nil table selects rules.Default().
func New(table *rules.Table) *Validator {
	if table == nil {
		table = rules.Default()
	}
	return &Validator{rules: table}
}

// Rules returns the table the validator checks against.
func (v *Validator) Rules() *rules.Table { return v.rules }

// Context places an entity for ValidateItem. The zero value validates the
// entity as a root.
type Context struct {
	ParentKind ir.Kind
	Slot       ir.Slot
	// ParentBehaviors are the behaviors in force on the parent, inherited
	// ones included.
	ParentBehaviors []string
	// HasDuration is set when the entity is or contains time-based media.
	HasDuration bool
}

// ValidateItem runs the identity, shape, hierarchy and behavior checks for
// one entity. Every issue carries the entity's ID.
func (v *Validator) ValidateItem(e ir.Entity, ctx Context) []Issue {
	var issues []Issue
	issues = append(issues, checkIdentity(e)...)
	issues = append(issues, checkShape(e)...)

	kind := e.EntityKind()
	if ctx.ParentKind != "" {
		slot := ctx.Slot
		if slot == "" {
			slot = ir.SlotItems
		}
		if !v.rules.CanContain(ctx.ParentKind, slot, kind) {
			issues = append(issues, errorIssue(CategoryHierarchy, ir.ErrInvalidChildType, "type",
				"%s cannot hold %s in %s (allowed: %s)", ctx.ParentKind, kind, slot, kindList(v.rules.AllowedChildren(ctx.ParentKind, slot))))
		}
	}

	hasDuration := ctx.HasDuration
	if c, ok := e.(*ir.Canvas); ok && c.IsTimeBased() {
		hasDuration = true
	}
	report := v.ValidateBehaviors(kind, e.Common().Behavior, BehaviorContext{
		ParentKind:      ctx.ParentKind,
		ParentBehaviors: ctx.ParentBehaviors,
		HasDuration:     hasDuration,
	})
	issues = append(issues, report.Errors...)
	issues = append(issues, report.Warnings...)

	for i := range issues {
		issues[i].EntityID = e.EntityID()
	}
	return issues
}

func kindList(kinds []ir.Kind) string {
	if len(kinds) == 0 {
		return "none"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func checkIdentity(e ir.Entity) []Issue {
	var issues []Issue
	id := e.EntityID()
	if !isHTTPURI(id) {
		issues = append(issues, errorIssue(CategoryIdentity, ir.ErrInvalidShape, "id", "id %q must be an absolute http(s) URI", id))
	}
	if e.EntityKind() == ir.KindCanvas && strings.Contains(id, "#") {
		issue := errorIssue(CategoryIdentity, ir.ErrInvalidShape, "id", "canvas id %q must not contain a fragment", id)
		issue.Fixable = true
		issues = append(issues, issue)
	}
	if len(e.Common().Label) == 0 {
		issue := warningIssue(CategoryIdentity, ir.ErrInvalidShape, "label", "%s has no label", e.EntityKind())
		issue.Fixable = true
		issues = append(issues, issue)
	}
	return issues
}

func isHTTPURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.IsAbs() && (u.Host != "" || u.Opaque != "")
}

func checkShape(e ir.Entity) []Issue {
	b := e.Common()
	var issues []Issue
	issues = append(issues, CheckLanguageMap("label", b.Label)...)
	issues = append(issues, CheckLanguageMap("summary", b.Summary)...)
	issues = append(issues, CheckMetadata(b.Metadata)...)
	if b.Rights != "" && !isAbsoluteURI(b.Rights) {
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "rights", "rights %q must be an absolute URI", b.Rights))
	}
	if b.NavDate != "" {
		if _, err := time.Parse(time.RFC3339, b.NavDate); err != nil {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "navDate", "navDate %q is not an RFC 3339 timestamp", b.NavDate))
		}
	}

	switch v := e.(type) {
	case *ir.Manifest:
		if v.Start != "" && !isHTTPURI(v.Start) {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "start", "start %q must be an absolute http(s) URI", v.Start))
		}
	case *ir.Canvas:
		issues = append(issues, CheckDimensions(v.Width, v.Height, v.Duration)...)
	case *ir.Annotation:
		issues = append(issues, checkAnnotation(v)...)
	}
	return issues
}

// CheckLanguageMap reports malformed language maps: keys must be BCP 47
// tags or "none", and every key needs at least one non-empty string.
func CheckLanguageMap(field string, m ir.LanguageMap) []Issue {
	var issues []Issue
	for _, lang := range m.SortedLanguages() {
		if lang != "none" {
			if _, err := language.Parse(lang); err != nil {
				issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, field, "%q is not a BCP 47 language tag", lang))
			}
		}
		values := m[lang]
		if len(values) == 0 {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, field+"."+lang, "language %q has no values", lang))
			continue
		}
		for i, s := range values {
			if strings.TrimSpace(s) == "" {
				issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, fmt.Sprintf("%s.%s[%d]", field, lang, i), "value is empty"))
			}
		}
	}
	return issues
}

// CheckMetadata reports metadata entries without a label or value.
func CheckMetadata(md []ir.MetadataEntry) []Issue {
	var issues []Issue
	for i, entry := range md {
		field := fmt.Sprintf("metadata[%d]", i)
		if len(entry.Label) == 0 {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, field+".label", "metadata entry needs a label"))
		}
		if len(entry.Value) == 0 {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, field+".value", "metadata entry needs a value"))
		}
		issues = append(issues, CheckLanguageMap(field+".label", entry.Label)...)
		issues = append(issues, CheckLanguageMap(field+".value", entry.Value)...)
	}
	return issues
}

// CheckDimensions reports canvas extents that are negative, half set, or
// absent altogether.
func CheckDimensions(width, height int, duration float64) []Issue {
	var issues []Issue
	if width < 0 || height < 0 {
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "width", "width and height must be positive, got %dx%d", width, height))
	} else if (width > 0) != (height > 0) {
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "width", "width and height must be set together, got %dx%d", width, height))
	}
	if duration < 0 {
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "duration", "duration must be positive, got %v", duration))
	}
	if width == 0 && height == 0 && duration == 0 {
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "width", "canvas needs width and height or a duration"))
	}
	return issues
}

func checkAnnotation(a *ir.Annotation) []Issue {
	var issues []Issue
	if !ir.ValidMotivations[a.Motivation] {
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "motivation", "unknown motivation %q", a.Motivation))
	}

	switch a.Body.Type {
	case ir.BodyTextual:
		if strings.TrimSpace(a.Body.Value) == "" {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "body.value", "textual body is empty"))
		}
		if a.Body.Language != "" && a.Body.Language != "none" {
			if _, err := language.Parse(a.Body.Language); err != nil {
				issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "body.language", "%q is not a BCP 47 language tag", a.Body.Language))
			}
		}
	case ir.BodyImage:
		if !isHTTPURI(a.Body.ID) {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "body.id", "image body needs an absolute http(s) id"))
		}
		if a.Body.Width < 0 || a.Body.Height < 0 {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "body.width", "image dimensions must be positive"))
		}
	default:
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "body.type", "body type must be %s or %s, got %q", ir.BodyTextual, ir.BodyImage, a.Body.Type))
	}

	source, fragment, hasFragment := strings.Cut(a.Target.Source, "#")
	if !isHTTPURI(source) {
		issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "target.source", "target %q must be an absolute http(s) URI", a.Target.Source))
	}
	if hasFragment && strings.HasPrefix(fragment, "xywh=") {
		if err := parseXYWH(fragment); err != nil {
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "target.source", "%v", err))
		}
	}
	if sel := a.Target.Selector; sel != nil {
		switch sel.Type {
		case ir.SelectorFragment:
			if err := parseXYWH(sel.Value); err != nil {
				issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "target.selector", "%v", err))
			}
		case ir.SelectorSVG:
			if !strings.Contains(sel.Value, "<svg") {
				issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "target.selector", "svg selector has no <svg> element"))
			}
		default:
			issues = append(issues, errorIssue(CategoryShape, ir.ErrInvalidShape, "target.selector", "selector type must be %s or %s, got %q", ir.SelectorFragment, ir.SelectorSVG, sel.Type))
		}
	}
	return issues
}

// parseXYWH accepts "xywh=x,y,w,h" with an optional "pixel:" unit and
// non-negative integer components.
func parseXYWH(s string) error {
	rest, ok := strings.CutPrefix(s, "xywh=")
	if !ok {
		return fmt.Errorf("fragment %q must start with xywh=", s)
	}
	rest = strings.TrimPrefix(rest, "pixel:")
	parts := strings.Split(rest, ",")
	if len(parts) != 4 {
		return fmt.Errorf("fragment %q needs four components", s)
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return fmt.Errorf("fragment %q components must be non-negative integers", s)
		}
	}
	return nil
}
