package validate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
)

// BehaviorContext carries what ValidateBehaviors needs to know about the
// surroundings of the entity.
type BehaviorContext struct {
	ParentKind      ir.Kind
	ParentBehaviors []string
	HasDuration     bool
}

// ValidateBehaviors checks a behavior list for kind. Tokens invalid for the
// kind and members of the same disjoint set are errors; unmet
// prerequisites and disagreement with an inherited parent behavior are
// warnings.
func (v *Validator) ValidateBehaviors(kind ir.Kind, behaviors []string, ctx BehaviorContext) Report {
	r := Report{Errors: []Issue{}, Warnings: []Issue{}}
	for i, b := range behaviors {
		field := fmt.Sprintf("behavior[%d]", i)
		if _, known := v.rules.Behavior(b); !known {
			issue := errorIssue(CategoryBehavior, ir.ErrInvalidBehavior, field, "unknown behavior %q", b)
			issue.Fixable = true
			r.Errors = append(r.Errors, issue)
			continue
		}
		if !v.rules.IsBehaviorValidForType(b, kind) {
			issue := errorIssue(CategoryBehavior, ir.ErrInvalidBehavior, field, "behavior %q is not valid on %s", b, kind)
			issue.Fixable = true
			r.Errors = append(r.Errors, issue)
		}
	}

	for _, c := range v.rules.FindBehaviorConflicts(behaviors) {
		issue := errorIssue(CategoryBehavior, ir.ErrConflictingBehavior, "behavior",
			"behaviors %s are mutually exclusive (%s)", strings.Join(c.Behaviors, ", "), c.Set)
		issue.Fixable = true
		r.Errors = append(r.Errors, issue)
	}

	for _, b := range behaviors {
		def, ok := v.rules.Behavior(b)
		if !ok || !v.rules.IsBehaviorValidForType(b, kind) {
			continue
		}
		switch def.Requires {
		case rules.EvidenceDuration:
			if !ctx.HasDuration {
				r.Warnings = append(r.Warnings, warningIssue(CategoryBehavior, ir.ErrInvalidBehavior, "behavior",
					"%q has no effect without time-based content", b))
			}
		case rules.EvidencePaged:
			if !slices.Contains(ctx.ParentBehaviors, "paged") {
				r.Warnings = append(r.Warnings, warningIssue(CategoryBehavior, ir.ErrInvalidBehavior, "behavior",
					"%q has no effect unless the enclosing %s is paged", b, orDefault(ctx.ParentKind, "resource")))
			}
		}
	}

	for _, c := range v.rules.InheritanceConflicts(kind, behaviors, ctx.ParentKind, ctx.ParentBehaviors) {
		r.Warnings = append(r.Warnings, warningIssue(CategoryBehavior, ir.ErrConflictingBehavior, "behavior",
			"%q overrides %q inherited from %s (%s)", c.Behaviors[1], c.Behaviors[0], ctx.ParentKind, c.Set))
	}

	r.Valid = len(r.Errors) == 0
	return r
}

func orDefault(k ir.Kind, fallback string) string {
	if k == "" {
		return fallback
	}
	return string(k)
}
