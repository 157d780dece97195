package validate

import (
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
)

// Heal returns a corrected copy of e along with a description of each fix.
// It repairs only fixable issues: a fragment on a canvas ID, behaviors that
// are unknown or invalid for the kind, conflicting behaviors (the last
// member of each disjoint set wins) and a missing label (derived from the
// last path segment of the ID). e itself is never modified.
func Heal(e ir.Entity, table *rules.Table) (ir.Entity, []string) {
	if table == nil {
		table = rules.Default()
	}
	out := ir.Clone(e)
	b := out.Common()
	var fixes []string

	if out.EntityKind() == ir.KindCanvas {
		if base, _, found := strings.Cut(b.ID, "#"); found {
			fixes = append(fixes, "removed fragment from canvas id "+b.ID)
			b.ID = base
		}
	}

	var kept []string
	for _, token := range b.Behavior {
		switch {
		case !table.IsBehaviorValidForType(token, out.EntityKind()):
			fixes = append(fixes, "dropped behavior "+token)
		case slices.Contains(kept, token):
		default:
			kept = append(kept, token)
		}
	}
	// Walk backwards so the last member of each disjoint set survives.
	claimed := make(map[string]bool)
	var resolved []string
	for i := len(kept) - 1; i >= 0; i-- {
		token := kept[i]
		if set, ok := table.DisjointSetOf(token); ok {
			if claimed[set.Name] {
				fixes = append(fixes, "dropped conflicting behavior "+token)
				continue
			}
			claimed[set.Name] = true
		}
		resolved = append(resolved, token)
	}
	slices.Reverse(resolved)
	if len(b.Behavior) > 0 && len(resolved) != len(b.Behavior) {
		b.Behavior = resolved
	}

	if len(b.Label) == 0 {
		if text := labelFromID(b.ID); text != "" {
			b.Label = ir.LanguageMap{"none": {text}}
			fixes = append(fixes, "derived label "+text)
		}
	}
	return out, fixes
}

func labelFromID(id string) string {
	u, err := url.Parse(id)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if seg := path.Base(p); seg != "." && seg != "/" && seg != "" {
		if unescaped, err := url.PathUnescape(seg); err == nil {
			return unescaped
		}
		return seg
	}
	return u.Host
}
