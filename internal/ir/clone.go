package ir

import (
	"slices"
	"sort"
)

// Clone returns a deep copy of e. Callers edit the copy and store it as a
// new entity; stored entities are never mutated.
func Clone(e Entity) Entity {
	switch v := e.(type) {
	case *Collection:
		c := *v
		c.Base = v.Base.clone()
		return &c
	case *Manifest:
		c := *v
		c.Base = v.Base.clone()
		return &c
	case *Canvas:
		c := *v
		c.Base = v.Base.clone()
		return &c
	case *Range:
		c := *v
		c.Base = v.Base.clone()
		return &c
	case *AnnotationPage:
		c := *v
		c.Base = v.Base.clone()
		return &c
	case *Annotation:
		c := *v
		c.Base = v.Base.clone()
		if v.Target.Selector != nil {
			sel := *v.Target.Selector
			c.Target.Selector = &sel
		}
		return &c
	default:
		return nil
	}
}

func (b Base) clone() Base {
	out := b
	out.Label = b.Label.Clone()
	out.Summary = b.Summary.Clone()
	out.Metadata = CloneMetadata(b.Metadata)
	out.Behavior = slices.Clone(b.Behavior)
	return out
}

// Clone returns a deep copy of the language map. Nil stays nil.
func (m LanguageMap) Clone() LanguageMap {
	if m == nil {
		return nil
	}
	out := make(LanguageMap, len(m))
	for lang, values := range m {
		out[lang] = slices.Clone(values)
	}
	return out
}

// Equal reports whether two language maps hold the same values in order.
func (m LanguageMap) Equal(other LanguageMap) bool {
	if len(m) != len(other) {
		return false
	}
	for lang, values := range m {
		ov, ok := other[lang]
		if !ok || !slices.Equal(values, ov) {
			return false
		}
	}
	return true
}

// SortedLanguages returns the language keys in lexical order.
func (m LanguageMap) SortedLanguages() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneMetadata deep-copies a metadata list. Nil stays nil.
func CloneMetadata(md []MetadataEntry) []MetadataEntry {
	if md == nil {
		return nil
	}
	out := make([]MetadataEntry, len(md))
	for i, entry := range md {
		out[i] = MetadataEntry{Label: entry.Label.Clone(), Value: entry.Value.Clone()}
	}
	return out
}

// MetadataEqual compares two metadata lists entry by entry.
func MetadataEqual(a, b []MetadataEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Label.Equal(b[i].Label) || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}
	return true
}
