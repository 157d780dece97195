package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed fingerprints.
// The version suffix leaves room for a future algorithm migration.
const (
	DomainState    = "iiifvault/state/v1"
	DomainDocument = "iiifvault/document/v1"
	DomainChanges  = "iiifvault/changes/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical JSON form of v under a domain.
// Two values with equal fingerprints are byte-for-byte identical in
// canonical form.
func Fingerprint(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests or when inputs are known to be canonical.
func MustFingerprint(domain string, v any) string {
	fp, err := Fingerprint(domain, v)
	if err != nil {
		panic(err)
	}
	return fp
}

// CanonicalNode converts a tree into plain maps and slices suitable for
// MarshalCanonical. Durations are written as decimal strings.
func CanonicalNode(n *Node) map[string]any {
	if n.Ref {
		return map[string]any{
			"id":   n.ID(),
			"type": string(n.Kind()),
			"ref":  true,
		}
	}
	out := EntityFields(n.Entity)
	for _, slot := range Slots {
		children := n.Children(slot)
		if len(children) == 0 {
			continue
		}
		list := make([]any, len(children))
		for i, child := range children {
			list[i] = CanonicalNode(child)
		}
		out[string(slot)] = list
	}
	return out
}

// EntityFields returns the entity's own fields (no children) as plain
// maps. The result round-trips through EntityFromFields.
func EntityFields(e Entity) map[string]any {
	b := e.Common()
	out := map[string]any{
		"id":   b.ID,
		"type": string(e.EntityKind()),
	}
	if b.Label != nil {
		out["label"] = canonicalLanguageMap(b.Label)
	}
	if b.Summary != nil {
		out["summary"] = canonicalLanguageMap(b.Summary)
	}
	if len(b.Metadata) > 0 {
		md := make([]any, len(b.Metadata))
		for i, entry := range b.Metadata {
			md[i] = map[string]any{
				"label": canonicalLanguageMap(entry.Label),
				"value": canonicalLanguageMap(entry.Value),
			}
		}
		out["metadata"] = md
	}
	if b.Rights != "" {
		out["rights"] = b.Rights
	}
	if len(b.Behavior) > 0 {
		out["behavior"] = b.Behavior
	}
	if b.NavDate != "" {
		out["navDate"] = b.NavDate
	}
	switch v := e.(type) {
	case *Manifest:
		if v.Start != "" {
			out["start"] = v.Start
		}
	case *Canvas:
		if v.Width > 0 || v.Height > 0 {
			out["width"] = v.Width
			out["height"] = v.Height
		}
		if v.Duration > 0 {
			out["duration"] = string(ValueOfFloat(v.Duration).(Str))
		}
	case *Annotation:
		out["motivation"] = v.Motivation
		out["body"] = canonicalBody(v.Body)
		target := map[string]any{"source": v.Target.Source}
		if sel := v.Target.Selector; sel != nil {
			target["selector"] = map[string]any{"type": sel.Type, "value": sel.Value}
		}
		out["target"] = target
	}
	return out
}

func canonicalLanguageMap(m LanguageMap) map[string]any {
	out := make(map[string]any, len(m))
	for lang, values := range m {
		list := make([]any, len(values))
		for i, s := range values {
			list[i] = s
		}
		out[lang] = list
	}
	return out
}

func canonicalBody(b Body) map[string]any {
	out := map[string]any{"type": b.Type}
	for key, value := range map[string]string{"id": b.ID, "value": b.Value, "language": b.Language, "format": b.Format} {
		if value != "" {
			out[key] = value
		}
	}
	if b.Width > 0 || b.Height > 0 {
		out["width"] = b.Width
		out["height"] = b.Height
	}
	return out
}

// TreeFingerprint returns the content fingerprint of a tree.
func TreeFingerprint(root *Node) (string, error) {
	return Fingerprint(DomainDocument, CanonicalNode(root))
}
