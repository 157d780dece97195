package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// DecodeDocument parses an IIIF Presentation 3 JSON document into a tree.
//
// Resource types outside the six supported kinds are rejected here, at the
// boundary, rather than deep in the store. Range items of type Canvas and
// Collection items of type Collection without an "items" array are decoded
// as references (Node.Ref).
func DecodeDocument(data []byte) (*Node, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	root, err := decodeNode(raw, "", "$")
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if !root.Kind().IsRootKind() {
		return nil, fmt.Errorf("decode document: root must be Collection or Manifest, got %s", root.Kind())
	}
	return root, nil
}

func decodeNode(raw map[string]json.RawMessage, parentKind Kind, path string) (*Node, error) {
	var typ, id string
	if err := decodeField(raw, "type", &typ); err != nil {
		return nil, fmt.Errorf("%s.type: %w", path, err)
	}
	if err := decodeField(raw, "id", &id); err != nil {
		return nil, fmt.Errorf("%s.id: %w", path, err)
	}
	kind, err := ParseKind(typ)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	_, hasItems := raw["items"]
	isRef := (parentKind == KindRange && kind == KindCanvas) ||
		(parentKind == KindCollection && kind == KindCollection && !hasItems)
	if isRef {
		return RefNode(kind, id), nil
	}

	e, err := NewEntity(kind, id)
	if err != nil {
		return nil, err
	}
	if err := decodeBase(raw, e.Common(), path); err != nil {
		return nil, err
	}
	if err := decodeKindFields(raw, e, path); err != nil {
		return nil, err
	}

	node := &Node{Entity: e}
	for _, slot := range Slots {
		children, err := decodeChildren(raw, slot, kind, path)
		if err != nil {
			return nil, err
		}
		node.SetChildren(slot, children)
	}
	return node, nil
}

func decodeChildren(raw map[string]json.RawMessage, slot Slot, parentKind Kind, path string) ([]*Node, error) {
	data, ok := raw[string(slot)]
	if !ok {
		return nil, nil
	}
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", path, slot, err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]*Node, 0, len(list))
	for i, item := range list {
		child, err := decodeNode(item, parentKind, fmt.Sprintf("%s.%s[%d]", path, slot, i))
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func decodeBase(raw map[string]json.RawMessage, b *Base, path string) error {
	fields := []struct {
		key string
		dst any
	}{
		{"label", &b.Label},
		{"summary", &b.Summary},
		{"metadata", &b.Metadata},
		{"rights", &b.Rights},
		{"behavior", &b.Behavior},
		{"navDate", &b.NavDate},
	}
	for _, f := range fields {
		if err := decodeField(raw, f.key, f.dst); err != nil {
			return fmt.Errorf("%s.%s: %w", path, f.key, err)
		}
	}
	return nil
}

func decodeKindFields(raw map[string]json.RawMessage, e Entity, path string) error {
	switch v := e.(type) {
	case *Manifest:
		if data, ok := raw["start"]; ok {
			var start struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(data, &start); err != nil {
				return fmt.Errorf("%s.start: %w", path, err)
			}
			v.Start = start.ID
		}
	case *Canvas:
		for key, dst := range map[string]any{"width": &v.Width, "height": &v.Height, "duration": &v.Duration} {
			if err := decodeField(raw, key, dst); err != nil {
				return fmt.Errorf("%s.%s: %w", path, key, err)
			}
		}
	case *Annotation:
		return decodeAnnotation(raw, v, path)
	}
	return nil
}

// decodeAnnotation accepts the single-valued forms used by editors as well
// as the array forms allowed by the W3C model (first element wins).
func decodeAnnotation(raw map[string]json.RawMessage, a *Annotation, path string) error {
	if data, ok := raw["motivation"]; ok {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			var many []string
			if err := json.Unmarshal(data, &many); err != nil {
				return fmt.Errorf("%s.motivation: %w", path, err)
			}
			if len(many) > 0 {
				single = many[0]
			}
		}
		a.Motivation = single
	}
	if data, ok := raw["body"]; ok {
		data = firstOfArray(data)
		if err := json.Unmarshal(data, &a.Body); err != nil {
			return fmt.Errorf("%s.body: %w", path, err)
		}
	}
	if data, ok := raw["target"]; ok {
		target, err := decodeTarget(firstOfArray(data))
		if err != nil {
			return fmt.Errorf("%s.target: %w", path, err)
		}
		a.Target = target
	}
	return nil
}

func decodeTarget(data json.RawMessage) (Target, error) {
	var uri string
	if err := json.Unmarshal(data, &uri); err == nil {
		return Target{Source: uri}, nil
	}
	var obj struct {
		ID       string          `json:"id"`
		Source   json.RawMessage `json:"source"`
		Selector json.RawMessage `json:"selector"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return Target{}, err
	}
	t := Target{Source: obj.ID}
	if len(obj.Source) > 0 {
		var src string
		if err := json.Unmarshal(obj.Source, &src); err != nil {
			var srcObj struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(obj.Source, &srcObj); err != nil {
				return Target{}, fmt.Errorf("source: %w", err)
			}
			src = srcObj.ID
		}
		t.Source = src
	}
	if len(obj.Selector) > 0 {
		var sel Selector
		if err := json.Unmarshal(firstOfArray(obj.Selector), &sel); err != nil {
			return Target{}, fmt.Errorf("selector: %w", err)
		}
		t.Selector = &sel
	}
	return t, nil
}

func firstOfArray(data json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return data
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
		return data
	}
	return list[0]
}

func decodeField(raw map[string]json.RawMessage, key string, dst any) error {
	data, ok := raw[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(data, dst)
}

// EncodeDocument writes the tree as IIIF Presentation 3 JSON with a stable
// key order. Owned container resources always carry an "items" array so the
// output decodes back to the same tree.
func EncodeDocument(root *Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeNode(&buf, root, true); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

type objectWriter struct {
	buf   *bytes.Buffer
	count int
}

func (w *objectWriter) field(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	w.raw(key, data)
	return nil
}

func (w *objectWriter) raw(key string, data []byte) {
	if w.count > 0 {
		w.buf.WriteByte(',')
	}
	w.count++
	w.buf.WriteString(strconv.Quote(key))
	w.buf.WriteByte(':')
	w.buf.Write(data)
}

func encodeNode(buf *bytes.Buffer, n *Node, root bool) error {
	buf.WriteByte('{')
	w := &objectWriter{buf: buf}
	if root {
		if err := w.field("@context", PresentationContext); err != nil {
			return err
		}
	}
	b := n.Entity.Common()
	if err := w.field("id", b.ID); err != nil {
		return err
	}
	if err := w.field("type", string(n.Kind())); err != nil {
		return err
	}
	if n.Ref {
		buf.WriteByte('}')
		return nil
	}

	optional := []struct {
		key   string
		value any
		set   bool
	}{
		{"label", b.Label, len(b.Label) > 0},
		{"summary", b.Summary, len(b.Summary) > 0},
		{"metadata", b.Metadata, len(b.Metadata) > 0},
		{"rights", b.Rights, b.Rights != ""},
		{"navDate", b.NavDate, b.NavDate != ""},
		{"behavior", b.Behavior, len(b.Behavior) > 0},
	}
	for _, f := range optional {
		if !f.set {
			continue
		}
		if err := w.field(f.key, f.value); err != nil {
			return err
		}
	}
	if err := encodeKindFields(w, n.Entity); err != nil {
		return err
	}

	for _, slot := range Slots {
		children := n.Children(slot)
		if len(children) == 0 && !(slot == SlotItems && n.Kind() != KindAnnotation) {
			continue
		}
		var list bytes.Buffer
		list.WriteByte('[')
		for i, child := range children {
			if i > 0 {
				list.WriteByte(',')
			}
			if err := encodeNode(&list, child, false); err != nil {
				return err
			}
		}
		list.WriteByte(']')
		w.raw(string(slot), list.Bytes())
	}

	buf.WriteByte('}')
	return nil
}

func encodeKindFields(w *objectWriter, e Entity) error {
	switch v := e.(type) {
	case *Manifest:
		if v.Start != "" {
			return w.field("start", map[string]string{"id": v.Start, "type": string(KindCanvas)})
		}
	case *Canvas:
		if v.Width > 0 || v.Height > 0 {
			if err := w.field("width", v.Width); err != nil {
				return err
			}
			if err := w.field("height", v.Height); err != nil {
				return err
			}
		}
		if v.Duration > 0 {
			return w.field("duration", v.Duration)
		}
	case *Annotation:
		if err := w.field("motivation", v.Motivation); err != nil {
			return err
		}
		if err := w.field("body", v.Body); err != nil {
			return err
		}
		if v.Target.Selector == nil {
			return w.field("target", v.Target.Source)
		}
		return w.field("target", map[string]any{
			"type":     "SpecificResource",
			"source":   v.Target.Source,
			"selector": v.Target.Selector,
		})
	}
	return nil
}

// DecodeResource parses a single resource of any supported kind, such as a
// canvas submitted for insertion. Unlike DecodeDocument it does not require
// a Collection or Manifest at the top.
func DecodeResource(data []byte) (*Node, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	n, err := decodeNode(raw, "", "$")
	if err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}
	return n, nil
}

// MarshalJSON encodes the node as a Presentation 3 resource without @context.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeNode(&buf, n, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a resource with DecodeResource.
func (n *Node) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeResource(data)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}
