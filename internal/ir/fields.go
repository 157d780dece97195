package ir

import (
	"encoding/json"
	"fmt"
)

// EntityFromFields rebuilds an entity from the map produced by
// EntityFields, or from the same map after a JSON round trip.
func EntityFromFields(fields map[string]any) (Entity, error) {
	typ, _ := fields["type"].(string)
	kind, err := ParseKind(typ)
	if err != nil {
		return nil, err
	}
	id, _ := fields["id"].(string)

	// EntityFields flattens start to an ID and duration to a decimal
	// string; restore the document shapes before decoding.
	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	if start, ok := doc["start"].(string); ok {
		doc["start"] = map[string]string{"id": start, "type": string(KindCanvas)}
	}
	if d, ok := doc["duration"].(string); ok {
		doc["duration"] = json.Number(d)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, err)
	}

	e, err := NewEntity(kind, id)
	if err != nil {
		return nil, err
	}
	if err := decodeBase(raw, e.Common(), id); err != nil {
		return nil, err
	}
	if err := decodeKindFields(raw, e, id); err != nil {
		return nil, err
	}
	return e, nil
}

// NodeFromCanonical rebuilds a tree from the map produced by CanonicalNode.
func NodeFromCanonical(m map[string]any) (*Node, error) {
	if ref, _ := m["ref"].(bool); ref {
		typ, _ := m["type"].(string)
		kind, err := ParseKind(typ)
		if err != nil {
			return nil, err
		}
		id, _ := m["id"].(string)
		return RefNode(kind, id), nil
	}

	e, err := EntityFromFields(m)
	if err != nil {
		return nil, err
	}
	node := &Node{Entity: e}
	for _, slot := range Slots {
		list, ok := m[string(slot)].([]any)
		if !ok || len(list) == 0 {
			continue
		}
		children := make([]*Node, 0, len(list))
		for i, item := range list {
			cm, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s.%s[%d]: expected object, got %T", e.EntityID(), slot, i, item)
			}
			child, err := NodeFromCanonical(cm)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		node.SetChildren(slot, children)
	}
	return node, nil
}
