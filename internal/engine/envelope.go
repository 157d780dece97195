package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

var decoders = map[string]func([]byte) (Action, error){
	TypeUpdateLabel:            decodeAs[UpdateLabel],
	TypeUpdateSummary:          decodeAs[UpdateSummary],
	TypeUpdateMetadata:         decodeAs[UpdateMetadata],
	TypeUpdateBehavior:         decodeAs[UpdateBehavior],
	TypeUpdateRights:           decodeAs[UpdateRights],
	TypeUpdateNavDate:          decodeAs[UpdateNavDate],
	TypeUpdateCanvasDimensions: decodeAs[UpdateCanvasDimensions],
	TypeAddCanvas:              decodeAs[AddCanvas],
	TypeAddChild:               decodeAs[AddChild],
	TypeRemoveEntity:           decodeAs[RemoveEntity],
	TypeReorderChildren:        decodeAs[ReorderChildren],
	TypeMoveEntity:             decodeAs[MoveEntity],
	TypeLinkReference:          decodeAs[LinkReference],
	TypeUnlinkReference:        decodeAs[UnlinkReference],
	TypeBatchUpdate:            decodeAs[BatchUpdate],
	TypeMoveToTrash:            decodeAs[MoveToTrash],
	TypeRestoreFromTrash:       decodeAs[RestoreFromTrash],
	TypeHealEntity:             decodeAs[HealEntity],
}

// ActionTypes returns the registered action type names in sorted order.
func ActionTypes() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeAs[T Action](data []byte) (Action, error) {
	var a T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, err
	}
	return a, nil
}

// MarshalAction writes an action as a JSON object with a "type" field
// naming the variant.
func MarshalAction(a Action) ([]byte, error) {
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", a.Type(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", a.Type(), err)
	}
	typ, _ := json.Marshal(a.Type())
	fields["type"] = typ
	return json.Marshal(fields)
}

// UnmarshalAction decodes the envelope written by MarshalAction. Unknown
// types and unknown fields are rejected.
func UnmarshalAction(data []byte) (Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}
	var typ string
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &typ); err != nil {
			return nil, fmt.Errorf("unmarshal action: type: %w", err)
		}
	}
	if typ == "" {
		return nil, fmt.Errorf("unmarshal action: missing type")
	}
	decode, ok := decoders[typ]
	if !ok {
		return nil, fmt.Errorf("unmarshal action: unknown type %q", typ)
	}
	delete(fields, "type")
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}
	a, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", typ, err)
	}
	return a, nil
}

// script is the on-disk form of an action script.
type script struct {
	Actions []map[string]any `yaml:"actions"`
}

// ParseScript reads a YAML (or JSON) document of the form
//
//	actions:
//	  - type: UpdateLabel
//	    id: https://example.org/iiif/m
//	    label: {en: [Title]}
//
// Unknown top-level keys are rejected.
func ParseScript(data []byte) ([]Action, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s script
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	actions := make([]Action, 0, len(s.Actions))
	for i, raw := range s.Actions {
		body, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("parse script: action[%d]: %w", i, err)
		}
		a, err := UnmarshalAction(body)
		if err != nil {
			return nil, fmt.Errorf("parse script: action[%d]: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}
