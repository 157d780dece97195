package provenance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
)

// Change is one property transition. Absent values are ir.Null.
type Change struct {
	Property string   `json:"property"`
	OldValue ir.Value `json:"oldValue"`
	NewValue ir.Value `json:"newValue"`
}

// MarshalJSON writes null for a nil value.
func (c Change) MarshalJSON() ([]byte, error) {
	oldValue, err := ir.MarshalValue(c.OldValue)
	if err != nil {
		return nil, fmt.Errorf("change %s: old value: %w", c.Property, err)
	}
	newValue, err := ir.MarshalValue(c.NewValue)
	if err != nil {
		return nil, fmt.Errorf("change %s: new value: %w", c.Property, err)
	}
	return json.Marshal(struct {
		Property string          `json:"property"`
		OldValue json.RawMessage `json:"oldValue"`
		NewValue json.RawMessage `json:"newValue"`
	}{c.Property, oldValue, newValue})
}

// UnmarshalJSON decodes values into the ir.Value family.
func (c *Change) UnmarshalJSON(data []byte) error {
	var raw struct {
		Property string          `json:"property"`
		OldValue json.RawMessage `json:"oldValue"`
		NewValue json.RawMessage `json:"newValue"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Property = raw.Property
	var err error
	if c.OldValue, err = decodeValue(raw.OldValue); err != nil {
		return fmt.Errorf("change %s: old value: %w", raw.Property, err)
	}
	if c.NewValue, err = decodeValue(raw.NewValue); err != nil {
		return fmt.Errorf("change %s: new value: %w", raw.Property, err)
	}
	return nil
}

func decodeValue(data json.RawMessage) (ir.Value, error) {
	if len(data) == 0 {
		return ir.Null{}, nil
	}
	return ir.UnmarshalValue(data)
}

// Canonical returns the change as plain data for canonical JSON.
func (c Change) Canonical() map[string]any {
	return map[string]any{
		"property": c.Property,
		"oldValue": orNull(c.OldValue),
		"newValue": orNull(c.NewValue),
	}
}

func orNull(v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return v
}

// Entry is an immutable audit record of one action's effect on one entity.
type Entry struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entityId"`
	Timestamp time.Time `json:"timestamp"`
	// Seq orders entries that share a timestamp.
	Seq     int64    `json:"seq"`
	Action  string   `json:"action"`
	Changes []Change `json:"changes"`
}

// Properties returns the changed property names in order.
func (e Entry) Properties() []string {
	out := make([]string, len(e.Changes))
	for i, c := range e.Changes {
		out[i] = c.Property
	}
	return out
}

func before(a, b Entry) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.ID < b.ID
}
