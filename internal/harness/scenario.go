package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
)

// Scenario defines a conformance scenario.
// A scenario loads a IIIF document, runs a flow of actions and session
// operations through the engine, and asserts on the trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is the IIIF Presentation 3 JSON file the session starts from.
	// Relative paths are resolved against the scenario file's directory.
	Document string `yaml:"document"`

	// Setup steps run before the flow and must all succeed. They are not
	// part of the trace.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the traced sequence of steps.
	Flow []Step `yaml:"flow"`

	// Assertions validate the trace and final state.
	Assertions []Assertion `yaml:"assertions"`

	// MaxHistory overrides the undo depth (default 50).
	MaxHistory int `yaml:"max_history,omitempty"`

	// RetentionDays overrides the trash retention window (default 30).
	RetentionDays int `yaml:"retention_days,omitempty"`
}

// Step is one flow entry. Exactly one of Action, Do or AdvanceDays is set.
type Step struct {
	// Action is an action envelope ({type: UpdateLabel, id: ..., ...}).
	Action map[string]any `yaml:"action,omitempty"`

	// Do names a session operation: undo, redo, empty_trash, cleanup_trash.
	Do string `yaml:"do,omitempty"`

	// AdvanceDays moves the scenario clock forward.
	AdvanceDays int `yaml:"advance_days,omitempty"`

	// Expect checks the step outcome. Nil means the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected step outcome.
type ExpectClause struct {
	// Case is "Success" or an error code such as "InvalidShape". For undo
	// and redo, "Empty" means there was nothing to step over.
	Case string `yaml:"case"`

	// Warnings, when set, is the exact number of warnings reported.
	Warnings *int `yaml:"warnings,omitempty"`
}

// Session operations accepted in Step.Do.
const (
	DoUndo         = "undo"
	DoRedo         = "redo"
	DoEmptyTrash   = "empty_trash"
	DoCleanupTrash = "cleanup_trash"
)

// Step outcome cases that are not error codes.
const (
	CaseSuccess = "Success"
	CaseEmpty   = "Empty"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type; see the Assert* constants.
	Type string `yaml:"type"`

	// ID is the entity under test (children, entity, in_trash, absent,
	// provenance_count).
	ID string `yaml:"id,omitempty"`

	// Slot selects the child list for children. Empty means items.
	Slot string `yaml:"slot,omitempty"`

	// Children is the expected ordered child list (children).
	Children []string `yaml:"children,omitempty"`

	// Expect holds expected entity fields (entity). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Action is an op name (trace_count).
	Action string `yaml:"action,omitempty"`

	// Property narrows provenance_count to one property.
	Property string `yaml:"property,omitempty"`

	// Count is the expected number of occurrences (trace_count,
	// provenance_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected order of successful ops (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertChildren        = "children"
	AssertEntity          = "entity"
	AssertInTrash         = "in_trash"
	AssertAbsent          = "absent"
	AssertProvenanceCount = "provenance_count"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertValid           = "valid"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// The document path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) {
		scenario.Document = filepath.Join(filepath.Dir(path), scenario.Document)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Document == "" {
		return fmt.Errorf("document is required")
	}
	if _, err := os.Stat(s.Document); os.IsNotExist(err) {
		return fmt.Errorf("document not found: %s", s.Document)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.Action != nil {
		set++
		typ, _ := step.Action["type"].(string)
		if typ == "" {
			return fmt.Errorf("action.type is required")
		}
		if !isActionType(typ) {
			return fmt.Errorf("unknown action type %q", typ)
		}
	}
	if step.Do != "" {
		set++
		switch step.Do {
		case DoUndo, DoRedo, DoEmptyTrash, DoCleanupTrash:
		default:
			return fmt.Errorf("unknown operation %q", step.Do)
		}
	}
	if step.AdvanceDays != 0 {
		set++
		if step.AdvanceDays < 0 {
			return fmt.Errorf("advance_days must be positive")
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of action, do, advance_days is required")
	}
	if step.Expect != nil && step.Expect.Case == "" {
		return fmt.Errorf("expect: case is required")
	}
	return nil
}

func isActionType(name string) bool {
	for _, t := range engine.ActionTypes() {
		if t == name {
			return true
		}
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertChildren, AssertInTrash, AssertAbsent, AssertProvenanceCount:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
	case AssertEntity:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for entity", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for entity", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
	case AssertValid:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	return nil
}
