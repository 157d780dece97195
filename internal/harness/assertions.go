package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/validate"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Step, event.Op, event.Case)
		}
	}

	return buf.String()
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx    context.Context
	Engine *engine.Engine
	Store  *store.Store
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// State assertions read result.Final; provenance_count reads actx.Store and
// valid reads actx.Engine.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertChildren:
			err = assertChildren(result, assertion)
		case AssertEntity:
			err = assertEntity(result, assertion)
		case AssertInTrash:
			err = assertInTrash(result, assertion)
		case AssertAbsent:
			err = assertAbsent(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertProvenanceCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: provenance_count requires a store", i)
			} else {
				err = assertProvenanceCount(actx.Ctx, actx.Store, assertion)
			}
		case AssertValid:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: valid requires an engine", i)
			} else {
				err = assertValid(actx.Engine)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertChildren(result *Result, assertion Assertion) error {
	slot, err := ir.ParseSlot(assertion.Slot)
	if err != nil {
		return err
	}
	if result.Final == nil || !result.Final.Has(assertion.ID) {
		return &AssertionError{
			Type:     AssertChildren,
			Expected: fmt.Sprintf("live entity %s", assertion.ID),
			Actual:   "not found",
		}
	}
	got := result.Final.ChildrenIn(assertion.ID, slot)
	want := assertion.Children
	if want == nil {
		want = []string{}
	}
	if got == nil {
		got = []string{}
	}
	if !reflect.DeepEqual(got, want) {
		return &AssertionError{
			Type:     AssertChildren,
			Expected: fmt.Sprintf("%s %s = %v", assertion.ID, slot, want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertEntity compares the expected fields against the entity's own
// fields. Both sides go through JSON so YAML and Go numbers agree.
// Only the keys present in Expect are checked.
func assertEntity(result *Result, assertion Assertion) error {
	if result.Final == nil {
		return fmt.Errorf("entity assertion requires a final state")
	}
	e, ok := result.Final.Entity(assertion.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertEntity,
			Expected: fmt.Sprintf("live entity %s", assertion.ID),
			Actual:   "not found",
		}
	}

	actual, err := jsonNormalize(ir.EntityFields(e))
	if err != nil {
		return fmt.Errorf("entity %s: %w", assertion.ID, err)
	}
	expected, err := jsonNormalize(assertion.Expect)
	if err != nil {
		return fmt.Errorf("entity assertion expect: %w", err)
	}
	actualMap := actual.(map[string]any)

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := expected.(map[string]any)[key]
		got, exists := actualMap[key]
		if !exists {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("field %q = %v", key, want),
				Actual:   fmt.Sprintf("field %q not set", key),
			}
		}
		if !reflect.DeepEqual(got, want) {
			return &AssertionError{
				Type:     AssertEntity,
				Expected: fmt.Sprintf("field %q = %v", key, want),
				Actual:   fmt.Sprintf("field %q = %v", key, got),
			}
		}
	}
	return nil
}

func jsonNormalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func assertInTrash(result *Result, assertion Assertion) error {
	if result.Final == nil || !result.Final.IsTrashed(assertion.ID) {
		return &AssertionError{
			Type:     AssertInTrash,
			Expected: fmt.Sprintf("%s in trash", assertion.ID),
			Actual:   "not trashed",
		}
	}
	return nil
}

func assertAbsent(result *Result, assertion Assertion) error {
	if result.Final == nil {
		return nil
	}
	switch {
	case result.Final.Has(assertion.ID):
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("%s absent", assertion.ID),
			Actual:   "live entity",
		}
	case result.Final.IsTrashed(assertion.ID):
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("%s absent", assertion.ID),
			Actual:   "in trash",
		}
	}
	return nil
}

// assertTraceOrder checks that the successful ops contain the expected
// actions as a subsequence. Intervening ops are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Actions) {
			break
		}
		if event.Case == CaseSuccess && event.Op == assertion.Actions[next] {
			next++
		}
	}

	if next < len(assertion.Actions) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("successful ops in order: %v", assertion.Actions),
			Actual:   fmt.Sprintf("%s (position %d) not found after %v", assertion.Actions[next], next, assertion.Actions[:next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks that the op succeeded exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Case == CaseSuccess && event.Op == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d successful %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertProvenanceCount counts the stored provenance entries of an entity,
// optionally narrowed to one property.
func assertProvenanceCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	entries, err := st.QueryProvenance(ctx, store.ProvenanceFilter{
		EntityID: assertion.ID,
		Property: assertion.Property,
	})
	if err != nil {
		return fmt.Errorf("provenance_count: %w", err)
	}
	if len(entries) != assertion.Count {
		what := assertion.ID
		if assertion.Property != "" {
			what += " " + assertion.Property
		}
		actions := make([]string, len(entries))
		for i, e := range entries {
			actions[i] = e.Action
		}
		return &AssertionError{
			Type:     AssertProvenanceCount,
			Expected: fmt.Sprintf("%d entries for %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d entries %v", len(entries), actions),
		}
	}
	return nil
}

func assertValid(eng *engine.Engine) error {
	report := eng.Validate()
	ids := make([]string, 0, len(report))
	for id := range report {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var problems []string
	for _, id := range ids {
		for _, issue := range validate.Errors(report[id]) {
			problems = append(problems, fmt.Sprintf("%s: %s", id, issue.Error()))
		}
	}
	if len(problems) > 0 {
		return &AssertionError{
			Type:     AssertValid,
			Expected: "no validation errors",
			Actual:   strings.Join(problems, "; "),
		}
	}
	return nil
}
