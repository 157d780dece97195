// Package harness runs conformance scenarios against the engine.
//
// A scenario loads a IIIF Presentation 3 document, replays a flow of
// actions and session operations through engine.Engine, and validates the
// trace and the final state as an executable contract test.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: reorder_and_undo
//	description: "What this scenario validates"
//	document: ../documents/archive.json
//	setup:
//	  - action: {type: UpdateLabel, id: "https://...", label: {en: [Psalter]}}
//	flow:
//	  - action: {type: ReorderChildren, parentId: "https://...", slot: items, order: [...]}
//	  - action: {type: ReorderChildren, parentId: "https://...", slot: items, order: [...]}
//	    expect: {case: InvalidShape}
//	  - do: undo
//	  - advance_days: 31
//	  - do: cleanup_trash
//	assertions:
//	  - type: children
//	    id: "https://..."
//	    children: [...]
//	  - type: provenance_count
//	    id: "https://..."
//	    count: 1
//
// A step without expect must succeed. Undo and redo report the case
// "Empty" when there is nothing to step over.
//
// # Assertion Types
//
//   - children: the ordered child list of an entity (optionally per slot)
//   - entity: a subset match on an entity's fields
//   - in_trash: the entity sits in the trash
//   - absent: the entity is neither live nor trashed
//   - provenance_count: stored provenance entries for an entity
//   - trace_order: successful ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - valid: the final state has no error-level validation issues
//
// # Deterministic Testing
//
// Every scenario runs with a fixed clock starting at testutil.Epoch,
// sequential provenance IDs and a fresh in-memory SQLite store, so traces
// are identical across runs and can be compared against golden files in
// testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/reorder_and_undo.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        fmt.Println(msg)
//	    }
//	}
package harness
