package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/engine"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/testutil"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// Harness is the scenario execution context.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.FixedClock
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Decode and normalize the document
// 2. Execute setup steps (all must succeed)
// 3. Execute flow steps with expect validation
// 4. Checkpoint state and provenance into the store
// 5. Evaluate assertions
//
// An error is returned only when the scenario cannot be executed at all
// (unreadable document, undecodable action, failed setup). Expectation and
// assertion failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithConfig(scenario, Config{})
}

// Config customizes a scenario run.
type Config struct {
	// Logger receives engine logs. Nil discards them.
	Logger *slog.Logger
	// Rules replaces the built-in rule tables when set.
	Rules *rules.Table
}

// RunWithConfig is Run with a custom logger and rule table.
func RunWithConfig(scenario *Scenario, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	data, err := os.ReadFile(scenario.Document)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	root, err := ir.DecodeDocument(data)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clk := testutil.NewFixedClock(testutil.Epoch)
	opts := []engine.Option{
		engine.WithClock(clk),
		engine.WithIDGenerator(testutil.NewSequentialIDs("prov")),
		engine.WithLogger(logger),
	}
	if cfg.Rules != nil {
		opts = append(opts, engine.WithRules(cfg.Rules))
	}
	if scenario.MaxHistory > 0 {
		opts = append(opts, engine.WithMaxHistory(scenario.MaxHistory))
	}
	if scenario.RetentionDays > 0 {
		opts = append(opts, engine.WithRetentionDays(scenario.RetentionDays))
	}

	h := &Harness{
		store:  st,
		engine: engine.New(vault.Normalize(root), opts...),
		clock:  clk,
		logger: logger,
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeSetup(scenario.Setup); err != nil {
		return nil, err
	}
	if err := h.executeFlow(scenario.Flow, result); err != nil {
		return nil, err
	}

	if _, err := st.Checkpoint(ctx, h.engine.State(), h.engine.Provenance(), clk); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	result.Final = h.engine.State()

	actx := &AssertionContext{Ctx: ctx, Engine: h.engine, Store: st}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSetup runs setup steps. Any step that does not succeed aborts the
// scenario.
func (h *Harness) executeSetup(setup []Step) error {
	for i, step := range setup {
		if step.AdvanceDays > 0 {
			h.clock.AdvanceDays(step.AdvanceDays)
			continue
		}
		ev, msg, err := h.execute(step)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if ev.Case != CaseSuccess {
			return fmt.Errorf("setup[%d] %s: %s %s", i, ev.Op, ev.Case, msg)
		}
	}
	return nil
}

// executeFlow runs flow steps, records the trace and checks expect clauses.
func (h *Harness) executeFlow(flow []Step, result *Result) error {
	for i, step := range flow {
		if step.AdvanceDays > 0 {
			h.clock.AdvanceDays(step.AdvanceDays)
			continue
		}
		ev, msg, err := h.execute(step)
		if err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		ev.Step = i
		result.AddTrace(ev)

		want := CaseSuccess
		if step.Expect != nil {
			want = step.Expect.Case
		}
		if ev.Case != want {
			detail := ""
			if msg != "" {
				detail = ": " + msg
			}
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %s%s", i, ev.Op, want, ev.Case, detail))
			continue
		}
		if step.Expect != nil && step.Expect.Warnings != nil && *step.Expect.Warnings != ev.Warnings {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %d warning(s), got %d", i, ev.Op, *step.Expect.Warnings, ev.Warnings))
		}
	}
	return nil
}

// execute runs one step. It returns the trace event and, for rejected
// actions, the error message.
func (h *Harness) execute(step Step) (TraceEvent, string, error) {
	switch step.Do {
	case DoUndo:
		_, ok := h.engine.Undo()
		return TraceEvent{Op: DoUndo, Case: okCase(ok)}, "", nil
	case DoRedo:
		_, ok := h.engine.Redo()
		return TraceEvent{Op: DoRedo, Case: okCase(ok)}, "", nil
	case DoEmptyTrash:
		return TraceEvent{Op: DoEmptyTrash, Case: CaseSuccess, Purged: h.engine.EmptyTrash()}, "", nil
	case DoCleanupTrash:
		return TraceEvent{Op: DoCleanupTrash, Case: CaseSuccess, Purged: h.engine.CleanupTrash()}, "", nil
	}

	body, err := json.Marshal(step.Action)
	if err != nil {
		return TraceEvent{}, "", fmt.Errorf("encode action: %w", err)
	}
	a, err := engine.UnmarshalAction(body)
	if err != nil {
		return TraceEvent{}, "", err
	}

	res := h.engine.Dispatch(a)
	ev := TraceEvent{Op: a.Type(), Warnings: len(res.Warnings)}
	if !res.Success {
		ev.Case = string(engine.CodeOf(res.Err))
		return ev, res.Err.Error(), nil
	}
	ev.Case = CaseSuccess
	for _, ec := range res.Changes {
		if ev.Changes == nil {
			ev.Changes = make(map[string][]string)
		}
		for _, c := range ec.Changes {
			ev.Changes[ec.EntityID] = append(ev.Changes[ec.EntityID], c.Property)
		}
	}
	return ev, "", nil
}

func okCase(ok bool) string {
	if ok {
		return CaseSuccess
	}
	return CaseEmpty
}
