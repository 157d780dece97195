package engine

import (
	"log/slog"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/clock"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/history"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/trash"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/validate"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

// Engine is one editing session: the current State, its undo history and
// the provenance log.
//
// Every mutation goes through Dispatch, which is the only writer of the
// history. Not safe for concurrent use; a session has exactly one editor.
//
// INVARIANTS:
//   - State() only changes through Dispatch, Undo, Redo, Load and the trash
//     maintenance calls
//   - a failed Dispatch changes nothing: not the state, not the history,
//     not the provenance log
type Engine struct {
	dispatcher *Dispatcher
	state      *vault.State
	history    *history.Manager
	provenance *provenance.Service
	logger     *slog.Logger

	clock         clock.Clock
	ids           clock.IDGenerator
	rules         *rules.Table
	maxHistory    int
	retentionDays int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxHistory sets the undo depth.
//
// Default: 50 (history.DefaultMax)
func WithMaxHistory(max int) Option {
	return func(e *Engine) { e.maxHistory = max }
}

// WithClock sets the time source for trash timestamps and provenance entries.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator sets the provenance entry ID source.
func WithIDGenerator(g clock.IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRules replaces the default rule table.
func WithRules(t *rules.Table) Option {
	return func(e *Engine) { e.rules = t }
}

// WithRetentionDays sets the age after which CleanupTrash purges entries.
//
// Default: 30 (trash.DefaultRetentionDays)
func WithRetentionDays(days int) Option {
	return func(e *Engine) { e.retentionDays = days }
}

// New starts a session on initial. A nil initial starts from an empty store.
func New(initial *vault.State, opts ...Option) *Engine {
	if initial == nil {
		initial = vault.Empty()
	}
	e := &Engine{
		state:         initial,
		clock:         clock.System{},
		ids:           clock.UUIDv7Generator{},
		maxHistory:    history.DefaultMax,
		retentionDays: trash.DefaultRetentionDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.dispatcher = NewDispatcher(validate.New(e.rules), e.clock)
	e.history = history.New(e.maxHistory)
	e.provenance = provenance.New(provenance.WithClock(e.clock), provenance.WithIDGenerator(e.ids))
	return e
}

// Dispatch applies a to the current state. On success the previous state
// is pushed onto the undo history and every change is recorded in the
// provenance log. A successful no-op records nothing.
func (e *Engine) Dispatch(a Action) Result {
	before := e.state
	res := e.dispatcher.Dispatch(before, a)
	name := ""
	if a != nil {
		name = a.Type()
	}
	if !res.Success {
		e.logger.Warn("action rejected",
			"action", name,
			"code", CodeOf(res.Err),
			"error", res.Err,
		)
		return res
	}

	for _, ec := range res.Changes {
		e.provenance.RecordUpdate(ec.EntityID, ec.Changes, name)
	}
	if res.State != before {
		e.history.Push(history.Entry{Action: a, Before: before, After: res.State})
		e.state = res.State
	}
	for _, note := range res.Notes {
		e.logger.Debug("entity healed", "action", name, "fix", note)
	}
	for _, w := range res.Warnings {
		e.logger.Debug("action warning",
			"action", name,
			"entity", w.EntityID,
			"code", w.Code,
			"message", w.Message,
		)
	}
	e.logger.Info("action applied",
		"action", name,
		"entities", len(res.Changes),
		"warnings", len(res.Warnings),
	)
	return res
}

// DispatchAll applies actions in order and returns one Result per action.
// A rejected action does not stop the ones after it.
func (e *Engine) DispatchAll(actions []Action) []Result {
	results := make([]Result, len(actions))
	for i, a := range actions {
		results[i] = e.Dispatch(a)
	}
	return results
}

// State returns the current snapshot.
func (e *Engine) State() *vault.State { return e.state }

// Undo steps back one action. It returns false when there is nothing to undo.
func (e *Engine) Undo() (*vault.State, bool) {
	entry, ok := e.history.Undo()
	if !ok {
		return e.state, false
	}
	e.state = entry.Before
	e.logger.Debug("undo", "action", entry.Action.Type())
	return e.state, true
}

// Redo re-applies the last undone action. It returns false when there is
// nothing to redo.
func (e *Engine) Redo() (*vault.State, bool) {
	entry, ok := e.history.Redo()
	if !ok {
		return e.state, false
	}
	e.state = entry.After
	e.logger.Debug("redo", "action", entry.Action.Type())
	return e.state, true
}

// CanUndo reports whether Undo would succeed.
func (e *Engine) CanUndo() bool { return e.history.CanUndo() }

// CanRedo reports whether Redo would succeed.
func (e *Engine) CanRedo() bool { return e.history.CanRedo() }

// History exposes the undo stack for inspection.
func (e *Engine) History() *history.Manager { return e.history }

// Load replaces the current state and clears the undo history. The
// provenance log is kept.
func (e *Engine) Load(s *vault.State) {
	if s == nil {
		s = vault.Empty()
	}
	e.state = s
	e.history.Clear()
	e.logger.Info("state loaded", "root", s.RootID(), "entities", s.Len(), "trash", s.TrashLen())
}

// LoadDocument normalizes a document tree and loads it. Normalization
// warnings are logged and returned.
func (e *Engine) LoadDocument(root *ir.Node) []vault.Warning {
	s := vault.Normalize(root)
	warnings := s.Warnings()
	for _, w := range warnings {
		e.logger.Warn("normalization warning", "entity", w.EntityID, "code", w.Code, "message", w.Message)
	}
	e.Load(s)
	return warnings
}

// EmptyTrash purges every trashed entry and returns the purged IDs.
// Purging is not an edit and cannot be undone: every history snapshot
// still holds the purged entries, so a purge clears the history.
func (e *Engine) EmptyTrash() []string {
	next, purged := trash.EmptyTrash(e.state)
	e.state = next
	if len(purged) > 0 {
		e.history.Clear()
		e.logger.Info("trash emptied", "purged", len(purged))
	}
	return purged
}

// CleanupTrash purges entries older than the retention window and returns
// the purged IDs. Like EmptyTrash, a purge clears the history.
func (e *Engine) CleanupTrash() []string {
	next, purged := trash.Cleanup(e.state, e.retentionDays, e.clock.Now())
	e.state = next
	if len(purged) > 0 {
		e.history.Clear()
		e.logger.Info("trash cleaned up", "purged", len(purged), "retention_days", e.retentionDays)
	}
	return purged
}

// TrashStats summarizes the trash of the current state.
func (e *Engine) TrashStats() trash.Stats {
	return trash.GetStats(e.state, e.clock.Now())
}

// Validate runs tree validation over the current state.
func (e *Engine) Validate() map[string][]validate.Issue {
	return e.dispatcher.Validator().ValidateState(e.state)
}

// Provenance returns the session's provenance log.
func (e *Engine) Provenance() *provenance.Service { return e.provenance }

// Clock returns the clock stamping provenance and trash entries.
func (e *Engine) Clock() clock.Clock { return e.clock }

// Validator returns the validator actions are checked with.
func (e *Engine) Validator() *validate.Validator { return e.dispatcher.Validator() }
