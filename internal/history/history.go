// Package history keeps a bounded undo/redo stack of state transitions.
//
// A Manager only stores snapshots; it never computes them. The engine
// session pushes one Entry per successful dispatch and is the only writer.
package history

import "github.com/micahchoo/biiif-web-studio-sub000/internal/vault"

// DefaultMax is the undo depth used when none is configured.
const DefaultMax = 50

// Action is the part of a dispatched action the history needs.
type Action interface {
	Type() string
}

// Entry is one undoable transition.
type Entry struct {
	Action Action
	Before *vault.State
	After  *vault.State
}

// Manager is a bounded undo/redo stack. The zero value is not usable; call New.
type Manager struct {
	undo []Entry
	redo []Entry
	max  int
}

// New returns a Manager holding at most max undo entries. A non-positive
// max selects DefaultMax.
func New(max int) *Manager {
	if max <= 0 {
		max = DefaultMax
	}
	return &Manager{max: max}
}

// Max returns the undo depth.
func (m *Manager) Max() int { return m.max }

// Push records a transition and discards the redo tail. When the undo
// stack is full the oldest entry is evicted.
func (m *Manager) Push(e Entry) {
	m.undo = append(m.undo, e)
	if over := len(m.undo) - m.max; over > 0 {
		clear(m.undo[:over])
		m.undo = m.undo[over:]
	}
	clear(m.redo)
	m.redo = m.redo[:0]
}

// Undo pops the most recent entry, moves it to the redo stack and returns
// it. The caller restores entry.Before.
func (m *Manager) Undo() (Entry, bool) {
	if len(m.undo) == 0 {
		return Entry{}, false
	}
	e := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, e)
	return e, true
}

// Redo re-applies the most recently undone entry and returns it. The
// caller restores entry.After.
func (m *Manager) Redo() (Entry, bool) {
	if len(m.redo) == 0 {
		return Entry{}, false
	}
	e := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, e)
	return e, true
}

// CanUndo reports whether an entry is available to undo.
func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }

// CanRedo reports whether an undone entry is available to redo.
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// UndoLen returns the number of undoable entries.
func (m *Manager) UndoLen() int { return len(m.undo) }

// RedoLen returns the number of redoable entries.
func (m *Manager) RedoLen() int { return len(m.redo) }

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.undo = nil
	m.redo = nil
}
