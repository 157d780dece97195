package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

type op string

func (o op) Type() string { return string(o) }

// chain returns n+1 distinct snapshots and the entries linking them.
func chain(n int) ([]*vault.State, []Entry) {
	states := make([]*vault.State, n+1)
	for i := range states {
		states[i] = vault.Empty()
	}
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{Action: op("step"), Before: states[i], After: states[i+1]}
	}
	return states, entries
}

func TestUndoRedoRoundTrip(t *testing.T) {
	states, entries := chain(1)
	m := New(0)
	assert.Equal(t, DefaultMax, m.Max())
	assert.False(t, m.CanUndo())
	assert.False(t, m.CanRedo())

	m.Push(entries[0])
	require.True(t, m.CanUndo())

	e, ok := m.Undo()
	require.True(t, ok)
	assert.Same(t, states[0], e.Before)
	assert.True(t, m.CanRedo())
	assert.False(t, m.CanUndo())

	e, ok = m.Redo()
	require.True(t, ok)
	assert.Same(t, states[1], e.After)
	assert.False(t, m.CanRedo())
	assert.True(t, m.CanUndo())
}

func TestEmptyStacks(t *testing.T) {
	m := New(3)
	_, ok := m.Undo()
	assert.False(t, ok)
	_, ok = m.Redo()
	assert.False(t, ok)
}

func TestPushClearsRedo(t *testing.T) {
	_, entries := chain(3)
	m := New(10)
	m.Push(entries[0])
	m.Push(entries[1])
	m.Undo()
	require.True(t, m.CanRedo())

	m.Push(entries[2])
	assert.False(t, m.CanRedo())
	assert.Equal(t, 2, m.UndoLen())
	assert.Equal(t, 0, m.RedoLen())
}

func TestEvictsOldestFirst(t *testing.T) {
	states, entries := chain(5)
	m := New(3)
	for _, e := range entries {
		m.Push(e)
	}
	assert.Equal(t, 3, m.UndoLen())

	var befores []*vault.State
	for m.CanUndo() {
		e, _ := m.Undo()
		befores = append(befores, e.Before)
	}
	require.Len(t, befores, 3)
	assert.Same(t, states[4], befores[0], "most recent survives")
	assert.Same(t, states[2], befores[2], "two oldest evicted")
}

func TestMultiStepUndoRedo(t *testing.T) {
	states, entries := chain(3)
	m := New(0)
	for _, e := range entries {
		m.Push(e)
	}
	m.Undo()
	m.Undo()
	e, _ := m.Redo()
	assert.Same(t, states[2], e.After)
	assert.Equal(t, 2, m.UndoLen())
	assert.Equal(t, 1, m.RedoLen())
}

func TestClear(t *testing.T) {
	_, entries := chain(2)
	m := New(0)
	m.Push(entries[0])
	m.Push(entries[1])
	m.Undo()
	m.Clear()
	assert.False(t, m.CanUndo())
	assert.False(t, m.CanRedo())
}
