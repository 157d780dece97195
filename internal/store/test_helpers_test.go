package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/testutil"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

const base = "https://example.org/iiif/"

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestState builds a manifest with the given canvases.
func createTestState(t *testing.T, title string, canvases ...string) *vault.State {
	t.Helper()
	items := make([]*ir.Node, len(canvases))
	for i, name := range canvases {
		items[i] = ir.NewNode(&ir.Canvas{
			Base:     ir.Base{ID: base + name, Label: ir.LanguageMap{"none": {name}}},
			Width:    1200,
			Height:   1800,
			Duration: 12.5,
		})
	}
	m := ir.NewNode(&ir.Manifest{Base: ir.Base{ID: base + "m", Label: ir.LanguageMap{"en": {title}}}}, items...)
	s := vault.Normalize(m)
	if w := s.Warnings(); len(w) > 0 {
		t.Fatalf("fixture warnings: %v", w)
	}
	return s
}

// createTestEntry creates a provenance entry with one label change.
func createTestEntry(id, entityID string, at time.Time, seq int64, action string) provenance.Entry {
	return provenance.Entry{
		ID:        id,
		EntityID:  entityID,
		Timestamp: at,
		Seq:       seq,
		Action:    action,
		Changes: []provenance.Change{{
			Property: "label",
			OldValue: ir.Null{},
			NewValue: ir.ValueOfLanguageMap(ir.LanguageMap{"en": {"title " + id}}),
		}},
	}
}

func day(n int) time.Time { return testutil.Epoch.Add(time.Duration(n) * 24 * time.Hour) }
