package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/provenance"
)

func ids(entries []provenance.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// seedProvenance writes five entries over three days, out of order.
func seedProvenance(t *testing.T, s *Store) {
	t.Helper()
	rights := createTestEntry("e4", base+"m", day(2), 4, "UpdateRights")
	rights.Changes = []provenance.Change{{Property: "rights", OldValue: ir.Null{}, NewValue: ir.Str("http://rightsstatements.org/vocab/InC/1.0/")}}
	entries := []provenance.Entry{
		rights,
		createTestEntry("e1", base+"m", day(0), 1, "UpdateLabel"),
		createTestEntry("e3", base+"p1", day(1), 3, "UpdateLabel"),
		createTestEntry("e2", base+"m", day(1), 2, "UpdateLabel"),
		createTestEntry("e5", base+"p1", day(2), 5, "UpdateLabel"),
	}
	_, err := s.WriteProvenance(context.Background(), entries)
	require.NoError(t, err)
}

func TestReadAllProvenance_Ordered(t *testing.T) {
	s := createTestStore(t)
	seedProvenance(t, s)

	all, err := s.ReadAllProvenance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4", "e5"}, ids(all))
}

func TestReadProvenance_Empty(t *testing.T) {
	s := createTestStore(t)
	got, err := s.ReadProvenance(context.Background(), base+"nothing")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQueryProvenance_Filters(t *testing.T) {
	s := createTestStore(t)
	seedProvenance(t, s)

	tests := []struct {
		name   string
		filter ProvenanceFilter
		want   []string
	}{
		{"entity", ProvenanceFilter{EntityID: base + "p1"}, []string{"e3", "e5"}},
		{"since is inclusive", ProvenanceFilter{Since: day(1)}, []string{"e2", "e3", "e4", "e5"}},
		{"action", ProvenanceFilter{Action: "UpdateRights"}, []string{"e4"}},
		{"property", ProvenanceFilter{Property: "rights"}, []string{"e4"}},
		{"property label on m", ProvenanceFilter{EntityID: base + "m", Property: "label"}, []string{"e1", "e2"}},
		{"limit keeps newest", ProvenanceFilter{Limit: 2}, []string{"e4", "e5"}},
		{"limit with entity", ProvenanceFilter{EntityID: base + "m", Limit: 1}, []string{"e4"}},
		{"no match", ProvenanceFilter{Action: "HealEntity"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryProvenance(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}
