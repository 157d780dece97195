package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/rules"
)

func TestRulesText(t *testing.T) {
	out, _, err := runCommand(t, &RootOptions{Format: "text"}, NewRulesCommand)
	require.NoError(t, err)
	assert.Contains(t, out, "Behaviors:")
	assert.Contains(t, out, "paged")
	assert.Contains(t, out, "Disjoint sets:")
	assert.Contains(t, out, "Hierarchy:")
	assert.Contains(t, out, "Manifest.items -> Canvas")
}

func TestRulesJSONMatchesTable(t *testing.T) {
	out, _, err := runCommand(t, &RootOptions{Format: "json"}, NewRulesCommand)
	require.NoError(t, err)

	var resp struct {
		Data RulesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	table := rules.Default()
	assert.Len(t, resp.Data.Behaviors, len(table.Behaviors()))
	assert.Equal(t, table.DisjointSets(), resp.Data.DisjointSets)
	assert.Contains(t, resp.Data.Hierarchy, SlotRule{
		Parent:  ir.KindManifest,
		Slot:    ir.SlotItems,
		Allowed: table.AllowedChildren(ir.KindManifest, ir.SlotItems),
		Limit:   table.SlotLimit(ir.KindManifest, ir.SlotItems),
	})
}

func TestRulesKindFilter(t *testing.T) {
	out, _, err := runCommand(t, &RootOptions{Format: "json"}, NewRulesCommand, "--kind", "canvas")
	require.NoError(t, err)

	var resp struct {
		Data RulesResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Data.Behaviors)
	for _, b := range resp.Data.Behaviors {
		assert.Contains(t, b.ValidFor, ir.KindCanvas, b.Token)
	}
	for _, r := range resp.Data.Hierarchy {
		assert.Equal(t, ir.KindCanvas, r.Parent)
	}
}

func TestRulesErrors(t *testing.T) {
	_, _, err := runCommand(t, &RootOptions{Format: "text"}, NewRulesCommand, "--kind", "Choice")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = runCommand(t, &RootOptions{Format: "text", Rules: filepath.Join(t.TempDir(), "x.cue")}, NewRulesCommand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)

	bad := writeFile(t, t.TempDir(), "bad.cue", "behaviors: [")
	_, _, err = runCommand(t, &RootOptions{Format: "text", Rules: bad}, NewRulesCommand)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeRulesFailed)
}
