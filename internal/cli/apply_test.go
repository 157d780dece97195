package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micahchoo/biiif-web-studio-sub000/internal/ir"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/store"
	"github.com/micahchoo/biiif-web-studio-sub000/internal/vault"
)

const editScript = `actions:
  - type: UpdateLabel
    id: "https://example.org/iiif/psalter"
    label:
      en: ["Psalter (revised)"]
  - type: MoveToTrash
    id: "https://example.org/iiif/h1"
`

const mixedScript = `actions:
  - type: UpdateLabel
    id: "https://example.org/iiif/psalter"
    label:
      en: ["Psalter (revised)"]
  - type: ReorderChildren
    parentId: "https://example.org/iiif/psalter"
    order: ["https://example.org/iiif/p1"]
  - type: MoveToTrash
    id: "https://example.org/iiif/h1"
`

const restoreScript = `actions:
  - type: RestoreFromTrash
    id: "https://example.org/iiif/h1"
`

func TestApplyText(t *testing.T) {
	script := writeFile(t, t.TempDir(), "edits.yaml", editScript)

	out, _, err := runCommand(t, &RootOptions{Format: "text"}, NewApplyCommand, archivePath, script)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ [0] UpdateLabel")
	assert.Contains(t, out, "✓ [1] MoveToTrash")
	assert.Contains(t, out, "Applied 2, rejected 0")
	assert.Contains(t, out, "13 entities, 1 in trash")
}

func TestApplyRejectedActionsExitOne(t *testing.T) {
	script := writeFile(t, t.TempDir(), "edits.yaml", mixedScript)

	out, _, err := runCommand(t, &RootOptions{Format: "json"}, NewApplyCommand, archivePath, script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string      `json:"status"`
		Data   ApplyResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeActionRejected, resp.Error.Code)

	assert.Equal(t, 2, resp.Data.Applied)
	assert.Equal(t, 1, resp.Data.Rejected)
	require.Len(t, resp.Data.Outcomes, 3)
	assert.True(t, resp.Data.Outcomes[0].Success)
	assert.Equal(t, []string{psalterID}, resp.Data.Outcomes[0].Entities)
	assert.False(t, resp.Data.Outcomes[1].Success)
	assert.Equal(t, string(ir.ErrInvalidShape), resp.Data.Outcomes[1].Code)
	assert.True(t, resp.Data.Outcomes[2].Success)
}

func TestApplyWritesDocument(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "edits.yaml", editScript)
	outPath := filepath.Join(dir, "edited.json")

	_, _, err := runCommand(t, &RootOptions{Format: "text"}, NewApplyCommand, archivePath, script, "--out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	root, err := ir.DecodeDocument(data)
	require.NoError(t, err)
	s := vault.Normalize(root)
	assert.False(t, s.Has("https://example.org/iiif/h1"))
	e, ok := s.Entity(psalterID)
	require.True(t, ok)
	assert.Equal(t, ir.LanguageMap{"en": {"Psalter (revised)"}}, e.Common().Label)
}

func TestApplyCheckpointAndResume(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "session.db")
	edits := writeFile(t, dir, "edits.yaml", editScript)
	restore := writeFile(t, dir, "restore.yaml", restoreScript)

	out, _, err := runCommand(t, &RootOptions{Format: "text"}, NewApplyCommand, archivePath, edits, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Checkpointed snapshot 1")

	out, _, err = runCommand(t, &RootOptions{Format: "json"}, NewApplyCommand, restore, "--db", dbPath, "--resume")
	require.NoError(t, err)
	var resp struct {
		Data ApplyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Applied)
	assert.Equal(t, 16, resp.Data.Entities)
	assert.Equal(t, 0, resp.Data.Trash)
	assert.Equal(t, int64(2), resp.Data.Snapshot)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	snaps, err := st.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[0].TrashCount)
	assert.Equal(t, 0, snaps[1].TrashCount)

	// The resumed session keeps the earlier log and appends to it.
	entries, err := st.ReadProvenance(ctx, "https://example.org/iiif/h1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "MoveToTrash", entries[0].Action)
	assert.Equal(t, "RestoreFromTrash", entries[1].Action)
	assert.Less(t, entries[0].Seq, entries[1].Seq)
}

func TestApplyArgumentErrors(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "edits.yaml", editScript)
	emptyDB := filepath.Join(dir, "empty.db")
	st, err := store.Open(emptyDB)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"resume without db", []string{script, "--resume"}, ErrCodeGeneric},
		{"resume with document", []string{archivePath, script, "--resume", "--db", emptyDB}, ErrCodeGeneric},
		{"script only", []string{script}, ErrCodeGeneric},
		{"resume from missing db", []string{script, "--resume", "--db", filepath.Join(dir, "missing.db")}, ErrCodeNotFound},
		{"resume from empty db", []string{script, "--resume", "--db", emptyDB}, ErrCodeNoSnapshot},
		{"malformed script", []string{archivePath, writeFile(t, dir, "bad.yaml", "actions:\n  - type: Explode\n")}, ErrCodeScriptFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := runCommand(t, &RootOptions{Format: "json"}, NewApplyCommand, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
