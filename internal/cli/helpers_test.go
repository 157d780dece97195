package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const (
	archiveID = "https://example.org/iiif/archive"
	psalterID = "https://example.org/iiif/psalter"
	hoursID   = "https://example.org/iiif/hours"
)

var (
	archivePath  = filepath.Join("..", "harness", "testdata", "documents", "archive.json")
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
)

// runCommand executes a subcommand built by newCmd and returns stdout,
// stderr and the error.
func runCommand(t *testing.T, opts *RootOptions, newCmd func(*RootOptions) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
