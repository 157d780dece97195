package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "iiifvault", cmd.Use)
	assert.Contains(t, cmd.Long, "IIIF Presentation 3")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "normalize", "apply", "replay", "history", "trash", "rules", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	rulesFlag := cmd.PersistentFlags().Lookup("rules")
	require.NotNil(t, rulesFlag)
	assert.Equal(t, "", rulesFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flag    string
		def     string
	}{
		{"normalize", "out", ""},
		{"normalize", "record", "false"},
		{"apply", "db", ""},
		{"apply", "resume", "false"},
		{"apply", "out", ""},
		{"replay", "runs", "2"},
		{"replay", "at", ""},
		{"history", "entity", ""},
		{"history", "since", ""},
		{"history", "action", ""},
		{"history", "property", ""},
		{"history", "limit", "0"},
		{"history", "snapshots", "false"},
		{"trash", "cleanup", "false"},
		{"trash", "empty", "false"},
		{"trash", "retention-days", "30"},
		{"rules", "kind", ""},
		{"test", "update", "false"},
		{"test", "filter", ""},
		{"test", "golden", ""},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.flag, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			f := sub.Flags().Lookup(tt.flag)
			require.NotNil(t, f)
			assert.Equal(t, tt.def, f.DefValue)
		})
	}
}

func TestOutFlagShorthand(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"normalize", "apply"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, "o", sub.Flags().Lookup("out").Shorthand, name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "rules"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVerboseLoggerWritesToStderr(t *testing.T) {
	cmd := NewRootCommand()
	errBuf := &bytes.Buffer{}
	cmd.SetErr(errBuf)

	newLogger(&RootOptions{Verbose: true}, cmd).Debug("action applied", "action", "UpdateLabel")
	assert.Contains(t, errBuf.String(), "action=UpdateLabel")

	errBuf.Reset()
	newLogger(&RootOptions{}, cmd).Info("action applied")
	assert.Empty(t, errBuf.String())
}
