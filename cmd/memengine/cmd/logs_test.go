package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memengine/memengine/internal/logging"
)

func TestLogsCmd_TailsEntriesFromDefaultPath(t *testing.T) {
	// Given: an initialized project with a couple of log lines already written
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	require.NoError(t, logging.EnsureLogDir(tmpDir))
	logPath := logging.DefaultLogPath(tmpDir)
	require.NoError(t, os.WriteFile(logPath,
		[]byte(`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"engine ready"}`+"\n"+
			`{"time":"2026-01-01T00:00:01Z","level":"ERROR","msg":"policy blocked egress"}`+"\n"),
		0o644))

	// When: running logs --no-color
	cmd := newLogsCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--no-color"})

	err := cmd.Execute()

	// Then: both lines are rendered
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "engine ready")
	assert.Contains(t, out, "policy blocked egress")
}

func TestLogsCmd_FiltersByLevel(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	require.NoError(t, logging.EnsureLogDir(tmpDir))
	require.NoError(t, os.WriteFile(logging.DefaultLogPath(tmpDir),
		[]byte(`{"time":"2026-01-01T00:00:00Z","level":"DEBUG","msg":"verbose detail"}`+"\n"+
			`{"time":"2026-01-01T00:00:01Z","level":"ERROR","msg":"failure"}`+"\n"),
		0o644))

	cmd := newLogsCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--no-color", "--level", "warn"})

	require.NoError(t, cmd.Execute())
	out := buf.String()
	assert.NotContains(t, out, "verbose detail")
	assert.Contains(t, out, "failure")
}

func TestLogsCmd_MissingLogFileReturnsNotFoundError(t *testing.T) {
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	cmd := newLogsCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
}
