package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_ReportsEmptyStoreAfterInit(t *testing.T) {
	// Given: a freshly initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: running status --json
	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--json"})

	err := cmd.Execute()

	// Then: it reports zero memories and an active network guard
	require.NoError(t, err)
	var report statusReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 0, report.MemoryCount)
	assert.Equal(t, "blocked", report.OfflineProof.PolicyNetworkEgress)
}

func TestStatusCmd_PlainOutputListsFields(t *testing.T) {
	// Given: a freshly initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: running status without --json
	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	// Then: the plain-text report names every documented field
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "project root:")
	assert.Contains(t, output, "memories:")
	assert.Contains(t, output, "network egress:")
	assert.Contains(t, output, "Index Status:")
	assert.Contains(t, output, "Embedder:")
}

func TestStatusCmd_JSONIncludesIndexPanel(t *testing.T) {
	// Given: a freshly initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: running status --json
	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())

	// Then: the index panel reports zero files/chunks and a ready embedder
	var report statusReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 0, report.Index.TotalFiles)
	assert.Equal(t, 0, report.Index.TotalChunks)
	assert.Equal(t, "static", report.Index.EmbedderType)
	assert.Equal(t, "ready", report.Index.EmbedderStatus)
}
