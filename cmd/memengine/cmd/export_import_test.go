package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportThenImportContext_RoundTripsIntoFreshProject(t *testing.T) {
	// Given: a source project with one remembered note
	srcDir := t.TempDir()
	oldDir, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldDir) }()

	require.NoError(t, os.Chdir(srcDir))
	initSrc := newInitCmd()
	initSrc.SetArgs([]string{})
	require.NoError(t, initSrc.Execute())

	remember := newRememberCmd()
	remember.SetArgs([]string{"--kind", "note", "the deploy runbook lives in docs/runbook.md"})
	rememberOut := &bytes.Buffer{}
	remember.SetOut(rememberOut)
	remember.SetErr(rememberOut)
	require.NoError(t, remember.Execute())

	bundlePath := filepath.Join(srcDir, "notes.ctx")
	export := newExportContextCmd()
	export.SetArgs([]string{"--out", bundlePath, "--kind", "notes"})
	exportOut := &bytes.Buffer{}
	export.SetOut(exportOut)
	export.SetErr(exportOut)
	require.NoError(t, export.Execute())
	assert.Contains(t, exportOut.String(), "exported 1 memories")

	// When: importing the bundle into a second, empty project (after
	// explicitly allowing the source bundle's path, since it lives outside
	// the destination project root)
	dstDir := t.TempDir()
	require.NoError(t, os.Chdir(dstDir))
	initDst := newInitCmd()
	initDst.SetArgs([]string{})
	require.NoError(t, initDst.Execute())

	allowPath := newPolicyAllowPathCmd()
	allowPath.SetArgs([]string{bundlePath})
	allowOut := &bytes.Buffer{}
	allowPath.SetOut(allowOut)
	allowPath.SetErr(allowOut)
	require.NoError(t, allowPath.Execute())

	importCmd := newImportContextCmd()
	importCmd.SetArgs([]string{bundlePath})
	importOut := &bytes.Buffer{}
	importCmd.SetOut(importOut)
	importCmd.SetErr(importOut)
	err := importCmd.Execute()

	// Then: the memory is inserted and the checksum check passes
	require.NoError(t, err)
	assert.Contains(t, importOut.String(), "inserted=1")
	assert.Contains(t, importOut.String(), "checksums_ok=true")

	status := newStatusCmd()
	status.SetArgs([]string{"--json"})
	statusOut := &bytes.Buffer{}
	status.SetOut(statusOut)
	status.SetErr(statusOut)
	require.NoError(t, status.Execute())
	assert.Contains(t, statusOut.String(), `"memory_count": 1`)
}

func TestExportContextCmd_RejectsUnknownKind(t *testing.T) {
	// Given: an initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: exporting with an unsupported --kind
	cmd := newExportContextCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--out", filepath.Join(tmpDir, "out.ctx"), "--kind", "bogus"})

	err := cmd.Execute()

	// Then: it is rejected as invalid input
	require.Error(t, err)
	assert.Equal(t, ExitInputInvalid, exitCodeFor(err))
}
