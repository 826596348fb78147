package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCodeCmd_ScansSubdirectoryAndUpsertsMemories(t *testing.T) {
	// Given: an initialized project with a source subdirectory
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	srcDir := filepath.Join(tmpDir, "pkg")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "thing.go"),
		[]byte("package pkg\n\nfunc DoThing() int {\n\treturn 42\n}\n"), 0o644))

	// When: running index-code --path pkg
	cmd := newIndexCodeCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--path", "pkg"})

	err := cmd.Execute()

	// Then: the file under pkg/ was scanned and its chunks upserted
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "scanned=1")
	assert.NotContains(t, output, "memories_upserted=0")
}

func TestIndexCodeCmd_DiffSkipsSecondPass(t *testing.T) {
	// Given: a project already indexed once with --diff
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "lib.go"), []byte("package lib\n"), 0o644))

	first := newIndexCodeCmd()
	first.SetArgs([]string{"--diff"})
	require.NoError(t, first.Execute())

	// When: indexing again with --diff and nothing changed
	second := newIndexCodeCmd()
	buf := &bytes.Buffer{}
	second.SetOut(buf)
	second.SetErr(buf)
	second.SetArgs([]string{"--diff"})
	err := second.Execute()

	// Then: the file is reported as skipped, not reindexed
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "reindexed=0 skipped=1")
}
