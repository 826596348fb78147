package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReindexFileCmd_ChunksAndUpsertsMemories(t *testing.T) {
	// Given: an initialized project with one Go source file
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	src := "package widgets\n\nfunc Greet(name string) string {\n\treturn \"hello \" + name\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "widgets.go"), []byte(src), 0o644))

	// When: reindexing that file
	cmd := newReindexFileCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"widgets.go"})

	err := cmd.Execute()

	// Then: it reports at least one upserted memory
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "reindexed=1")
	assert.NotContains(t, buf.String(), "memories_upserted=0")

	recall := newRecallCmd()
	recall.SetArgs([]string{"--mode", "lexical", "Greet"})
	recallOut := &bytes.Buffer{}
	recall.SetOut(recallOut)
	recall.SetErr(recallOut)
	require.NoError(t, recall.Execute())
	assert.Contains(t, recallOut.String(), "[code]")
}

func TestReindexFileCmd_DiffSkipsUnchangedFile(t *testing.T) {
	// Given: a file already reindexed once
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.go"), []byte("package a\n"), 0o644))

	first := newReindexFileCmd()
	first.SetArgs([]string{"--diff", "a.go"})
	require.NoError(t, first.Execute())

	// When: reindexing again with --diff and no change
	second := newReindexFileCmd()
	buf := &bytes.Buffer{}
	second.SetOut(buf)
	second.SetErr(buf)
	second.SetArgs([]string{"--diff", "a.go"})
	err := second.Execute()

	// Then: the second pass is skipped rather than reindexed
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "reindexed=0 skipped=1")
}
