package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIDToVectorKey_IsStableDecimalString(t *testing.T) {
	assert.Equal(t, "42", memoryIDToVectorKey(42))
	assert.Equal(t, "0", memoryIDToVectorKey(0))
}

func TestVectorIndexPersistsAcrossSeparateInvocations(t *testing.T) {
	// Given: a project where one process remembers a note and embeds it
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	remember := newRememberCmd()
	remember.SetArgs([]string{"vector persistence smoke test content"})
	rememberOut := &bytes.Buffer{}
	remember.SetOut(rememberOut)
	remember.SetErr(rememberOut)
	require.NoError(t, remember.Execute())

	// Then: the index file is persisted under .store/
	_, err := os.Stat(filepath.Join(tmpDir, ".store", vectorIndexFileName))
	require.NoError(t, err)

	// When: a second, independent invocation searches in vector mode
	recall := newRecallCmd()
	recall.SetArgs([]string{"--mode", "vector", "vector persistence smoke test"})
	recallOut := &bytes.Buffer{}
	recall.SetOut(recallOut)
	recall.SetErr(recallOut)
	err = recall.Execute()

	// Then: it finds the memory without re-embedding everything from scratch
	require.NoError(t, err)
	assert.NotContains(t, recallOut.String(), "no matches")
}
