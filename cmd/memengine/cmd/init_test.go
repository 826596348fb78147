package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCmd_CreatesStoreDirectory(t *testing.T) {
	// Given: an empty project directory
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	// When: running init
	cmd := newInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	// Then: it succeeds and creates .store/
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "initialized memengine store")
	info, statErr := os.Stat(filepath.Join(tmpDir, ".store"))
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestInitCmd_IdempotentOnSecondRun(t *testing.T) {
	// Given: a project that has already been initialized
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	first := newInitCmd()
	first.SetArgs([]string{})
	require.NoError(t, first.Execute())

	// When: running init again
	cmd := newInitCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})
	err := cmd.Execute()

	// Then: it succeeds without error
	require.NoError(t, err)
}
