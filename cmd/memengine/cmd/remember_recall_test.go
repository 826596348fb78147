package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRememberThenRecall_FindsStoredMemory(t *testing.T) {
	// Given: an initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: remembering a note and then recalling it
	remember := newRememberCmd()
	rememberOut := &bytes.Buffer{}
	remember.SetOut(rememberOut)
	remember.SetErr(rememberOut)
	remember.SetArgs([]string{"the quarterly release notes live in docs/release.md"})
	require.NoError(t, remember.Execute())
	assert.Contains(t, rememberOut.String(), "remembered as #")

	recall := newRecallCmd()
	recallOut := &bytes.Buffer{}
	recall.SetOut(recallOut)
	recall.SetErr(recallOut)
	recall.SetArgs([]string{"--mode", "lexical", "release notes"})
	err := recall.Execute()

	// Then: the remembered note is found
	require.NoError(t, err)
	assert.Contains(t, recallOut.String(), "release.md")
}

func TestRememberTwice_SameContentIsIdempotent(t *testing.T) {
	// Given: an initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: remembering the same content twice
	first := newRememberCmd()
	first.SetArgs([]string{"duplicate content"})
	firstOut := &bytes.Buffer{}
	first.SetOut(firstOut)
	first.SetErr(firstOut)
	require.NoError(t, first.Execute())

	second := newRememberCmd()
	second.SetArgs([]string{"duplicate content"})
	secondOut := &bytes.Buffer{}
	second.SetOut(secondOut)
	second.SetErr(secondOut)
	require.NoError(t, second.Execute())

	// Then: the second call recognizes it as already remembered
	assert.Contains(t, secondOut.String(), "already remembered as #")
}

func TestRecall_UnknownModeIsRejected(t *testing.T) {
	// Given: an initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: recalling with an unsupported mode
	cmd := newRecallCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--mode", "fuzzy", "anything"})

	err := cmd.Execute()

	// Then: it is rejected as invalid input
	require.Error(t, err)
	assert.Equal(t, ExitInputInvalid, exitCodeFor(err))
}

func TestRemember_RejectsEmptyContent(t *testing.T) {
	// Given: an initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: remembering blank content
	cmd := newRememberCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"   "})
	err := cmd.Execute()

	// Then: it is rejected before touching the store
	require.Error(t, err)
	assert.Equal(t, ExitInputInvalid, exitCodeFor(err))
}
