package cmd

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memengine/memengine/internal/digest"
)

func TestGCCmd_DropStaleDigestsReportsRemovedCount(t *testing.T) {
	// Given: an initialized project whose digest cache references a file
	// that no longer exists on disk
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	cache := digest.NewCache()
	cache.Update(digest.Entry{Path: "deleted.go", SHA256: "abc", Size: 1, ModTime: time.Now(), LastIndexedAt: time.Now()})
	require.NoError(t, digest.SaveCache(tmpDir, cache))

	// When: running gc --drop-stale-digests
	cmd := newGCCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--drop-stale-digests"})

	err := cmd.Execute()

	// Then: it reports the dropped entry and the cache no longer tracks it
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "stale_digests_dropped=1")

	reloaded, err := digest.LoadCache(tmpDir)
	require.NoError(t, err)
	assert.NotContains(t, reloaded.Paths(), "deleted.go")
}

func TestGCCmd_VacuumReportsSuccess(t *testing.T) {
	// Given: an initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: running gc --vacuum
	cmd := newGCCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--vacuum"})

	err := cmd.Execute()

	// Then: it reports vacuumed=true
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "vacuumed=true")
}
