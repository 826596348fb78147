package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBDoctorCmd_ReportsHealthyOnFreshStore(t *testing.T) {
	// Given: a freshly initialized project
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	initCmd := newInitCmd()
	initCmd.SetArgs([]string{})
	require.NoError(t, initCmd.Execute())

	// When: running db-doctor
	cmd := newDBDoctorCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	// Then: it reports a healthy, unrebuilt store with zero memories
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "healthy=true")
	assert.Contains(t, output, "rebuilt=false")
	assert.Contains(t, output, "memory_count=0")
}
