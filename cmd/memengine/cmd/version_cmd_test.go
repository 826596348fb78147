package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd_PrintsVersionString(t *testing.T) {
	// Given: the version command
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)

	// When: running it
	err := cmd.Execute()

	// Then: it prints the program name and version
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "memengine")
}

func TestVersionCmd_JSONReportsStructuredBuildInfo(t *testing.T) {
	// Given: the version command with --json
	cmd := newVersionCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--json"})

	// When: running it
	err := cmd.Execute()

	// Then: it emits a JSON object with the documented fields
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "os")
}
