package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memengine/memengine/internal/policy"
)

func TestProveOfflineCmd_ReportsNetworkGuardActiveDuringRun(t *testing.T) {
	// Given: a project with the default (network-egress-refused) policy
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	// When: running prove-offline --json
	cmd := newProveOfflineCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--json"})

	err := cmd.Execute()

	// Then: the proof attests egress is blocked and the guard was active
	require.NoError(t, err)
	var proof policy.OfflineProof
	require.NoError(t, json.Unmarshal(buf.Bytes(), &proof))
	assert.Equal(t, "blocked", proof.PolicyNetworkEgress)
	assert.True(t, proof.NetworkGuardActive)
}

func TestProveOfflineCmd_GuardDeactivatesAfterRun(t *testing.T) {
	// Given: a project where prove-offline has already completed once
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer func() { _ = os.Chdir(oldDir) }()

	first := newProveOfflineCmd()
	first.SetArgs([]string{})
	require.NoError(t, first.Execute())

	// Then: the network interceptor is removed once the command returns
	assert.False(t, policy.Active())
}
