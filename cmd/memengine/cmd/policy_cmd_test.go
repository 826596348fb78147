package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memengine/memengine/internal/policy"
)

func policyTestDir(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(oldDir) })
	return tmpDir
}

func TestPolicyStatusCmd_PrintsJSON(t *testing.T) {
	// Given: a project with the default policy
	policyTestDir(t)

	// When: running policy status
	cmd := newPolicyStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	// Then: it prints the JSON-marshaled doctor report
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"policy"`)
	assert.Contains(t, buf.String(), `"offline_proof"`)
}

func TestPolicyAllowCommand_PersistsToAllowList(t *testing.T) {
	// Given: a project whose policy does not allow a made-up command
	root := policyTestDir(t)

	guard, err := policy.NewGuard(root)
	require.NoError(t, err)
	blockedErr := guard.Run(context.Background(), "totally-unknown-command", nil, nil, func(ctx context.Context) error {
		return nil
	})
	require.Error(t, blockedErr)
	assert.Equal(t, ExitPolicyBlocked, exitCodeFor(blockedErr))

	// When: allowing it via `policy allow-command`
	allow := newPolicyAllowCommandCmd()
	allow.SetArgs([]string{"totally-unknown-command"})
	allowOut := &bytes.Buffer{}
	allow.SetOut(allowOut)
	allow.SetErr(allowOut)
	require.NoError(t, allow.Execute())

	// Then: the command is now present in the persisted allow-list, and a
	// guard built fresh from disk accepts it
	reloaded, err := policy.Load(root)
	require.NoError(t, err)
	assert.Contains(t, reloaded.AllowedCommands, "totally-unknown-command")

	guard2, err := policy.NewGuard(root)
	require.NoError(t, err)
	ran := false
	err = guard2.Run(context.Background(), "totally-unknown-command", nil, nil, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestPolicyTrustCmd_RejectsNonPositiveTTL(t *testing.T) {
	// Given: a project with the default policy
	policyTestDir(t)

	// When: trusting a command with --ttl 0
	cmd := newPolicyTrustCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"some-command", "--ttl", "0s"})

	err := cmd.Execute()

	// Then: it is rejected as invalid input
	require.Error(t, err)
	assert.Equal(t, ExitInputInvalid, exitCodeFor(err))
}

func TestPolicyDoctorCmd_ReportsAllowedCommands(t *testing.T) {
	// Given: a project with the default policy
	policyTestDir(t)

	// When: running policy doctor
	cmd := newPolicyDoctorCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()

	// Then: it lists the default allowed commands
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "status")
	assert.Contains(t, buf.String(), "recall")
}
