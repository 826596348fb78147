// Package cmd provides the CLI commands for memengine.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/config"
	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/logging"
	"github.com/memengine/memengine/pkg/version"
)

// Exit codes, per the documented command-surface contract.
const (
	ExitSuccess          = 0
	ExitPolicyBlocked    = 2
	ExitIntegrityFailure = 3
	ExitInputInvalid     = 4
	ExitInternalError    = 5
)

// NewRootCmd creates the root command for the memengine CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memengine",
		Short: "Air-gapped, local-first memory and code-retrieval engine",
		Long: `memengine stores notes and code memories in an encrypted local
database, retrieves them via hybrid BM25 + dense-vector search, and
never attempts a network connection: every command runs behind a
policy guard that refuses outbound egress and records a receipt.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("memengine version {{.Version}}\n")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRememberCmd())
	cmd.AddCommand(newRecallCmd())
	cmd.AddCommand(newIndexCodeCmd())
	cmd.AddCommand(newReindexFileCmd())
	cmd.AddCommand(newReindexFolderCmd())
	cmd.AddCommand(newGCCmd())
	cmd.AddCommand(newDBDoctorCmd())
	cmd.AddCommand(newExportContextCmd())
	cmd.AddCommand(newImportContextCmd())
	cmd.AddCommand(newProveOfflineCmd())
	cmd.AddCommand(newPolicyCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code implied
// by whatever error (if any) the command returned.
func Execute() int {
	if root, err := projectRoot(); err == nil {
		cfg := logging.DefaultConfig(root)
		cfg.WriteToStderr = false
		if logger, cleanup, err := logging.Setup(cfg); err == nil {
			slog.SetDefault(logger)
			defer cleanup()
		}
	}

	cmd := NewRootCmd()
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	if hint := engerrors.GetCode(err); hint != "" {
		if suggestion := remediationFor(err); suggestion != "" {
			fmt.Fprintln(os.Stderr, "hint:", suggestion)
		}
	}
	return exitCodeFor(err)
}

func remediationFor(err error) string {
	var ee *engerrors.EngineError
	if as, ok := err.(*engerrors.EngineError); ok {
		ee = as
	} else {
		return ""
	}
	return ee.Suggestion
}

// exitCodeFor maps an error's Kind to the documented process exit code.
func exitCodeFor(err error) int {
	switch engerrors.GetKind(err) {
	case engerrors.KindPolicyBlocked, engerrors.KindPathDenied:
		return ExitPolicyBlocked
	case engerrors.KindIntegrityMismatch, engerrors.KindSignatureInvalid,
		engerrors.KindCorruption, engerrors.KindKeyMismatch:
		return ExitIntegrityFailure
	case engerrors.KindInputTooLarge, engerrors.KindSecretDetected,
		engerrors.KindInvalidInput, engerrors.KindDimensionMismatch,
		engerrors.KindNotFound, engerrors.KindConflict:
		return ExitInputInvalid
	default:
		return ExitInternalError
	}
}

// projectRoot resolves the project root the same way every command does:
// the nearest ancestor directory containing .git, a .store directory or a
// memengine config file, falling back to the working directory.
func projectRoot() (string, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		cwd, err := os.Getwd()
		if err != nil {
			return "", engerrors.InternalError("failed to resolve working directory", err)
		}
		return cwd, nil
	}
	return root, nil
}
