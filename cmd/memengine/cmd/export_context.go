package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/bundle"
	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/policy"
)

func newExportContextCmd() *cobra.Command {
	var (
		out     string
		kind    string
		useZip  bool
		sign    bool
	)
	cmd := &cobra.Command{
		Use:   "export-context",
		Short: "Export memories as a signed, checksummed .ctx bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportContext(cmd, out, kind, useZip, sign)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output bundle path (required)")
	cmd.Flags().StringVar(&kind, "kind", "mixed", "which memories to export: code, notes, mixed")
	cmd.Flags().BoolVar(&useZip, "zip", false, "write the bundle as a single zip archive")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign the bundle's checksums with a fresh Ed25519 keypair")
	cmd.MarkFlagRequired("out")
	return cmd
}

func runExportContext(cmd *cobra.Command, out, kind string, useZip, sign bool) error {
	if out == "" {
		return engerrors.ValidationError("--out is required", nil)
	}

	var bundleKind bundle.Kind
	switch kind {
	case "code":
		bundleKind = bundle.KindCode
	case "notes":
		bundleKind = bundle.KindNotes
	case "mixed", "":
		bundleKind = bundle.KindMixed
	default:
		return engerrors.ValidationError(fmt.Sprintf("unknown export kind %q", kind), nil)
	}

	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "export-context", []string{root, out}, cmd.Flags().Args(), func(ctx context.Context) error {
		s, _, vectors, err := openDeps(ctx, root)
		if err != nil {
			return err
		}
		defer closeDeps(root, s, vectors)

		manifest, err := bundle.Export(ctx, s, bundle.ExportOptions{
			Out:  out,
			Kind: bundleKind,
			Zip:  useZip,
			Sign: sign,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d memories to %s (schema v%d)\n",
			manifest.Counts.Memories, out, manifest.SchemaVersion)
		return nil
	})
}
