package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/bundle"
	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/store"
)

func newImportContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-context <bundle>",
		Short: "Verify and merge a .ctx bundle into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportContext(cmd, args[0])
		},
	}
}

func runImportContext(cmd *cobra.Command, bundlePath string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "import-context", []string{root, bundlePath}, cmd.Flags().Args(), func(ctx context.Context) error {
		s, _, vectors, err := openDeps(ctx, root)
		if err != nil {
			return err
		}
		defer closeDeps(root, s, vectors)

		report, err := bundle.Import(ctx, s, bundlePath, func(ctx context.Context, id int64, vec []float32) error {
			if err := s.PutEmbedding(ctx, &store.Embedding{MemoryID: id, Dimension: len(vec), Vector: vec}); err != nil {
				return err
			}
			return vectors.Add(ctx, []string{memoryIDToVectorKey(id)}, [][]float32{vec})
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d updated=%d checksums_ok=%v signature_ok=%v\n",
			report.Inserted, report.Updated, report.Verify.ChecksumsOK, report.Verify.SignatureOK)
		return nil
	})
}
