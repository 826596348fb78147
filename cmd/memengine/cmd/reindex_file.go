package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/chunk"
	"github.com/memengine/memengine/internal/config"
	"github.com/memengine/memengine/internal/digest"
	"github.com/memengine/memengine/internal/policy"
)

func newReindexFileCmd() *cobra.Command {
	var diff bool
	cmd := &cobra.Command{
		Use:   "reindex-file <file>",
		Short: "Reindex a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindexFile(cmd, args[0], diff)
		},
	}
	cmd.Flags().BoolVar(&diff, "diff", false, "skip if the file's digest is unchanged since the last pass")
	return cmd
}

func runReindexFile(cmd *cobra.Command, file string, diff bool) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, file)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		rel = file
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "reindex-file", []string{abs}, cmd.Flags().Args(), func(ctx context.Context) error {
		cfg, err := config.Load(root)
		if err != nil {
			return err
		}

		s, embedder, vectors, err := openDeps(ctx, root)
		if err != nil {
			return err
		}
		defer closeDeps(root, s, vectors)

		cache, err := digest.LoadCache(root)
		if err != nil {
			return err
		}

		reindexer := &digest.Reindexer{
			ProjectRoot: root,
			Chunker:     chunk.NewCodeChunkerWithOptions(chunk.CodeChunkerOptions{MaxChunkTokens: cfg.Search.ChunkSize}),
			Embedder:    embedder,
			Metadata:    s,
			FTS:         s,
			Vectors:     vectors,
			Cache:       cache,
		}

		report, err := reindexer.ReindexFile(ctx, rel, digest.Options{Diff: diff})
		if err != nil {
			return err
		}
		if err := digest.SaveCache(root, cache); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "reindexed=%d skipped=%d memories_upserted=%d memories_deleted=%d embeddings=%d\n",
			report.FilesReindexed, report.FilesSkipped, report.MemoriesUpserted, report.MemoriesDeleted, report.EmbeddingsComputed)
		return nil
	})
}
