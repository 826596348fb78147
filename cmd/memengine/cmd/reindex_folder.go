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
	"github.com/memengine/memengine/internal/scanner"
)

func newReindexFolderCmd() *cobra.Command {
	var diff bool
	cmd := &cobra.Command{
		Use:   "reindex-folder <folder>",
		Short: "Reindex every file under a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindexFolder(cmd, args[0], diff)
		},
	}
	cmd.Flags().BoolVar(&diff, "diff", false, "skip files whose digest is unchanged since the last pass")
	return cmd
}

func runReindexFolder(cmd *cobra.Command, folder string, diff bool) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}
	abs := folder
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, folder)
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "reindex-folder", []string{abs}, cmd.Flags().Args(), func(ctx context.Context) error {
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

		sc, err := scanner.New()
		if err != nil {
			return err
		}
		paths, err := digest.ScanPaths(ctx, sc, &scanner.ScanOptions{
			RootDir:          abs,
			RespectGitignore: true,
		})
		if err != nil {
			return err
		}

		reindexer := &digest.Reindexer{
			ProjectRoot: abs,
			Chunker:     chunk.NewCodeChunkerWithOptions(chunk.CodeChunkerOptions{MaxChunkTokens: cfg.Search.ChunkSize}),
			Embedder:    embedder,
			Metadata:    s,
			FTS:         s,
			Vectors:     vectors,
			Cache:       cache,
		}

		report, err := reindexer.ReindexPaths(ctx, paths, digest.Options{Diff: diff})
		if err != nil {
			return err
		}
		if err := digest.SaveCache(root, cache); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d reindexed=%d skipped=%d memories_upserted=%d memories_deleted=%d embeddings=%d\n",
			report.FilesScanned, report.FilesReindexed, report.FilesSkipped,
			report.MemoriesUpserted, report.MemoriesDeleted, report.EmbeddingsComputed)
		return nil
	})
}
