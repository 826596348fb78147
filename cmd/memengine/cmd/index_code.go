package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/chunk"
	"github.com/memengine/memengine/internal/config"
	"github.com/memengine/memengine/internal/digest"
	"github.com/memengine/memengine/internal/embed"
	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/scanner"
	"github.com/memengine/memengine/internal/ui"
)

func newIndexCodeCmd() *cobra.Command {
	var (
		symbols bool
		path    string
		include []string
		exclude []string
		diff    bool
		watch   bool
	)
	cmd := &cobra.Command{
		Use:   "index-code",
		Short: "Chunk and index source files under a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexCode(cmd, indexCodeOptions{
				symbols: symbols, path: path, include: include, exclude: exclude,
				diff: diff, watch: watch,
			})
		},
	}
	cmd.Flags().BoolVar(&symbols, "symbols", false, "request AST symbol chunking (the chunker uses AST symbol boundaries for supported languages with or without this flag)")
	cmd.Flags().StringVar(&path, "path", ".", "directory to scan")
	cmd.Flags().StringSliceVar(&include, "include", nil, "glob to include (repeatable)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "glob to exclude (repeatable)")
	cmd.Flags().BoolVar(&diff, "diff", false, "skip files whose digest is unchanged since the last pass")
	cmd.Flags().BoolVar(&watch, "watch", false, "keep running, reindexing files as they change")
	return cmd
}

type indexCodeOptions struct {
	symbols bool
	path    string
	include []string
	exclude []string
	diff    bool
	watch   bool
}

func runIndexCode(cmd *cobra.Command, opts indexCodeOptions) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	scanDir := opts.path
	if !filepath.IsAbs(scanDir) {
		scanDir = filepath.Join(root, scanDir)
	}

	run := func(ctx context.Context) error {
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
			RootDir:          scanDir,
			IncludePatterns:  opts.include,
			ExcludePatterns:  opts.exclude,
			RespectGitignore: true,
		})
		if err != nil {
			return err
		}

		renderer := ui.NewPlainRenderer(ui.Config{Output: cmd.OutOrStdout(), ProjectDir: scanDir})
		tracker := ui.NewProgressTracker()
		tracker.SetStage(ui.StageIndexing, len(paths))

		reindexer := &digest.Reindexer{
			ProjectRoot: scanDir,
			Chunker:     chunk.NewCodeChunkerWithOptions(chunk.CodeChunkerOptions{MaxChunkTokens: cfg.Search.ChunkSize}),
			Embedder:    embedder,
			Metadata:    s,
			FTS:         s,
			Vectors:     vectors,
			Cache:       cache,
			OnFile: func(path string, index, total int) {
				tracker.Update(index, path)
				renderer.UpdateProgress(ui.ProgressEvent{
					Stage:       ui.StageIndexing,
					Current:     index,
					Total:       total,
					CurrentFile: path,
				})
			},
		}

		started := time.Now()
		report, err := reindexer.ReindexPaths(ctx, paths, digest.Options{
			Diff:    opts.diff,
			Symbols: opts.symbols,
			Include: opts.include,
			Exclude: opts.exclude,
		})
		if err != nil {
			return err
		}
		if err := digest.SaveCache(root, cache); err != nil {
			return err
		}

		embedderBackend := "static"
		if os.Getenv(embed.ModelEnvVar) != "" {
			embedderBackend = "model"
		}
		renderer.Complete(ui.CompletionStats{
			Files:    report.FilesReindexed,
			Chunks:   report.MemoriesUpserted,
			Duration: time.Since(started),
			Embedder: ui.EmbedderInfo{
				Backend:    embedderBackend,
				Model:      embedder.ModelName(),
				Dimensions: embedder.Dimensions(),
			},
		})
		speed := tracker.SpeedStats()
		fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d reindexed=%d skipped=%d memories_upserted=%d memories_deleted=%d embeddings=%d avg_files_per_sec=%.2f\n",
			report.FilesScanned, report.FilesReindexed, report.FilesSkipped,
			report.MemoriesUpserted, report.MemoriesDeleted, report.EmbeddingsComputed, speed.Avg)
		return nil
	}

	if !opts.watch {
		return guard.Run(cmd.Context(), "index-code", []string{scanDir}, cmd.Flags().Args(), run)
	}

	return watchAndReindex(cmd, guard, scanDir, run)
}
