package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/memengine/memengine/internal/digest"
	"github.com/memengine/memengine/internal/policy"
	"github.com/memengine/memengine/internal/store"
)

func newGCCmd() *cobra.Command {
	var (
		pruneVectors bool
		dropStale    bool
		vacuum       bool
	)
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Garbage-collect orphaned vectors and stale digest entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGC(cmd, store.GCOptions{
				PruneOrphanVectors: pruneVectors,
				DropStaleDigests:   dropStale,
				Vacuum:             vacuum,
			})
		},
	}
	cmd.Flags().BoolVar(&pruneVectors, "prune-vectors", false, "drop vectors whose memory no longer exists")
	cmd.Flags().BoolVar(&dropStale, "drop-stale-digests", false, "drop digest cache entries for files that no longer exist")
	cmd.Flags().BoolVar(&vacuum, "vacuum", false, "reclaim free pages in the underlying database file")
	return cmd
}

func runGC(cmd *cobra.Command, opts store.GCOptions) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	guard, err := policy.NewGuard(root)
	if err != nil {
		return err
	}

	return guard.Run(cmd.Context(), "gc", []string{root}, cmd.Flags().Args(), func(ctx context.Context) error {
		s, _, vectors, err := openDeps(ctx, root)
		if err != nil {
			return err
		}
		defer closeDeps(root, s, vectors)

		report, err := s.GC(ctx, opts)
		if err != nil {
			return err
		}

		if opts.DropStaleDigests {
			dropped, err := gcDigestCache(root)
			if err != nil {
				return err
			}
			report.StaleDigestsDropped = dropped
		}

		fmt.Fprintf(cmd.OutOrStdout(), "orphan_vectors_dropped=%d stale_digests_dropped=%d vacuumed=%v\n",
			report.OrphanVectorsDropped, report.StaleDigestsDropped, report.Vacuumed)
		return nil
	})
}

// gcDigestCache removes digest cache entries whose source file no longer
// exists on disk, so a later --diff reindex doesn't treat a deleted file's
// stale entry as still current. Returns the number of entries dropped.
func gcDigestCache(root string) (int, error) {
	cache, err := digest.LoadCache(root)
	if err != nil {
		return 0, err
	}
	dropped := 0
	for _, p := range cache.Paths() {
		if _, err := os.Stat(filepath.Join(root, p)); os.IsNotExist(err) {
			cache.Remove(p)
			dropped++
		}
	}
	return dropped, digest.SaveCache(root, cache)
}
