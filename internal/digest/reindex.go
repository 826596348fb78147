package digest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/memengine/memengine/internal/chunk"
	"github.com/memengine/memengine/internal/embed"
	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/scanner"
	"github.com/memengine/memengine/internal/store"
	"github.com/memengine/memengine/internal/vectorindex"
)

// Reindexer drives diff-aware reindexing: it chunks changed files, upserts
// their memories (id-stable by content hash), embeds and indexes newly
// created ones, retires memories whose content hash no longer reproduces,
// and updates the digest cache once each file's work has committed.
type Reindexer struct {
	ProjectRoot string
	Chunker     chunk.Chunker
	Embedder    embed.Embedder // nil disables embedding
	Metadata    store.MetadataStore
	FTS         store.FTSIndex
	Vectors     vectorindex.VectorStore // nil disables vector indexing
	Cache       *Cache

	// OnFile, if set, is called before each file is processed by
	// ReindexPaths, for callers that want to render progress.
	OnFile func(path string, index, total int)
}

// ReindexPaths processes the given project-relative file paths in sorted
// order, so receipts and reports are reproducible across runs.
func (r *Reindexer) ReindexPaths(ctx context.Context, paths []string, opts Options) (*Report, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	report := &Report{}
	for i, p := range sorted {
		if ctx.Err() != nil {
			return report, engerrors.New(engerrors.ErrCodeCancelled, "reindex cancelled", ctx.Err())
		}
		if !pathIncluded(p, opts.Include, opts.Exclude) {
			continue
		}
		report.FilesScanned++
		if r.OnFile != nil {
			r.OnFile(p, i+1, len(sorted))
		}

		skipped, err := r.reindexFile(ctx, p, opts, report)
		if err != nil {
			return report, err
		}
		if skipped {
			report.FilesSkipped++
		} else {
			report.FilesReindexed++
		}
	}
	return report, nil
}

// ReindexFile reindexes a single file, ignoring include/exclude filters
// (used by the `reindex-file` command, which names the file explicitly).
func (r *Reindexer) ReindexFile(ctx context.Context, path string, opts Options) (*Report, error) {
	report := &Report{FilesScanned: 1}
	skipped, err := r.reindexFile(ctx, path, opts, report)
	if err != nil {
		return report, err
	}
	if skipped {
		report.FilesSkipped = 1
	} else {
		report.FilesReindexed = 1
	}
	return report, nil
}

func (r *Reindexer) reindexFile(ctx context.Context, relPath string, opts Options, report *Report) (skipped bool, err error) {
	absPath := filepath.Join(r.ProjectRoot, relPath)

	content, err := os.ReadFile(absPath)
	if err != nil {
		return false, engerrors.New(engerrors.ErrCodeNotFound, "failed to read "+relPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, engerrors.New(engerrors.ErrCodeNotFound, "failed to stat "+relPath, err)
	}

	sum := sha256.Sum256(content)
	digestHex := hex.EncodeToString(sum[:])

	if opts.Diff && r.Cache.Unchanged(relPath, digestHex, info.Size(), info.ModTime()) {
		return true, nil
	}

	language := scanner.DetectLanguage(relPath)
	chunks, err := r.Chunker.Chunk(ctx, &chunk.FileInput{Path: relPath, Content: content, Language: language})
	if err != nil {
		return false, engerrors.New(engerrors.ErrCodeInternal, "failed to chunk "+relPath, err)
	}

	previous, err := r.Metadata.ListMemoriesByPath(ctx, relPath)
	if err != nil {
		return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
	}

	keepHashes := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		meta := map[string]string{
			"path":     relPath,
			"language": language,
			"strategy": c.Metadata["strategy"],
			"line_start": strconv.Itoa(c.StartLine),
			"line_end":   strconv.Itoa(c.EndLine),
		}
		for k, v := range c.Metadata {
			meta[k] = v
		}
		if len(c.Symbols) > 0 {
			meta["symbol_name"] = c.Symbols[0].Name
			meta["symbol_kind"] = string(c.Symbols[0].Type)
		}

		mem := &store.Memory{
			Content:  c.Content,
			Context:  "code",
			Kind:     "code",
			Metadata: meta,
		}

		id, created, err := r.Metadata.InsertMemory(ctx, mem)
		if err != nil {
			return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
		}
		keepHashes[mem.ContentHash] = true
		report.MemoriesUpserted++

		if !created {
			continue
		}

		if err := r.Metadata.UpdateMemoryMetadata(ctx, id, nil, meta); err != nil {
			return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
		}
		if err := r.FTS.Index(ctx, []*store.Document{{ID: strconv.FormatInt(id, 10), Content: mem.Content}}); err != nil {
			return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
		}

		if r.Embedder != nil && r.Vectors != nil {
			vec, err := r.Embedder.Embed(ctx, mem.Content)
			if err != nil {
				return false, engerrors.New(engerrors.ErrCodeModelUnavailable, "embedding failed for "+relPath, err)
			}
			if err := r.Metadata.PutEmbedding(ctx, &store.Embedding{MemoryID: id, Dimension: len(vec), Vector: vec}); err != nil {
				return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
			}
			idStr := strconv.FormatInt(id, 10)
			if err := r.Vectors.Add(ctx, []string{idStr}, [][]float32{vec}); err != nil {
				return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
			}
			report.EmbeddingsComputed++
		}
	}

	var staleIDs []string
	for _, prev := range previous {
		if keepHashes[prev.ContentHash] {
			continue
		}
		if err := r.Metadata.DeleteMemory(ctx, prev.ID); err != nil {
			return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
		}
		_ = r.Metadata.DeleteEmbedding(ctx, prev.ID)
		idStr := strconv.FormatInt(prev.ID, 10)
		staleIDs = append(staleIDs, idStr)
		report.MemoriesDeleted++
	}
	if len(staleIDs) > 0 {
		if err := r.FTS.Delete(ctx, staleIDs); err != nil {
			return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
		}
		if r.Vectors != nil {
			if err := r.Vectors.Delete(ctx, staleIDs); err != nil {
				return false, engerrors.Wrap(engerrors.ErrCodeInternal, err)
			}
		}
	}

	// The digest cache is only updated once every store mutation above has
	// succeeded, so a crash mid-file leaves the file due for reprocessing
	// rather than wrongly marked current.
	r.Cache.Update(Entry{
		Path:          relPath,
		SHA256:        digestHex,
		Size:          info.Size(),
		ModTime:       info.ModTime(),
		LastIndexedAt: time.Now(),
	})

	return false, nil
}

func pathIncluded(path string, include, exclude []string) bool {
	for _, pat := range exclude {
		if ok, _ := filepath.Match(pat, path); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pat := range include {
		if ok, _ := filepath.Match(pat, path); ok {
			return true
		}
	}
	return false
}

// ScanPaths enumerates project-relative file paths under root using the
// scanner package, for callers that want to feed ReindexPaths from a
// directory rather than an explicit file list.
func ScanPaths(ctx context.Context, s *scanner.Scanner, opts *scanner.ScanOptions) ([]string, error) {
	ch, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}
	var paths []string
	for res := range ch {
		if res.Error != nil {
			return nil, res.Error
		}
		if res.File != nil {
			paths = append(paths, res.File.Path)
		}
	}
	return paths, nil
}
