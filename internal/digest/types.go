// Package digest maintains the per-file content digest cache consulted by
// diff-aware reindexing, and drives the reindex orchestration itself:
// scanning, chunking, embedding, and upserting memories while retiring
// stale ones sourced from the same file.
package digest

import "time"

// Entry is one file's last-known digest, compared against on the next
// diff-aware reindex to decide whether the file needs re-chunking.
type Entry struct {
	Path          string    `json:"path"`
	SHA256        string    `json:"sha256"`
	Size          int64     `json:"size"`
	ModTime       time.Time `json:"mtime"`
	LastIndexedAt time.Time `json:"last_indexed_at"`
}

// Cache is the in-memory form of .store/digest-cache.json, keyed by
// project-relative file path.
type Cache struct {
	Entries map[string]Entry `json:"entries"`
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{Entries: map[string]Entry{}}
}

// Unchanged reports whether path's cached digest matches the given
// (sha256, size, mtime) tuple.
func (c *Cache) Unchanged(path, sha256 string, size int64, modTime time.Time) bool {
	e, ok := c.Entries[path]
	if !ok {
		return false
	}
	return e.SHA256 == sha256 && e.Size == size && e.ModTime.Equal(modTime)
}

// Update records path's latest digest, overwriting any prior entry.
func (c *Cache) Update(e Entry) {
	if c.Entries == nil {
		c.Entries = map[string]Entry{}
	}
	c.Entries[e.Path] = e
}

// Remove drops path's cache entry, used by `gc --drop-stale-digests` for
// files no longer present on disk.
func (c *Cache) Remove(path string) {
	delete(c.Entries, path)
}

// Paths returns every path the cache currently tracks.
func (c *Cache) Paths() []string {
	paths := make([]string, 0, len(c.Entries))
	for p := range c.Entries {
		paths = append(paths, p)
	}
	return paths
}

// Options configures a reindex pass.
type Options struct {
	Diff     bool // skip files whose digest hasn't changed
	Symbols  bool // records a --symbols request; the Reindexer does not read it (its Chunker decides the strategy)
	Include  []string
	Exclude  []string
}

// Report summarizes one reindex invocation.
type Report struct {
	FilesScanned       int
	FilesSkipped       int
	FilesReindexed     int
	MemoriesUpserted   int
	MemoriesDeleted    int
	EmbeddingsComputed int
}
