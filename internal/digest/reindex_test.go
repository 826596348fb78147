package digest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/memengine/memengine/internal/chunk"
	"github.com/memengine/memengine/internal/store"
)

// fakeChunker returns one whole-file chunk per input, so reindex tests can
// exercise upsert/retire semantics without a real tree-sitter parse.
type fakeChunker struct{}

func (fakeChunker) Chunk(ctx context.Context, file *chunk.FileInput) ([]*chunk.Chunk, error) {
	return []*chunk.Chunk{{
		FilePath:  file.Path,
		Content:   string(file.Content),
		Language:  file.Language,
		StartLine: 1,
		EndLine:   1,
		Metadata:  map[string]string{"strategy": "fallback"},
	}}, nil
}
func (fakeChunker) SupportedExtensions() []string { return []string{".go", ".txt"} }

type fakeMetadataStore struct {
	nextID     int64
	byID       map[int64]*store.Memory
	byHash     map[string]*store.Memory
	embeddings map[int64]*store.Embedding
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{
		byID:       map[int64]*store.Memory{},
		byHash:     map[string]*store.Memory{},
		embeddings: map[int64]*store.Embedding{},
	}
}

func (f *fakeMetadataStore) InsertMemory(ctx context.Context, m *store.Memory) (int64, bool, error) {
	hash := m.Context + "\x00" + m.Content
	if existing, ok := f.byHash[hash]; ok {
		m.ContentHash = hash
		return existing.ID, false, nil
	}
	f.nextID++
	m.ID = f.nextID
	m.ContentHash = hash
	f.byID[m.ID] = m
	f.byHash[hash] = m
	return m.ID, true, nil
}
func (f *fakeMetadataStore) GetMemory(ctx context.Context, id int64) (*store.Memory, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, store.ErrKeyMismatch{}
	}
	return m, nil
}
func (f *fakeMetadataStore) GetMemoryByHash(ctx context.Context, hash string) (*store.Memory, error) {
	m, ok := f.byHash[hash]
	if !ok {
		return nil, store.ErrKeyMismatch{}
	}
	return m, nil
}
func (f *fakeMetadataStore) ListMemories(ctx context.Context, kind string, limit int) ([]*store.Memory, error) {
	return nil, nil
}
func (f *fakeMetadataStore) UpdateMemoryMetadata(ctx context.Context, id int64, tags []string, metadata map[string]string) error {
	if m, ok := f.byID[id]; ok {
		m.Metadata = metadata
	}
	return nil
}
func (f *fakeMetadataStore) DeleteMemory(ctx context.Context, id int64) error {
	if m, ok := f.byID[id]; ok {
		delete(f.byHash, m.ContentHash)
		delete(f.byID, id)
	}
	return nil
}
func (f *fakeMetadataStore) ListMemoriesByPath(ctx context.Context, path string) ([]*store.Memory, error) {
	var out []*store.Memory
	for _, m := range f.byID {
		if m.Metadata["path"] == path {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeMetadataStore) PutEmbedding(ctx context.Context, e *store.Embedding) error {
	f.embeddings[e.MemoryID] = e
	return nil
}
func (f *fakeMetadataStore) GetEmbedding(ctx context.Context, id int64) (*store.Embedding, error) {
	return f.embeddings[id], nil
}
func (f *fakeMetadataStore) GetAllEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	return nil, nil
}
func (f *fakeMetadataStore) DeleteEmbedding(ctx context.Context, id int64) error {
	delete(f.embeddings, id)
	return nil
}
func (f *fakeMetadataStore) GetState(ctx context.Context, key string) (string, error) { return "", nil }
func (f *fakeMetadataStore) SetState(ctx context.Context, key, value string) error     { return nil }
func (f *fakeMetadataStore) SaveIndexCheckpoint(ctx context.Context, stage string, total, embedded int, model string) error {
	return nil
}
func (f *fakeMetadataStore) LoadIndexCheckpoint(ctx context.Context) (*store.IndexCheckpoint, error) {
	return nil, nil
}
func (f *fakeMetadataStore) ClearIndexCheckpoint(ctx context.Context) error { return nil }
func (f *fakeMetadataStore) DBDoctor(ctx context.Context) (*store.DoctorReport, error) {
	return nil, nil
}
func (f *fakeMetadataStore) GC(ctx context.Context, opts store.GCOptions) (*store.GCReport, error) {
	return nil, nil
}
func (f *fakeMetadataStore) Close() error { return nil }

type fakeFTS struct{ deleted []string }

func (f *fakeFTS) Index(ctx context.Context, docs []*store.Document) error { return nil }
func (f *fakeFTS) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	return nil, nil
}
func (f *fakeFTS) Delete(ctx context.Context, ids []string) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}
func (f *fakeFTS) AllIDs() ([]string, error) { return nil, nil }
func (f *fakeFTS) Stats() *store.IndexStats  { return &store.IndexStats{} }
func (f *fakeFTS) Save(path string) error    { return nil }
func (f *fakeFTS) Load(path string) error    { return nil }
func (f *fakeFTS) Close() error              { return nil }

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReindexFileUpsertsMemory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	metadata := newFakeMetadataStore()
	fts := &fakeFTS{}
	r := &Reindexer{ProjectRoot: root, Chunker: fakeChunker{}, Metadata: metadata, FTS: fts, Cache: NewCache()}

	report, err := r.ReindexFile(context.Background(), "a.go", Options{Diff: true})
	if err != nil {
		t.Fatalf("ReindexFile: %v", err)
	}
	if report.MemoriesUpserted != 1 {
		t.Fatalf("expected 1 memory upserted, got %d", report.MemoriesUpserted)
	}
	if len(metadata.byID) != 1 {
		t.Fatalf("expected 1 stored memory, got %d", len(metadata.byID))
	}
}

func TestReindexFileSkipsUnchangedUnderDiff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")

	metadata := newFakeMetadataStore()
	fts := &fakeFTS{}
	r := &Reindexer{ProjectRoot: root, Chunker: fakeChunker{}, Metadata: metadata, FTS: fts, Cache: NewCache()}

	if _, err := r.ReindexFile(context.Background(), "a.go", Options{Diff: true}); err != nil {
		t.Fatalf("first ReindexFile: %v", err)
	}
	report, err := r.ReindexFile(context.Background(), "a.go", Options{Diff: true})
	if err != nil {
		t.Fatalf("second ReindexFile: %v", err)
	}
	if report.FilesSkipped != 1 {
		t.Fatalf("expected second pass to skip the unchanged file, got %+v", report)
	}
	if report.MemoriesUpserted != 0 {
		t.Fatalf("expected no re-embedding on the second pass, got %d", report.MemoriesUpserted)
	}
}

func TestReindexFileRetiresStaleMemoriesOnContentChange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\nfunc One() {}\n")

	metadata := newFakeMetadataStore()
	fts := &fakeFTS{}
	r := &Reindexer{ProjectRoot: root, Chunker: fakeChunker{}, Metadata: metadata, FTS: fts, Cache: NewCache()}

	if _, err := r.ReindexFile(context.Background(), "a.go", Options{Diff: true}); err != nil {
		t.Fatalf("first ReindexFile: %v", err)
	}
	firstID := int64(0)
	for id := range metadata.byID {
		firstID = id
	}

	writeFile(t, root, "a.go", "package a\nfunc Two() {}\n")
	report, err := r.ReindexFile(context.Background(), "a.go", Options{Diff: true})
	if err != nil {
		t.Fatalf("second ReindexFile: %v", err)
	}
	if report.MemoriesDeleted != 1 {
		t.Fatalf("expected the stale memory to be retired, got %+v", report)
	}
	if _, ok := metadata.byID[firstID]; ok {
		t.Fatal("expected the original memory to be deleted")
	}
	if len(fts.deleted) != 1 || fts.deleted[0] != strconv.FormatInt(firstID, 10) {
		t.Fatalf("expected the fts index to drop the stale doc id, got %v", fts.deleted)
	}
}

func TestReindexPathsRespectsExcludeGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "vendor/b.go", "package b\n")

	metadata := newFakeMetadataStore()
	fts := &fakeFTS{}
	r := &Reindexer{ProjectRoot: root, Chunker: fakeChunker{}, Metadata: metadata, FTS: fts, Cache: NewCache()}

	report, err := r.ReindexPaths(context.Background(), []string{"a.go", "vendor/b.go"}, Options{Diff: true, Exclude: []string{"vendor/*"}})
	if err != nil {
		t.Fatalf("ReindexPaths: %v", err)
	}
	if report.FilesScanned != 1 {
		t.Fatalf("expected the excluded file to never be scanned, got %+v", report)
	}
}
