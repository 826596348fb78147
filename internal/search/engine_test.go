package search

import (
	"context"
	"testing"

	"github.com/memengine/memengine/internal/store"
	"github.com/memengine/memengine/internal/vectorindex"
)

// fakeMetadataStore implements store.MetadataStore backed by an in-memory map.
type fakeMetadataStore struct {
	memories map[int64]*store.Memory
}

func newFakeMetadataStore(memories ...*store.Memory) *fakeMetadataStore {
	m := &fakeMetadataStore{memories: make(map[int64]*store.Memory)}
	for _, mem := range memories {
		m.memories[mem.ID] = mem
	}
	return m
}

func (f *fakeMetadataStore) InsertMemory(ctx context.Context, m *store.Memory) (int64, bool, error) {
	f.memories[m.ID] = m
	return m.ID, true, nil
}
func (f *fakeMetadataStore) GetMemory(ctx context.Context, id int64) (*store.Memory, error) {
	m, ok := f.memories[id]
	if !ok {
		return nil, store.ErrKeyMismatch{}
	}
	return m, nil
}
func (f *fakeMetadataStore) GetMemoryByHash(ctx context.Context, hash string) (*store.Memory, error) {
	for _, m := range f.memories {
		if m.ContentHash == hash {
			return m, nil
		}
	}
	return nil, store.ErrKeyMismatch{}
}
func (f *fakeMetadataStore) ListMemories(ctx context.Context, kind string, limit int) ([]*store.Memory, error) {
	return nil, nil
}
func (f *fakeMetadataStore) UpdateMemoryMetadata(ctx context.Context, id int64, tags []string, metadata map[string]string) error {
	return nil
}
func (f *fakeMetadataStore) DeleteMemory(ctx context.Context, id int64) error {
	delete(f.memories, id)
	return nil
}
func (f *fakeMetadataStore) ListMemoriesByPath(ctx context.Context, path string) ([]*store.Memory, error) {
	return nil, nil
}
func (f *fakeMetadataStore) PutEmbedding(ctx context.Context, e *store.Embedding) error { return nil }
func (f *fakeMetadataStore) GetEmbedding(ctx context.Context, id int64) (*store.Embedding, error) {
	return nil, nil
}
func (f *fakeMetadataStore) GetAllEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	return nil, nil
}
func (f *fakeMetadataStore) DeleteEmbedding(ctx context.Context, id int64) error { return nil }
func (f *fakeMetadataStore) GetState(ctx context.Context, key string) (string, error) {
	return "", nil
}
func (f *fakeMetadataStore) SetState(ctx context.Context, key, value string) error { return nil }
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

// fakeFTS implements store.FTSIndex over a fixed result list.
type fakeFTS struct {
	results []*store.BM25Result
}

func (f *fakeFTS) Index(ctx context.Context, docs []*store.Document) error { return nil }
func (f *fakeFTS) Search(ctx context.Context, query string, limit int) ([]*store.BM25Result, error) {
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}
func (f *fakeFTS) Delete(ctx context.Context, ids []string) error { return nil }
func (f *fakeFTS) AllIDs() ([]string, error)                     { return nil, nil }
func (f *fakeFTS) Stats() *store.IndexStats                      { return &store.IndexStats{} }
func (f *fakeFTS) Save(path string) error                        { return nil }
func (f *fakeFTS) Load(path string) error                        { return nil }
func (f *fakeFTS) Close() error                                  { return nil }

// fakeVectorStore implements vectorindex.VectorStore over a fixed result list.
type fakeVectorStore struct {
	results []*vectorindex.VectorResult
}

func (f *fakeVectorStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	return nil
}
func (f *fakeVectorStore) Search(ctx context.Context, query []float32, k int) ([]*vectorindex.VectorResult, error) {
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}
func (f *fakeVectorStore) Delete(ctx context.Context, ids []string) error { return nil }
func (f *fakeVectorStore) AllIDs() []string                              { return nil }
func (f *fakeVectorStore) Contains(id string) bool                       { return false }
func (f *fakeVectorStore) Count() int                                    { return len(f.results) }
func (f *fakeVectorStore) Save(path string) error                        { return nil }
func (f *fakeVectorStore) Load(path string) error                        { return nil }
func (f *fakeVectorStore) Close() error                                  { return nil }

// fakeEmbedder returns a constant vector regardless of input.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dims), nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int           { return f.dims }
func (f *fakeEmbedder) ModelName() string         { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool { return true }
func (f *fakeEmbedder) Close() error              { return nil }

func TestEngineSearchLexicalMode(t *testing.T) {
	mem := &store.Memory{ID: 1, Content: "func Foo() {}", Metadata: map[string]string{"language": "go"}}
	metadata := newFakeMetadataStore(mem)
	fts := &fakeFTS{results: []*store.BM25Result{{DocID: "1", Score: 5}}}

	e, err := NewEngine(metadata, fts, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	results, err := e.Search(context.Background(), "Foo", Options{Mode: ModeLexical, K: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != 1 {
		t.Fatalf("expected one result for memory 1, got %+v", results)
	}
}

func TestEngineSearchHybridFusesBothLists(t *testing.T) {
	memA := &store.Memory{ID: 1, Content: "alpha", Metadata: map[string]string{}}
	memB := &store.Memory{ID: 2, Content: "beta", Metadata: map[string]string{}}
	metadata := newFakeMetadataStore(memA, memB)
	fts := &fakeFTS{results: []*store.BM25Result{{DocID: "1", Score: 5}}}
	vectors := &fakeVectorStore{results: []*vectorindex.VectorResult{{ID: "2", Score: 0.9}}}

	e, err := NewEngine(metadata, fts, vectors, &fakeEmbedder{dims: 4})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	results, err := e.Search(context.Background(), "alpha beta", Options{Mode: ModeHybrid, K: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both documents fused in, got %d", len(results))
	}
}

func TestEngineSearchAppliesLanguageFilter(t *testing.T) {
	goMem := &store.Memory{ID: 1, Content: "func Foo() {}", Metadata: map[string]string{"language": "go"}}
	pyMem := &store.Memory{ID: 2, Content: "def foo(): pass", Metadata: map[string]string{"language": "python"}}
	metadata := newFakeMetadataStore(goMem, pyMem)
	fts := &fakeFTS{results: []*store.BM25Result{{DocID: "1", Score: 5}, {DocID: "2", Score: 4}}}

	e, err := NewEngine(metadata, fts, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	results, err := e.Search(context.Background(), "foo", Options{Mode: ModeLexical, K: 5, Filters: Filters{Language: "python"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != 2 {
		t.Fatalf("expected only the python memory, got %+v", results)
	}
}

func TestEngineNewRejectsNilDependencies(t *testing.T) {
	if _, err := NewEngine(nil, nil, nil, nil); err != ErrNilDependency {
		t.Fatalf("expected ErrNilDependency, got %v", err)
	}
}
