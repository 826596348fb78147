package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/memengine/memengine/internal/store"
)

type fakeMetadataStore struct {
	nextID int64
	byID   map[int64]*store.Memory
	byHash map[string]*store.Memory
	embed  map[int64]*store.Embedding
}

func newFakeMetadataStore() *fakeMetadataStore {
	return &fakeMetadataStore{byID: map[int64]*store.Memory{}, byHash: map[string]*store.Memory{}, embed: map[int64]*store.Embedding{}}
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
	var out []*store.Memory
	for _, m := range f.byID {
		if kind == "" || m.Kind == kind {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeMetadataStore) UpdateMemoryMetadata(ctx context.Context, id int64, tags []string, metadata map[string]string) error {
	if m, ok := f.byID[id]; ok {
		m.Tags = tags
		m.Metadata = metadata
	}
	return nil
}
func (f *fakeMetadataStore) DeleteMemory(ctx context.Context, id int64) error {
	delete(f.byID, id)
	return nil
}
func (f *fakeMetadataStore) ListMemoriesByPath(ctx context.Context, path string) ([]*store.Memory, error) {
	return nil, nil
}
func (f *fakeMetadataStore) PutEmbedding(ctx context.Context, e *store.Embedding) error {
	f.embed[e.MemoryID] = e
	return nil
}
func (f *fakeMetadataStore) GetEmbedding(ctx context.Context, id int64) (*store.Embedding, error) {
	e, ok := f.embed[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}
func (f *fakeMetadataStore) GetAllEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	return nil, nil
}
func (f *fakeMetadataStore) DeleteEmbedding(ctx context.Context, id int64) error {
	delete(f.embed, id)
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

func TestExportImportRoundTrip(t *testing.T) {
	src := newFakeMetadataStore()
	if _, _, err := src.InsertMemory(context.Background(), &store.Memory{Content: "func Foo() {}", Context: "code", Kind: "code", Metadata: map[string]string{"path": "a.go"}}); err != nil {
		t.Fatalf("InsertMemory: %v", err)
	}

	out := filepath.Join(t.TempDir(), "export")
	manifest, err := Export(context.Background(), src, ExportOptions{Out: out, Kind: KindCode})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if manifest.Counts.Memories != 1 {
		t.Fatalf("expected 1 memory in manifest, got %d", manifest.Counts.Memories)
	}
	if _, err := os.Stat(filepath.Join(out, ChecksumsFile)); err != nil {
		t.Fatalf("expected checksums.json to exist: %v", err)
	}

	dst := newFakeMetadataStore()
	report, err := Import(context.Background(), dst, out, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !report.Verify.ChecksumsOK {
		t.Fatal("expected checksums to verify")
	}
	if report.Inserted != 1 {
		t.Fatalf("expected 1 inserted memory, got %+v", report)
	}
}

func TestImportDetectsTamperedBundle(t *testing.T) {
	src := newFakeMetadataStore()
	src.InsertMemory(context.Background(), &store.Memory{Content: "func Foo() {}", Context: "code", Kind: "code", Metadata: map[string]string{"path": "a.go"}})

	out := filepath.Join(t.TempDir(), "export")
	if _, err := Export(context.Background(), src, ExportOptions{Out: out, Kind: KindCode}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if err := os.WriteFile(filepath.Join(out, NotesFile), []byte("tampered\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst := newFakeMetadataStore()
	_, err := Import(context.Background(), dst, out, nil)
	if err == nil {
		t.Fatal("expected tampered bundle to fail checksum verification")
	}
}

func TestExportImportWithSignature(t *testing.T) {
	src := newFakeMetadataStore()
	src.InsertMemory(context.Background(), &store.Memory{Content: "notes about the project", Context: "general", Kind: "note"})

	out := filepath.Join(t.TempDir(), "export")
	if _, err := Export(context.Background(), src, ExportOptions{Out: out, Kind: KindNotes, Sign: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, SignatureFile)); err != nil {
		t.Fatalf("expected signature.bin to exist: %v", err)
	}

	dst := newFakeMetadataStore()
	report, err := Import(context.Background(), dst, out, nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !report.Verify.SignatureOK {
		t.Fatal("expected signature to verify")
	}
}

func TestExportZipRoundTrip(t *testing.T) {
	src := newFakeMetadataStore()
	src.InsertMemory(context.Background(), &store.Memory{Content: "func Foo() {}", Context: "code", Kind: "code"})

	out := filepath.Join(t.TempDir(), "export.ctx")
	if _, err := Export(context.Background(), src, ExportOptions{Out: out, Kind: KindCode, Zip: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newFakeMetadataStore()
	report, err := Import(context.Background(), dst, out+".zip", nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Inserted != 1 {
		t.Fatalf("expected 1 inserted memory from zip import, got %+v", report)
	}
}
