package bundle

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/store"
)

// maxListLimit bounds a single export's memory fetch; large enough for any
// realistic local store.
const maxListLimit = 10_000_000

// Export gathers the memories matching opts.Kind from metadata (and their
// embeddings from metadata, if any), writes the bundle directory (or, if
// opts.Zip, a .zip of it instead of the directory) atomically, and returns
// its manifest.
func Export(ctx context.Context, metadata store.MetadataStore, opts ExportOptions) (*Manifest, error) {
	rows, dim, err := collectRows(ctx, metadata, opts.Kind)
	if err != nil {
		return nil, err
	}

	stagingDir := opts.Out + ".staging"
	if err := os.RemoveAll(stagingDir); err != nil {
		return nil, engerrors.InternalError("failed to clear export staging directory", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, engerrors.InternalError("failed to create export staging directory", err)
	}
	defer os.RemoveAll(stagingDir)

	// manifest.json is written first, as the bundle layout orders it, and
	// carries no checksums of its own: checksums.json (written last, once
	// every content file is on disk) is the one source of truth for
	// integrity verification, avoiding a self-referential manifest hash.
	manifest := &Manifest{
		SchemaVersion: SchemaVersion,
		ExporterID:    uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Kind:          opts.Kind,
		Counts:        Counts{Memories: len(rows), Vectors: countVectors(rows)},
		EmbeddingDim:  dim,
	}
	if err := writeManifestWithoutChecksums(stagingDir, manifest); err != nil {
		return nil, err
	}

	if err := writeMapCSV(stagingDir, rows); err != nil {
		return nil, err
	}
	if err := writeNotesJSONL(stagingDir, rows); err != nil {
		return nil, err
	}
	if dim > 0 {
		if err := writeVectorsF32(stagingDir, rows); err != nil {
			return nil, err
		}
	}

	checksums, err := computeChecksums(stagingDir)
	if err != nil {
		return nil, err
	}
	manifest.Checksums = checksums
	if err := writeChecksumsJSON(stagingDir, checksums); err != nil {
		return nil, err
	}

	if opts.Sign {
		if err := signChecksums(stagingDir, checksums); err != nil {
			return nil, err
		}
	}

	if err := fsyncDir(stagingDir); err != nil {
		return nil, err
	}

	target := opts.Out
	if opts.Zip {
		zipPath := target
		if filepath.Ext(zipPath) != ".zip" {
			zipPath += ".zip"
		}
		tmpZip := zipPath + ".tmp"
		if err := zipDirectory(stagingDir, tmpZip); err != nil {
			os.Remove(tmpZip)
			return nil, err
		}
		if err := os.Rename(tmpZip, zipPath); err != nil {
			os.Remove(tmpZip)
			return nil, engerrors.InternalError("failed to finalize export zip", err)
		}
		return manifest, nil
	}

	if err := os.RemoveAll(target); err != nil {
		return nil, engerrors.InternalError("failed to clear export target", err)
	}
	if err := os.Rename(stagingDir, target); err != nil {
		return nil, engerrors.InternalError("failed to finalize export directory", err)
	}
	return manifest, nil
}

func collectRows(ctx context.Context, metadata store.MetadataStore, kind Kind) ([]*Row, int, error) {
	var storeKind string
	if kind == KindCode {
		storeKind = "code"
	}
	memories, err := metadata.ListMemories(ctx, storeKind, maxListLimit)
	if err != nil {
		return nil, 0, engerrors.Wrap(engerrors.ErrCodeInternal, err)
	}

	dim := 0
	rows := make([]*Row, 0, len(memories))
	for _, m := range memories {
		if kind == KindNotes && m.Kind == "code" {
			continue
		}
		row := &Row{
			ID:          m.ID,
			ContentHash: m.ContentHash,
			Context:     m.Context,
			Kind:        m.Kind,
			Path:        m.Metadata["path"],
			Language:    m.Metadata["language"],
			SymbolName:  m.Metadata["symbol_name"],
			SymbolKind:  m.Metadata["symbol_kind"],
			Content:     m.Content,
			Tags:        m.Tags,
			Metadata:    m.Metadata,
			CreatedAt:   m.CreatedAt,
		}
		row.LineStart, _ = strconv.Atoi(m.Metadata["line_start"])
		row.LineEnd, _ = strconv.Atoi(m.Metadata["line_end"])

		if emb, err := metadata.GetEmbedding(ctx, m.ID); err == nil && emb != nil {
			row.Vector = emb.Vector
			if emb.Dimension > dim {
				dim = emb.Dimension
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, dim, nil
}

func countVectors(rows []*Row) int {
	n := 0
	for _, r := range rows {
		if len(r.Vector) > 0 {
			n++
		}
	}
	return n
}

func writeMapCSV(dir string, rows []*Row) error {
	f, err := os.Create(filepath.Join(dir, MapFile))
	if err != nil {
		return engerrors.InternalError("failed to create map.csv", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"id", "content_hash", "context", "kind", "path", "language", "line_start", "line_end", "symbol_name", "symbol_kind"}
	if err := w.Write(header); err != nil {
		return engerrors.InternalError("failed to write map.csv header", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10), r.ContentHash, r.Context, r.Kind, r.Path, r.Language,
			strconv.Itoa(r.LineStart), strconv.Itoa(r.LineEnd), r.SymbolName, r.SymbolKind,
		}
		if err := w.Write(record); err != nil {
			return engerrors.InternalError("failed to write map.csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return engerrors.InternalError("failed to flush map.csv", err)
	}
	return f.Sync()
}

func writeNotesJSONL(dir string, rows []*Row) error {
	f, err := os.Create(filepath.Join(dir, NotesFile))
	if err != nil {
		return engerrors.InternalError("failed to create notes.jsonl", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range rows {
		note := struct {
			ID          int64             `json:"id"`
			Content     string            `json:"content"`
			Tags        []string          `json:"tags"`
			Metadata    map[string]string `json:"metadata"`
			CreatedAt   time.Time         `json:"created_at"`
			ContentHash string            `json:"content_hash"`
		}{r.ID, r.Content, r.Tags, r.Metadata, r.CreatedAt.UTC(), r.ContentHash}
		if err := enc.Encode(note); err != nil {
			return engerrors.InternalError("failed to write notes.jsonl entry", err)
		}
	}
	return f.Sync()
}

func writeVectorsF32(dir string, rows []*Row) error {
	f, err := os.Create(filepath.Join(dir, VectorsFile))
	if err != nil {
		return engerrors.InternalError("failed to create vectors.f32", err)
	}
	defer f.Close()

	for _, r := range rows {
		if err := writeFloat32LE(f, r.Vector); err != nil {
			return engerrors.InternalError("failed to write vectors.f32", err)
		}
	}
	return f.Sync()
}

func writeManifestWithoutChecksums(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return engerrors.InternalError("failed to marshal manifest", err)
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}

func writeChecksumsJSON(dir string, checksums map[string]string) error {
	data, err := json.MarshalIndent(checksums, "", "  ")
	if err != nil {
		return engerrors.InternalError("failed to marshal checksums", err)
	}
	return os.WriteFile(filepath.Join(dir, ChecksumsFile), data, 0o644)
}

// computeChecksums hashes every file currently in dir (manifest.json is
// included, with its Checksums field still empty, matching the canonical
// serialization import verifies against).
func computeChecksums(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, engerrors.InternalError("failed to list export staging directory", err)
	}
	sums := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, engerrors.InternalError("failed to hash "+e.Name(), err)
		}
		sum := sha256.Sum256(data)
		sums[e.Name()] = hex.EncodeToString(sum[:])
	}
	return sums, nil
}

// canonicalChecksumsDigest renders checksums sorted by file name and
// hashes that serialization, the quantity both export and import sign
// and verify against.
func canonicalChecksumsDigest(checksums map[string]string) [32]byte {
	names := make([]string, 0, len(checksums))
	for name := range checksums {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := make([]byte, 0, 64*len(names))
	for _, name := range names {
		buf = append(buf, []byte(name+"="+checksums[name]+"\n")...)
	}
	return sha256.Sum256(buf)
}

func signChecksums(dir string, checksums map[string]string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return engerrors.InternalError("failed to generate signing key", err)
	}
	digest := canonicalChecksumsDigest(checksums)
	sig := ed25519.Sign(priv, digest[:])

	if err := os.WriteFile(filepath.Join(dir, SignatureFile), sig, 0o644); err != nil {
		return engerrors.InternalError("failed to write signature.bin", err)
	}

	block := &pem.Block{Type: "ED25519 PUBLIC KEY", Bytes: pub}
	pubFile, err := os.Create(filepath.Join(dir, PubKeyFile))
	if err != nil {
		return engerrors.InternalError("failed to create pubkey.pem", err)
	}
	defer pubFile.Close()
	if err := pem.Encode(pubFile, block); err != nil {
		return engerrors.InternalError("failed to write pubkey.pem", err)
	}
	return pubFile.Sync()
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return engerrors.InternalError("failed to open export staging directory", err)
	}
	defer d.Close()
	return d.Sync()
}
