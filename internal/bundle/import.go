package bundle

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	engerrors "github.com/memengine/memengine/internal/errors"
	"github.com/memengine/memengine/internal/store"
)

// Import verifies a bundle at bundlePath (a directory or a .zip) against
// its checksums.json (and signature.bin, if present), then merges its
// memories into metadata by content_hash: existing hashes get their
// tags/metadata unioned, new hashes get inserted with a fresh local id.
// Vectors follow their memory by map.csv row index.
func Import(ctx context.Context, metadata store.MetadataStore, bundlePath string, vectorPut func(ctx context.Context, id int64, vec []float32) error) (*ImportReport, error) {
	dir := bundlePath
	cleanup := func() {}
	if info, err := os.Stat(bundlePath); err != nil {
		return nil, engerrors.New(engerrors.ErrCodeNotFound, "bundle not found", err)
	} else if !info.IsDir() {
		tmp, err := os.MkdirTemp("", "memengine-import-*")
		if err != nil {
			return nil, engerrors.InternalError("failed to create import staging directory", err)
		}
		if err := unzipToDir(bundlePath, tmp); err != nil {
			os.RemoveAll(tmp)
			return nil, err
		}
		dir = tmp
		cleanup = func() { os.RemoveAll(tmp) }
	}
	defer cleanup()

	report := &ImportReport{}

	checksums, err := readChecksumsJSON(dir)
	if err != nil {
		return nil, err
	}
	verify, err := verifyChecksums(dir, checksums)
	if err != nil {
		return nil, err
	}
	report.Verify = *verify
	if !verify.ChecksumsOK {
		return report, engerrors.New(engerrors.ErrCodeIntegrityMismatch, "bundle checksum verification failed", nil)
	}

	if sigPresent(dir) {
		ok, fingerprint, err := verifySignature(dir, checksums)
		if err != nil {
			return report, err
		}
		report.Verify.SignaturePresent = true
		report.Verify.SignatureOK = ok
		report.Verify.KeyFingerprint = fingerprint
		if !ok {
			return report, engerrors.New(engerrors.ErrCodeSignatureInvalid, "bundle signature verification failed", nil)
		}
	}

	var manifest Manifest
	if err := readJSONFile(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		return report, err
	}

	rows, err := readMapCSV(dir)
	if err != nil {
		return report, err
	}
	notes, err := readNotesJSONL(dir)
	if err != nil {
		return report, err
	}
	for _, row := range rows {
		if note, ok := notes[row.ID]; ok {
			row.Content = note.Content
			row.Tags = note.Tags
			row.Metadata = note.Metadata
			row.CreatedAt = note.CreatedAt
		}
	}

	var vectors [][]float32
	if manifest.EmbeddingDim > 0 {
		data, err := os.ReadFile(filepath.Join(dir, VectorsFile))
		if err != nil {
			return report, engerrors.New(engerrors.ErrCodeNotFound, "vectors.f32 missing but manifest declares embeddings", err)
		}
		vectors = readFloat32LE(data, manifest.EmbeddingDim)
	}

	for i, row := range rows {
		mergedTags := row.Tags
		mergedMeta := row.Metadata

		var localID int64
		if existing, err := metadata.GetMemoryByHash(ctx, row.ContentHash); err == nil && existing != nil {
			mergedTags = unionStrings(existing.Tags, row.Tags)
			mergedMeta = unionMaps(existing.Metadata, row.Metadata)
			if err := metadata.UpdateMemoryMetadata(ctx, existing.ID, mergedTags, mergedMeta); err != nil {
				return report, engerrors.Wrap(engerrors.ErrCodeInternal, err)
			}
			localID = existing.ID
			report.Updated++
		} else {
			mem := &store.Memory{
				Content:  row.Content,
				Context:  row.Context,
				Kind:     row.Kind,
				Tags:     mergedTags,
				Metadata: mergedMeta,
			}
			id, _, err := metadata.InsertMemory(ctx, mem)
			if err != nil {
				return report, engerrors.Wrap(engerrors.ErrCodeInternal, err)
			}
			localID = id
			report.Inserted++
		}

		if vectorPut != nil && i < len(vectors) {
			if err := vectorPut(ctx, localID, vectors[i]); err != nil {
				return report, engerrors.Wrap(engerrors.ErrCodeInternal, err)
			}
		}
	}

	return report, nil
}

func sigPresent(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, SignatureFile))
	return err == nil
}

func readChecksumsJSON(dir string) (map[string]string, error) {
	var m map[string]string
	if err := readJSONFile(filepath.Join(dir, ChecksumsFile), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return engerrors.New(engerrors.ErrCodeNotFound, "missing bundle file "+filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return engerrors.New(engerrors.ErrCodeIntegrityMismatch, "malformed bundle file "+filepath.Base(path), err)
	}
	return nil
}

func verifyChecksums(dir string, checksums map[string]string) (*VerifyReport, error) {
	report := &VerifyReport{ChecksumsOK: true}
	for name, want := range checksums {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			report.ChecksumsOK = false
			report.MismatchedFiles = append(report.MismatchedFiles, name)
			continue
		}
		sum := sha256.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if got != want {
			report.ChecksumsOK = false
			report.MismatchedFiles = append(report.MismatchedFiles, name)
		}
	}
	sort.Strings(report.MismatchedFiles)
	return report, nil
}

func verifySignature(dir string, checksums map[string]string) (ok bool, fingerprint string, err error) {
	sig, err := os.ReadFile(filepath.Join(dir, SignatureFile))
	if err != nil {
		return false, "", engerrors.New(engerrors.ErrCodeNotFound, "failed to read signature.bin", err)
	}
	pemData, err := os.ReadFile(filepath.Join(dir, PubKeyFile))
	if err != nil {
		return false, "", engerrors.New(engerrors.ErrCodeNotFound, "failed to read pubkey.pem", err)
	}
	block, _ := pem.Decode(pemData)
	if block == nil {
		return false, "", engerrors.New(engerrors.ErrCodeSignatureInvalid, "malformed pubkey.pem", nil)
	}
	pub := ed25519.PublicKey(block.Bytes)

	digest := canonicalChecksumsDigest(checksums)
	valid := ed25519.Verify(pub, digest[:], sig)

	fpSum := sha256.Sum256(pub)
	return valid, hex.EncodeToString(fpSum[:8]), nil
}

func readMapCSV(dir string) ([]*Row, error) {
	f, err := os.Open(filepath.Join(dir, MapFile))
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeNotFound, "missing map.csv", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	records, err := r.ReadAll()
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeIntegrityMismatch, "malformed map.csv", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var rows []*Row
	for _, rec := range records[1:] {
		if len(rec) < 10 {
			continue
		}
		id, _ := strconv.ParseInt(rec[0], 10, 64)
		lineStart, _ := strconv.Atoi(rec[6])
		lineEnd, _ := strconv.Atoi(rec[7])
		rows = append(rows, &Row{
			ID: id, ContentHash: rec[1], Context: rec[2], Kind: rec[3], Path: rec[4], Language: rec[5],
			LineStart: lineStart, LineEnd: lineEnd, SymbolName: rec[8], SymbolKind: rec[9],
		})
	}
	return rows, nil
}

type noteRecord struct {
	ID        int64
	Content   string
	Tags      []string
	Metadata  map[string]string
	CreatedAt time.Time
}

func readNotesJSONL(dir string) (map[int64]noteRecord, error) {
	f, err := os.Open(filepath.Join(dir, NotesFile))
	if err != nil {
		return nil, engerrors.New(engerrors.ErrCodeNotFound, "missing notes.jsonl", err)
	}
	defer f.Close()

	notes := map[int64]noteRecord{}
	dec := json.NewDecoder(bufio.NewReader(f))
	for {
		var raw struct {
			ID        int64             `json:"id"`
			Content   string            `json:"content"`
			Tags      []string          `json:"tags"`
			Metadata  map[string]string `json:"metadata"`
			CreatedAt time.Time         `json:"created_at"`
		}
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			return nil, engerrors.New(engerrors.ErrCodeIntegrityMismatch, "malformed notes.jsonl", err)
		}
		notes[raw.ID] = noteRecord{ID: raw.ID, Content: raw.Content, Tags: raw.Tags, Metadata: raw.Metadata, CreatedAt: raw.CreatedAt}
	}
	return notes, nil
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func unionMaps(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
