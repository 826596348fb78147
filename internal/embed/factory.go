package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"

	engerrors "github.com/memengine/memengine/internal/errors"
)

// cacheTableKey hashes text to the same 64-character hex key a model cache
// table is keyed by.
func cacheTableKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ModelEnvVar is the single optional environment variable that selects a
// non-default embedding model. Its value is an opaque id resolved to
// <project_root>/.store/models/<id>; when unset, the static embedder is
// used and no file is ever consulted.
const ModelEnvVar = "MEMENGINE_EMBED_MODEL"

// CacheModelEmbedder loads a fixed-width float32 vector table from a local
// model cache file and looks vectors up by the SHA-256 hex digest of the
// input text. This is the "real model"
// path: the file is expected to have been placed there out-of-band (no
// network fetch is ever attempted, matching the zero-egress requirement),
// typically a precomputed embedding table exported by an offline tool.
type CacheModelEmbedder struct {
	id         string
	dimensions int
	table      map[string][]float32
	closed     bool
}

// NewCacheModelEmbedder resolves <projectRoot>/.store/models/<id> and loads
// it as a binary vector table (record format: 64-byte hex sha256 key
// followed by dimensions*4 little-endian float32 bytes, repeated). Returns
// ModelUnavailable if the file does not exist or fails to parse.
func NewCacheModelEmbedder(projectRoot, id string, dimensions int) (*CacheModelEmbedder, error) {
	path := filepath.Join(projectRoot, ".store", "models", id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engerrors.EmbeddingError(engerrors.ErrCodeModelUnavailable,
			fmt.Sprintf("embedding model %q not found in local cache", id), err)
	}
	recordSize := 64 + dimensions*4
	if recordSize == 0 || len(data)%recordSize != 0 {
		return nil, engerrors.EmbeddingError(engerrors.ErrCodeModelUnavailable,
			fmt.Sprintf("embedding model %q is malformed for dimension %d", id, dimensions), nil)
	}
	table := make(map[string][]float32, len(data)/recordSize)
	for off := 0; off < len(data); off += recordSize {
		key := string(data[off : off+64])
		vec := make([]float32, dimensions)
		for i := 0; i < dimensions; i++ {
			bits := binary.LittleEndian.Uint32(data[off+64+i*4:])
			vec[i] = math.Float32frombits(bits)
		}
		table[key] = vec
	}
	return &CacheModelEmbedder{id: id, dimensions: dimensions, table: table}, nil
}

func (e *CacheModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	key := cacheTableKey(text)
	vec, ok := e.table[key]
	if !ok {
		return nil, engerrors.New(engerrors.ErrCodeModelUnavailable,
			fmt.Sprintf("no cached embedding for input under model %q", e.id), nil)
	}
	return vec, nil
}

func (e *CacheModelEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

func (e *CacheModelEmbedder) Dimensions() int { return e.dimensions }
func (e *CacheModelEmbedder) ModelName() string { return e.id }
func (e *CacheModelEmbedder) Available(ctx context.Context) bool { return !e.closed }
func (e *CacheModelEmbedder) Close() error {
	e.closed = true
	return nil
}

var _ Embedder = (*CacheModelEmbedder)(nil)

// New builds the process's embedder: the static hash embedder by default,
// or a cache-backed model embedder when MEMENGINE_EMBED_MODEL names one
// present under <project_root>/.store/models/. Always wrapped with an LRU
// content-hash cache, matching the teacher's layering.
func New(projectRoot string) (Embedder, error) {
	var inner Embedder
	if id := os.Getenv(ModelEnvVar); id != "" {
		m, err := NewCacheModelEmbedder(projectRoot, id, StaticDimensions)
		if err != nil {
			return nil, err
		}
		inner = m
	} else {
		inner = NewStaticEmbedder()
	}
	return NewCachedEmbedderWithDefaults(inner), nil
}
