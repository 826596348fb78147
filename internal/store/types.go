// Package store provides the encrypted, single-file persistence layer: a
// content-addressed Memory table, its full-text (BM25) index, and the
// key-value state used for embedding-dimension tracking and resumable
// indexing checkpoints.
package store

import (
	"context"
	"fmt"
	"time"
)

// ContentType represents the type of content a Memory holds.
type ContentType string

const (
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeText     ContentType = "text"
)

// State keys for the metadata key-value store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index.
	StateKeyIndexModel = "index_embedding_model"
	// StateKeyKeyCheck stores the base64-encoded key-check HMAC used to detect KeyMismatch.
	StateKeyKeyCheck = "key_check"
)

// Checkpoint state keys for resumable indexing.
const (
	StateKeyCheckpointStage         = "checkpoint_stage"
	StateKeyCheckpointTotal         = "checkpoint_total"
	StateKeyCheckpointEmbedded      = "checkpoint_embedded"
	StateKeyCheckpointTimestamp     = "checkpoint_timestamp"
	StateKeyCheckpointEmbedderModel = "checkpoint_embedder_model"
)

// SymbolType represents the kind of code symbol a Memory's metadata describes.
type SymbolType string

const (
	SymbolTypeFunction  SymbolType = "function"
	SymbolTypeClass     SymbolType = "class"
	SymbolTypeInterface SymbolType = "interface"
	SymbolTypeType      SymbolType = "type"
	SymbolTypeVariable  SymbolType = "variable"
	SymbolTypeConstant  SymbolType = "constant"
	SymbolTypeMethod    SymbolType = "method"
)

// Symbol describes a code symbol captured in a Memory's metadata.
type Symbol struct {
	Name       string
	Type       SymbolType
	StartLine  int
	EndLine    int
	DocComment string
}

// Memory is the universal stored unit: a piece of content (code chunk,
// note, or conversation excerpt) with a stable content-addressed identity.
type Memory struct {
	ID          int64             // monotonically assigned, stable for the life of the database
	Content     string            // UTF-8 text, bounded to MaxContentLength
	Context     string            // free tag classifying origin, default "general"
	Kind        string            // "code", "note", "symbol", ..., default "general"
	Tags        []string          // ordered
	Metadata    map[string]string // file path, language, line range, symbol name/kind, strategy, ...
	ContentHash string            // sha256(context + "\x00" + content), UNIQUE
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MaxContentLength is the maximum number of characters a Memory's content may hold.
const MaxContentLength = 10_000

// Embedding is a dense vector attached to a Memory. At most one per Memory.
type Embedding struct {
	MemoryID  int64
	Dimension int
	Vector    []float32
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 3

// MetadataStore persists Memory rows, their embeddings, and engine state.
type MetadataStore interface {
	// InsertMemory computes content_hash and inserts, or returns the existing
	// id if a Memory with the same hash already exists (created=false).
	InsertMemory(ctx context.Context, m *Memory) (id int64, created bool, err error)
	GetMemory(ctx context.Context, id int64) (*Memory, error)
	GetMemoryByHash(ctx context.Context, contentHash string) (*Memory, error)
	ListMemories(ctx context.Context, kind string, limit int) ([]*Memory, error)
	// UpdateMemoryMetadata replaces tags/metadata in place (reindex path);
	// content_hash and content are immutable once written.
	UpdateMemoryMetadata(ctx context.Context, id int64, tags []string, metadata map[string]string) error
	DeleteMemory(ctx context.Context, id int64) error
	// ListMemoriesByPath returns memories previously sourced from a file path
	// (matched via metadata["path"]), for diff-aware reindex.
	ListMemoriesByPath(ctx context.Context, path string) ([]*Memory, error)

	// Embedding operations
	PutEmbedding(ctx context.Context, e *Embedding) error
	GetEmbedding(ctx context.Context, memoryID int64) (*Embedding, error)
	GetAllEmbeddings(ctx context.Context) (map[int64][]float32, error)
	DeleteEmbedding(ctx context.Context, memoryID int64) error

	// State operations (key-value store for runtime state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Checkpoint operations (for resumable indexing)
	SaveIndexCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error
	LoadIndexCheckpoint(ctx context.Context) (*IndexCheckpoint, error)
	ClearIndexCheckpoint(ctx context.Context) error

	// Maintenance
	DBDoctor(ctx context.Context) (*DoctorReport, error)
	GC(ctx context.Context, opts GCOptions) (*GCReport, error)

	Close() error
}

// IndexCheckpoint represents the saved state of an indexing operation for resume.
type IndexCheckpoint struct {
	Stage         string
	Total         int
	EmbeddedCount int
	Timestamp     time.Time
	EmbedderModel string
}

// DoctorReport is the outcome of an integrity check / rebuild.
type DoctorReport struct {
	Healthy     bool
	Rebuilt     bool
	BackupPath  string
	MemoryCount int
	Detail      string
}

// GCOptions configures a garbage-collection pass.
type GCOptions struct {
	PruneOrphanVectors bool
	DropStaleDigests   bool
	Vacuum             bool
}

// GCReport summarizes what a GC pass did.
type GCReport struct {
	OrphanVectorsDropped int
	StaleDigestsDropped  int
	Vacuumed             bool
}

// Document represents a document to be indexed in the full-text index.
type Document struct {
	ID      string // Memory ID, stringified
	Content string
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the full-text index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// FTSIndex provides keyword search using the BM25 algorithm.
type FTSIndex interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	K1             float64 // term frequency saturation parameter (default 1.2)
	B              float64 // length normalization parameter (default 0.75)
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords filtered during tokenization.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// ErrDimensionMismatch indicates a vector dimension mismatch against the
// index's recorded dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'memengine reindex-folder . --diff=false')", e.Expected, e.Got)
}

// ErrKeyMismatch indicates the supplied passphrase does not match the
// database's recorded key-check value.
type ErrKeyMismatch struct{}

func (e ErrKeyMismatch) Error() string { return "encryption key does not match this database" }
