// Package bundle implements the portable `.ctx` export/import codec: a
// directory (optionally zipped) of a manifest, a memory map, notes,
// concatenated vectors, checksums, and an optional detached Ed25519
// signature.
package bundle

import "time"

const (
	ManifestFile   = "manifest.json"
	MapFile        = "map.csv"
	NotesFile      = "notes.jsonl"
	VectorsFile    = "vectors.f32"
	ChecksumsFile  = "checksums.json"
	SignatureFile  = "signature.bin"
	PubKeyFile     = "pubkey.pem"

	SchemaVersion = 1
)

// Kind selects which memories an export includes.
type Kind string

const (
	KindCode  Kind = "code"
	KindNotes Kind = "notes"
	KindMixed Kind = "mixed"
)

// Manifest is the bundle's manifest.json.
type Manifest struct {
	SchemaVersion int               `json:"schema_version"`
	ExporterID    string            `json:"exporter_id"` // anonymized, random per export
	CreatedAt     time.Time         `json:"created_at"`
	Kind          Kind              `json:"kind"`
	Counts        Counts            `json:"counts"`
	EmbeddingDim  int               `json:"embedding_dim"` // 0 if no embeddings
	Checksums     map[string]string `json:"checksums"`
}

// Counts summarizes what a bundle holds.
type Counts struct {
	Memories int `json:"memories"`
	Vectors  int `json:"vectors"`
}

// Row is one map.csv entry plus its companion notes.jsonl record.
type Row struct {
	ID         int64  `json:"id"`
	ContentHash string `json:"content_hash"`
	Context    string `json:"context"`
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Language   string `json:"language"`
	LineStart  int    `json:"line_start"`
	LineEnd    int    `json:"line_end"`
	SymbolName string `json:"symbol_name"`
	SymbolKind string `json:"symbol_kind"`

	Content   string            `json:"content"`
	Tags      []string          `json:"tags"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`

	Vector []float32 `json:"-"`
}

// ExportOptions configures an export pass.
type ExportOptions struct {
	Out  string
	Kind Kind
	Zip  bool
	Sign bool
}

// VerifyReport is the result of import's checksum/signature verification.
// It is returned inside ImportReport and printed by import-context; it is
// not written into the command's receipt.
type VerifyReport struct {
	ChecksumsOK    bool   `json:"checksums_ok"`
	SignaturePresent bool `json:"signature_present"`
	SignatureOK    bool   `json:"signature_ok"`
	KeyFingerprint string `json:"key_fingerprint,omitempty"`
	MismatchedFiles []string `json:"mismatched_files,omitempty"`
}

// ImportReport summarizes an import's merge outcome.
type ImportReport struct {
	Verify    VerifyReport `json:"verify"`
	Inserted  int          `json:"inserted"`
	Updated   int          `json:"updated"`
}
