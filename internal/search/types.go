// Package search implements the hybrid lexical/vector ranker: it fans out a
// query to the BM25 full-text index and the dense vector index in parallel,
// fuses the two ranked lists with a weighted sum of normalized scores, and
// applies post-fusion metadata filters before truncating to k results.
package search

import (
	"context"
	"time"

	"github.com/memengine/memengine/internal/store"
)

// Mode selects which sub-searches contribute to a query's ranking.
type Mode string

const (
	// ModeLexical ranks purely by BM25 score from the full-text index.
	ModeLexical Mode = "lexical"
	// ModeVector ranks purely by cosine similarity from the vector index.
	ModeVector Mode = "vector"
	// ModeHybrid fuses both lists with a weighted sum (the default).
	ModeHybrid Mode = "hybrid"
)

// DefaultAlpha is the weight given to the lexical component in hybrid mode;
// (1 - DefaultAlpha) is given to the vector component.
const DefaultAlpha = 0.5

// Oversample is the multiple of k each sub-search is asked to return before
// fusion, so that documents ranked lower by one signal but higher by the
// other still have a chance to surface once both lists are combined.
const Oversample = 4

// Filters restrict fused results by Memory metadata. All non-empty fields
// are applied as an AND; Path supports glob syntax.
type Filters struct {
	Path     string
	Language string
	Symbol   string // substring match against metadata["symbol_name"]
}

// Options configures a single Search call.
type Options struct {
	Mode         Mode
	K            int
	PreviewLines int
	Alpha        float64 // 0 uses DefaultAlpha
	Filters      Filters
	Trace        bool
}

// Result is a single ranked hit returned to the caller.
type Result struct {
	Memory       *store.Memory
	Score        float64 // fused score in [0,1]
	LexScore     float64 // normalized BM25 component, 0 if absent from that list
	VecScore     float64 // normalized cosine component, 0 if absent from that list
	MatchedTerms []string
	Preview      string  // up to PreviewLines lines with matches marked
	Trace        *CandidateTrace
}

// CandidateTrace records per-candidate component scores for --trace mode.
type CandidateTrace struct {
	MemoryID int64
	LexRank  int // 1-indexed, 0 if absent
	VecRank  int // 1-indexed, 0 if absent
	LexScore float64
	VecScore float64
}

// Receipt is the audit record written for every search, regardless of mode.
type Receipt struct {
	Timestamp time.Time
	QueryHash string // sha256 hex of the query text, never the plaintext
	Mode      Mode
	K         int
	ResultIDs []int64
	Trace     []*CandidateTrace // populated only when Options.Trace is set
}

// ReceiptWriter persists a search Receipt. It is attached with
// WithReceiptWriter; no implementation is provided in this module, and
// Engine treats a nil writer as "receipts disabled".
type ReceiptWriter interface {
	WriteReceipt(ctx context.Context, r Receipt) error
}

// Stats summarizes the engine's backing indices.
type Stats struct {
	FTS    *store.IndexStats
	Vector int
}

// highlightMarker brackets matched query terms in a preview; deliberately
// not an ANSI escape so previews render identically in any terminal or log.
const highlightMarker = "»%s«"
