package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/memengine/memengine/internal/embed"
	"github.com/memengine/memengine/internal/store"
	"github.com/memengine/memengine/internal/vectorindex"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine implements the hybrid lexical/vector ranker described in the
// search component: parallel sub-searches, weighted-sum fusion, and
// post-fusion metadata filtering.
type Engine struct {
	metadata store.MetadataStore
	fts      store.FTSIndex
	vectors  vectorindex.VectorStore
	embedder embed.Embedder
	receipts ReceiptWriter
}

// Option configures an Engine.
type Option func(*Engine)

// WithReceiptWriter attaches an audit sink that records every Search call.
func WithReceiptWriter(w ReceiptWriter) Option {
	return func(e *Engine) { e.receipts = w }
}

// NewEngine builds a hybrid search engine over the given metadata store,
// full-text index, and vector index. embedder may be nil, in which case
// ModeHybrid degrades to lexical-only results and ModeVector returns none.
func NewEngine(metadata store.MetadataStore, fts store.FTSIndex, vectors vectorindex.VectorStore, embedder embed.Embedder, opts ...Option) (*Engine, error) {
	if metadata == nil || fts == nil {
		return nil, ErrNilDependency
	}
	e := &Engine{metadata: metadata, fts: fts, vectors: vectors, embedder: embedder}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search executes a query under the requested mode and returns up to
// opts.K ranked results with metadata filters applied.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	k := opts.K
	if k <= 0 {
		k = 10
	}
	alpha := opts.Alpha
	if alpha <= 0 {
		alpha = DefaultAlpha
	}

	var (
		lex []*store.BM25Result
		vec []*vectorindex.VectorResult
		err error
	)

	fetchK := k * Oversample
	if fetchK < k {
		fetchK = k
	}

	switch opts.Mode {
	case ModeLexical:
		lex, err = e.fts.Search(ctx, query, fetchK)
		if err != nil {
			return nil, fmt.Errorf("lexical search: %w", err)
		}
	case ModeVector:
		vec, err = e.searchVector(ctx, query, fetchK)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
	default: // ModeHybrid
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var lexErr error
			lex, lexErr = e.fts.Search(gctx, query, fetchK)
			return lexErr
		})
		g.Go(func() error {
			if e.embedder == nil || e.vectors == nil {
				return nil
			}
			var vecErr error
			vec, vecErr = e.searchVector(gctx, query, fetchK)
			return vecErr
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("hybrid search: %w", err)
		}
	}

	candidates := Fuse(lex, vec, alpha)

	results := make([]*Result, 0, len(candidates))
	for _, c := range candidates {
		id, err := strconv.ParseInt(c.id, 10, 64)
		if err != nil {
			continue
		}
		m, err := e.metadata.GetMemory(ctx, id)
		if err != nil {
			continue
		}
		if !matchesFilters(m, opts.Filters) {
			continue
		}

		r := &Result{
			Memory:   m,
			Score:    c.fusedScore(alpha),
			LexScore: c.lexScore,
			VecScore: c.vecScore,
			Preview:  preview(m.Content, query, opts.PreviewLines),
		}
		if opts.Trace {
			r.Trace = &CandidateTrace{
				MemoryID: id,
				LexRank:  c.lexRank,
				VecRank:  c.vecRank,
				LexScore: c.lexScore,
				VecScore: c.vecScore,
			}
		}
		results = append(results, r)
		if len(results) >= k {
			break
		}
	}

	e.writeReceipt(ctx, query, opts, results)

	return results, nil
}

// searchVector embeds query and runs it against the vector index,
// returning a nil result set when no embedder or vector index is configured.
func (e *Engine) searchVector(ctx context.Context, query string, k int) ([]*vectorindex.VectorResult, error) {
	if e.embedder == nil || e.vectors == nil {
		return nil, nil
	}
	qv, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.vectors.Search(ctx, qv, k)
}

// Stats reports the current size of the backing indices.
func (e *Engine) Stats() Stats {
	s := Stats{FTS: e.fts.Stats()}
	if e.vectors != nil {
		s.Vector = e.vectors.Count()
	}
	return s
}

// Close releases the engine's indices.
func (e *Engine) Close() error {
	var errs []error
	if err := e.fts.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.vectors != nil {
		if err := e.vectors.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) writeReceipt(ctx context.Context, query string, opts Options, results []*Result) {
	if e.receipts == nil {
		return
	}
	sum := sha256.Sum256([]byte(query))
	ids := make([]int64, len(results))
	var trace []*CandidateTrace
	for i, r := range results {
		ids[i] = r.Memory.ID
		if r.Trace != nil {
			trace = append(trace, r.Trace)
		}
	}
	receipt := Receipt{
		Timestamp: time.Now(),
		QueryHash: hex.EncodeToString(sum[:]),
		Mode:      opts.Mode,
		K:         opts.K,
		ResultIDs: ids,
		Trace:     trace,
	}
	_ = e.receipts.WriteReceipt(ctx, receipt)
}

// preview returns up to maxLines lines of content, with every case-insensitive
// occurrence of a query term bracketed by highlightMarker.
func preview(content, query string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = 3
	}
	lines := strings.Split(content, "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	terms := strings.Fields(query)
	out := strings.Join(lines, "\n")
	for _, term := range terms {
		if term == "" {
			continue
		}
		out = highlightTerm(out, term)
	}
	return out
}

// highlightTerm brackets every case-insensitive occurrence of term in s.
func highlightTerm(s, term string) string {
	lowerS := strings.ToLower(s)
	lowerTerm := strings.ToLower(term)
	if lowerTerm == "" {
		return s
	}
	var b strings.Builder
	i := 0
	for {
		idx := strings.Index(lowerS[i:], lowerTerm)
		if idx < 0 {
			b.WriteString(s[i:])
			break
		}
		start := i + idx
		end := start + len(term)
		b.WriteString(s[i:start])
		fmt.Fprintf(&b, highlightMarker, s[start:end])
		i = end
	}
	return b.String()
}
