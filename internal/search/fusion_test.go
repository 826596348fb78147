package search

import (
	"testing"

	"github.com/memengine/memengine/internal/store"
	"github.com/memengine/memengine/internal/vectorindex"
)

func TestFuseWeightedSum(t *testing.T) {
	lex := []*store.BM25Result{
		{DocID: "1", Score: 10},
		{DocID: "2", Score: 5},
	}
	vec := []*vectorindex.VectorResult{
		{ID: "2", Score: 1.0},
		{ID: "3", Score: 0.5},
	}

	results := Fuse(lex, vec, 0.5)
	if len(results) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(results))
	}

	// doc "2" appears in both lists (lexical 5/10 = 0.5, vector 1.0), so its
	// fused score 0.75 beats doc "1" (0.5) and doc "3" (0.25).
	if results[0].id != "2" {
		t.Fatalf("expected doc 2 to rank first, got %s", results[0].id)
	}
}

func TestFuseMissingComponentIsZero(t *testing.T) {
	lex := []*store.BM25Result{{DocID: "1", Score: 10}}
	results := Fuse(lex, nil, 0.5)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].vecScore != 0 {
		t.Fatalf("expected zero vector contribution, got %f", results[0].vecScore)
	}
}

func TestFuseTieBreakByID(t *testing.T) {
	lex := []*store.BM25Result{
		{DocID: "b", Score: 1},
		{DocID: "a", Score: 1},
	}
	results := Fuse(lex, nil, 0.5)
	if results[0].id != "a" {
		t.Fatalf("expected lexicographic tie-break, got order %s, %s", results[0].id, results[1].id)
	}
}

func TestFuseEmptyInputs(t *testing.T) {
	results := Fuse(nil, nil, 0.5)
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
}

func TestCandidateFusedScoreUsesGivenAlpha(t *testing.T) {
	c := &candidate{id: "1", lexScore: 1, vecScore: 0}
	if got := c.fusedScore(0.5); got != 0.5 {
		t.Fatalf("expected 0.5, got %f", got)
	}
	if got := c.fusedScore(1.0); got != 1.0 {
		t.Fatalf("expected 1.0, got %f", got)
	}
}
