package search

import (
	"sort"

	"github.com/memengine/memengine/internal/store"
	"github.com/memengine/memengine/internal/vectorindex"
)

// candidate accumulates the lexical and vector contributions for one memory
// while the two ranked lists are merged.
type candidate struct {
	id       string
	lexScore float64
	lexRank  int
	vecScore float64
	vecRank  int
}

// Fuse combines BM25 and vector results using a weighted sum of each list's
// scores, normalized by its own top score. Ids present in only one list get
// a zero contribution for the missing component. Ties break first by the
// higher individual component, then by id ascending.
func Fuse(lex []*store.BM25Result, vec []*vectorindex.VectorResult, alpha float64) []*candidate {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}

	lexMax := 0.0
	for _, r := range lex {
		if r.Score > lexMax {
			lexMax = r.Score
		}
	}
	vecMax := float32(0)
	for _, r := range vec {
		if r.Score > vecMax {
			vecMax = r.Score
		}
	}

	byID := make(map[string]*candidate, len(lex)+len(vec))
	get := func(id string) *candidate {
		c, ok := byID[id]
		if !ok {
			c = &candidate{id: id}
			byID[id] = c
		}
		return c
	}

	for rank, r := range lex {
		c := get(r.DocID)
		c.lexRank = rank + 1
		if lexMax > 0 {
			c.lexScore = r.Score / lexMax
		}
	}
	for rank, r := range vec {
		c := get(r.ID)
		c.vecRank = rank + 1
		if vecMax > 0 {
			c.vecScore = float64(r.Score) / float64(vecMax)
		}
	}

	results := make([]*candidate, 0, len(byID))
	for _, c := range byID {
		results = append(results, c)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		sa := alpha*a.lexScore + (1-alpha)*a.vecScore
		sb := alpha*b.lexScore + (1-alpha)*b.vecScore
		if sa != sb {
			return sa > sb
		}
		maxA := a.lexScore
		if a.vecScore > maxA {
			maxA = a.vecScore
		}
		maxB := b.lexScore
		if b.vecScore > maxB {
			maxB = b.vecScore
		}
		if maxA != maxB {
			return maxA > maxB
		}
		return a.id < b.id
	})

	return results
}

// fusedScore returns the weighted-sum score for a candidate at the given alpha.
func (c *candidate) fusedScore(alpha float64) float64 {
	return alpha*c.lexScore + (1-alpha)*c.vecScore
}
