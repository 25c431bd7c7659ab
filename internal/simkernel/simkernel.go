// Package simkernel implements the cosine similarity kernel and top-k
// selection used by the vector index's search path. All inputs are assumed
// to be float32 slices; callers that pre-normalize vectors (the embedder
// façade does) get cosine similarity for free as a dot product, but Cosine
// does the full computation so it is correct for arbitrary vectors too.
package simkernel

import (
	"math"
	"sort"

	"github.com/screenager/vecstore/internal/verr"
)

// Cosine returns the cosine similarity of a and b, in [-1-1e-6, 1+1e-6].
// It returns 0 if either vector has zero L2 norm, matching spec: a zero
// vector has no direction to compare against.
func Cosine(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, verr.New("simkernel.Cosine", verr.DimensionMismatch,
			"len(a)=%d != len(b)=%d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		normA += fa * fa
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB))), nil
}

// Scored is a single (id, score) pair, the unit of a top-k result.
type Scored struct {
	ID    string
	Score float32
}

// Candidate is a scoring input: an id paired with its vector.
type Candidate struct {
	ID        string
	Embedding []float32
}

// TopK scores every candidate against query and returns at most k results,
// sorted by descending score with ties broken by ascending id. Candidates
// whose embedding length mismatches query are skipped rather than
// erroring, since a live index entry is expected to always match D — a
// mismatch here means the entry is stale and the caller (vecindex) should
// already be rebuilding.
func TopK(query []float32, candidates []Candidate, k int) []Scored {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		s, err := Cosine(query, c.Embedding)
		if err != nil {
			continue
		}
		scored = append(scored, Scored{ID: c.ID, Score: s})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
