package store

import (
	"context"

	"github.com/screenager/vecstore/internal/record"
	"github.com/screenager/vecstore/internal/simkernel"
	"github.com/screenager/vecstore/internal/verr"
)

// Result pairs a hydrated chunk record with its similarity score, the
// return type of every search operation.
type Result struct {
	Record record.ChunkRecord
	Score  float32
}

// SearchVector scores every index entry against query and hydrates the
// top-k chunk records, sorted by descending score with ascending-id
// tiebreak.
func (s *Store) SearchVector(query []float32, k int) ([]Result, error) {
	entries := s.index.All()
	candidates := make([]simkernel.Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = simkernel.Candidate{ID: e.ID, Embedding: e.Embedding}
	}

	scored := simkernel.TopK(query, candidates, k)
	results := make([]Result, 0, len(scored))
	for _, sc := range scored {
		rec, err := s.index.Hydrate(sc.ID)
		if err != nil {
			s.logger.Warn("SearchVector: failed to hydrate result, skipping", "id", sc.ID, "cause", err)
			continue
		}
		results = append(results, Result{Record: *rec, Score: sc.Score})
	}
	return results, nil
}

// SearchText embeds query and delegates to SearchVector.
func (s *Store) SearchText(ctx context.Context, query string, k int) ([]Result, error) {
	if s.embedder == nil {
		return nil, verr.New("store.SearchText", verr.ModelUnavailable, "store has no embedder configured")
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.SearchVector(vec, k)
}

// LazyResults is a deferred sequence of search results: Next advances and
// reports whether a result is available. The top-k scoring is already done
// when SearchTextLazy returns; only hydration of each chunk record is
// deferred, so callers chaining predicates (e.g. filter by metadata) do not
// pay to hydrate results they discard.
type LazyResults struct {
	scored []simkernel.Scored
	pos    int
	store  *Store
}

// Next advances the sequence, hydrating the next candidate. It returns
// false once the sequence is exhausted; a hydration failure is skipped and
// the sequence simply advances past it.
func (lr *LazyResults) Next() (Result, bool) {
	for lr.pos < len(lr.scored) {
		sc := lr.scored[lr.pos]
		lr.pos++
		rec, err := lr.store.index.Hydrate(sc.ID)
		if err != nil {
			lr.store.logger.Warn("SearchTextLazy: failed to hydrate result, skipping", "id", sc.ID, "cause", err)
			continue
		}
		return Result{Record: *rec, Score: sc.Score}, true
	}
	return Result{}, false
}

// SearchTextLazy embeds query and scores the index, but defers hydration
// of each chunk record until the caller pulls it via LazyResults.Next
//.
func (s *Store) SearchTextLazy(ctx context.Context, query string, k int) (*LazyResults, error) {
	if s.embedder == nil {
		return nil, verr.New("store.SearchTextLazy", verr.ModelUnavailable, "store has no embedder configured")
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	entries := s.index.All()
	candidates := make([]simkernel.Candidate, len(entries))
	for i, e := range entries {
		candidates[i] = simkernel.Candidate{ID: e.ID, Embedding: e.Embedding}
	}
	scored := simkernel.TopK(vec, candidates, k)
	return &LazyResults{scored: scored, store: s}, nil
}
