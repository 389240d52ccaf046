package retrieval

import (
	"context"

	"knowledgecore/internal/persistence/databases"
)

// GroupResult is one group bucket of a /search-grouped response.
type GroupResult struct {
	Key  string   `json:"key"`
	Hits []Result `json:"hits"`
}

// SearchGrouped implements /search-grouped: group results by groupBy,
// returning up to groupSize hits per group. Unlike /search, grouping
// replaces dedup-by-file entirely — no post-hoc dedup is applied.
func (e *Engine) SearchGrouped(ctx context.Context, collection, query, groupBy string, k, groupSize int) ([]GroupResult, error) {
	if k <= 0 {
		k = 10
	}
	if groupSize <= 0 {
		groupSize = 3
	}
	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	var groups []databases.Group
	err = e.Breakers.Get("vectorStore").Execute(func() error {
		g, err := e.Vector.SearchGroups(ctx, collection, vec, groupBy, k, groupSize, nil)
		if err != nil {
			return err
		}
		groups = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]GroupResult, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupResult{Key: g.Key, Hits: resultsFrom(g.Hits)})
	}
	return out, nil
}

// SimilarScoreThreshold is /search-similar's default minimum similarity,
// per spec.md §4.E.
const SimilarScoreThreshold = 0.7

// SearchSimilar implements /search-similar: embed a code snippet and search
// with a score threshold, no boost or dedup applied since it's intended to
// surface every near-duplicate.
func (e *Engine) SearchSimilar(ctx context.Context, collection, snippet string, k int, scoreThreshold float64) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	if scoreThreshold <= 0 {
		scoreThreshold = SimilarScoreThreshold
	}
	vec, err := e.embed(ctx, snippet)
	if err != nil {
		return nil, err
	}
	hits, err := e.search(ctx, collection, vec, k, nil, scoreThreshold)
	if err != nil {
		return nil, err
	}
	return resultsFrom(hits), nil
}
