package retrieval

import (
	"context"
	"strings"

	"knowledgecore/internal/persistence/databases"
)

// overfetchFactor is the "3k fetched to preserve k after dedup" ratio named
// in spec.md §4.E.
const overfetchFactor = 3

// Search implements /search: embed the query, search, boost code chunks,
// dedup by file, trim to k.
func (e *Engine) Search(ctx context.Context, collection, query string, k int) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := e.search(ctx, collection, vec, k*overfetchFactor, nil, 0)
	if err != nil {
		return nil, err
	}
	return boostDedupTrim(resultsFrom(hits), k), nil
}

// HybridMode reports which fusion path /search-hybrid took.
type HybridMode string

const (
	ModeNativeSparse   HybridMode = "native-sparse"
	ModeTextMatchFusion HybridMode = "text-match-fusion"
)

// HybridResult wraps a /search-hybrid response with its fusion mode tag.
type HybridResult struct {
	Results []Result   `json:"results"`
	Mode    HybridMode `json:"mode"`
}

// SparseEmbedder is implemented by embedders that can also produce a sparse
// vector for native hybrid search; most embedders only produce dense
// vectors, in which case /search-hybrid falls back to keyword fusion.
type SparseEmbedder interface {
	EmbedFull(ctx context.Context, text string) (dense []float32, sparse map[uint32]float32, err error)
}

// SearchHybrid implements /search-hybrid: when the configured embedder
// supports native sparse vectors, it runs a single searchHybridNative call
// over 3k candidates; otherwise it falls back to keyword fusion — a 2k
// semantic search fused with a keyword-filtered second search, weighted
// w*semantic + (1-w)*keyword (default w=0.7).
func (e *Engine) SearchHybrid(ctx context.Context, collection, query string, k int, weight float64) (HybridResult, error) {
	if k <= 0 {
		k = 10
	}
	if se, ok := e.Emb.(SparseEmbedder); ok {
		dense, sparse, err := se.EmbedFull(ctx, query)
		if err != nil {
			return HybridResult{}, err
		}
		var hits []databases.VectorResult
		err = e.Breakers.Get("vectorStore").Execute(func() error {
			r, err := e.Vector.SearchHybridNative(ctx, collection, dense, sparse, k*overfetchFactor, nil)
			if err != nil {
				return err
			}
			hits = r
			return nil
		})
		if err != nil {
			return HybridResult{}, err
		}
		return HybridResult{Results: boostDedupTrim(resultsFrom(hits), k), Mode: ModeNativeSparse}, nil
	}
	return e.searchHybridKeywordFusion(ctx, collection, query, k, weight)
}

// searchHybridKeywordFusion is the fallback path: semantic search 2k,
// keyword-filtered second search, fuse per spec.md §8 scenario 2's worked
// example.
func (e *Engine) searchHybridKeywordFusion(ctx context.Context, collection, query string, k int, weight float64) (HybridResult, error) {
	if weight <= 0 {
		weight = 0.7
	}
	vec, err := e.embed(ctx, query)
	if err != nil {
		return HybridResult{}, err
	}
	semanticHits, err := e.search(ctx, collection, vec, 2*k, nil, 0)
	if err != nil {
		return HybridResult{}, err
	}

	keywords := extractKeywords(query)
	semanticScore := make(map[string]float64, len(semanticHits))
	byID := make(map[string]databases.VectorResult, len(semanticHits))
	for _, h := range semanticHits {
		semanticScore[h.ID] = h.Score
		byID[h.ID] = h
	}

	for _, kw := range keywords {
		filtered, err := e.search(ctx, collection, vec, 2*k, &databases.Filter{
			Must: []databases.Condition{{Key: "content", Text: kw}},
		}, 0)
		if err != nil {
			continue
		}
		for _, h := range filtered {
			if _, ok := byID[h.ID]; !ok {
				byID[h.ID] = h
			}
		}
	}

	fused := make([]Result, 0, len(byID))
	for id, h := range byID {
		content := strings.ToLower(h.Metadata["content"])
		matched := 0
		for _, kw := range keywords {
			if strings.Contains(content, strings.ToLower(kw)) {
				matched++
			}
		}
		keywordScore := 0.0
		if len(keywords) > 0 {
			keywordScore = float64(matched) / float64(len(keywords))
		}
		dense := semanticScore[id]
		score := weight*dense + (1-weight)*keywordScore
		r := fromVectorResult(h)
		r.Score = score
		fused = append(fused, r)
	}
	return HybridResult{Results: boostDedupTrim(fused, k), Mode: ModeTextMatchFusion}, nil
}

// extractKeywords splits query on whitespace, keeping tokens longer than 2
// characters, per spec.md §4.E.
func extractKeywords(query string) []string {
	fields := strings.Fields(query)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}
