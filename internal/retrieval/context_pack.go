package retrieval

import (
	"context"
	"sort"

	"knowledgecore/internal/llm"
	"knowledgecore/internal/memory"
	"knowledgecore/internal/persistence/databases"
)

// Facet names a /context-pack item's source, for attribution in the
// response per spec.md §4.E.
type Facet string

const (
	FacetSemantic Facet = "semantic"
	FacetMemory   Facet = "memory"
	FacetTest     Facet = "test"
	FacetGraph    Facet = "graph"
)

// PackedItem is one item of a packed context, tagged with which facet
// surfaced it.
type PackedItem struct {
	Facet  Facet  `json:"facet"`
	Result Result `json:"result"`
	Tokens int    `json:"tokens"`
}

// ContextPackOptions toggles which facets /context-pack gathers beyond the
// always-on semantic search.
type ContextPackOptions struct {
	Project       string
	IncludeMemory bool
	IncludeTests  bool
	IncludeGraph  bool
	TokenBudget   int
}

// ContextPackResponse is /context-pack's response: the packed items in the
// order they were accepted, the running token total, and whether any
// candidate had to be dropped for exceeding the budget.
type ContextPackResponse struct {
	Items      []PackedItem `json:"items"`
	TotalTokens int         `json:"totalTokens"`
	Truncated   bool        `json:"truncated"`
}

const (
	contextPackSemanticK = 12
	contextPackMemoryK   = 5
	contextPackTestK     = 5
	defaultTokenBudget   = 4000
)

// ContextPack implements /context-pack: gather candidates from every
// enabled facet (semantic hits always; ADR-type memories, test files, and
// graph-expanded neighbours when requested), re-rank the combined pool by
// score, and pack greedily highest-score-first until the token budget is
// spent.
func (e *Engine) ContextPack(ctx context.Context, collection, query string, opt ContextPackOptions) (ContextPackResponse, error) {
	budget := opt.TokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	vec, err := e.embed(ctx, query)
	if err != nil {
		return ContextPackResponse{}, err
	}

	var candidates []PackedItem

	hits, err := e.search(ctx, collection, vec, contextPackSemanticK, nil, 0)
	if err != nil {
		return ContextPackResponse{}, err
	}
	for _, r := range boost(resultsFrom(hits)) {
		candidates = append(candidates, PackedItem{Facet: FacetSemantic, Result: r})
	}

	if opt.IncludeMemory && e.Memory != nil && opt.Project != "" {
		scored, err := e.Memory.Recall(ctx, opt.Project, query, memory.RecallOptions{Type: memory.TypeDecision, Limit: contextPackMemoryK})
		if err == nil {
			for _, sm := range scored {
				candidates = append(candidates, PackedItem{Facet: FacetMemory, Result: Result{
					Content: sm.Memory.Content,
					Score:   sm.Score,
				}})
			}
		}
	}

	if opt.IncludeTests {
		testHits, err := e.search(ctx, collection, vec, contextPackTestK, &databases.Filter{
			Must: []databases.Condition{{Key: "file", Text: "test"}},
		}, 0)
		if err == nil {
			for _, r := range resultsFrom(testHits) {
				candidates = append(candidates, PackedItem{Facet: FacetTest, Result: r})
			}
		}
	}

	if opt.IncludeGraph && e.Graph != nil {
		seedFiles := make(map[string]bool)
		for _, c := range candidates {
			if c.Result.File != "" {
				seedFiles[c.Result.File] = true
			}
		}
		expanded := e.expandGraph(ctx, seedFiles, 1)
		if len(expanded) > MaxGraphExpandedFiles {
			expanded = expanded[:MaxGraphExpandedFiles]
		}
		for _, file := range expanded {
			fileHits, err := e.search(ctx, collection, nil, MaxChunksPerExpandedFile, &databases.Filter{
				Must: []databases.Condition{{Key: "file", Value: file}},
			}, 0)
			if err != nil {
				continue
			}
			for _, r := range resultsFrom(fileHits) {
				candidates = append(candidates, PackedItem{Facet: FacetGraph, Result: r})
			}
		}
	}

	for i := range candidates {
		candidates[i].Tokens = llm.EstimateTokens(candidates[i].Result.Content)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Result.Score > candidates[j].Result.Score })

	packed := make([]PackedItem, 0, len(candidates))
	total := 0
	truncated := false
	for _, c := range candidates {
		if total+c.Tokens > budget {
			truncated = true
			continue
		}
		packed = append(packed, c)
		total += c.Tokens
	}

	return ContextPackResponse{Items: packed, TotalTokens: total, Truncated: truncated}, nil
}
