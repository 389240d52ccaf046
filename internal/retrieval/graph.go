package retrieval

import (
	"context"

	"knowledgecore/internal/persistence/databases"
)

// MaxGraphExpandedFiles and MaxChunksPerExpandedFile are the search-graph
// expansion caps named in spec.md §4.E.
const (
	MaxGraphExpandedFiles    = 10
	MaxChunksPerExpandedFile = 2
)

// GraphSearchResult is /search-graph's response shape: semantic seed hits
// plus graph-expanded neighbours, kept separate per spec.md §4.E.
type GraphSearchResult struct {
	Results        []Result `json:"results"`
	GraphExpanded  bool     `json:"graphExpanded"`
	ExpandedFiles  []string `json:"expandedFiles"`
}

// SearchGraph implements /search-graph: semantic search for seed files,
// expand along the import/reference graph up to hops steps, then run a
// bounded per-file filtered search over the newly discovered files.
func (e *Engine) SearchGraph(ctx context.Context, collection, query string, k, hops int) (GraphSearchResult, error) {
	if k <= 0 {
		k = 10
	}
	if hops <= 0 {
		hops = 1
	}
	seedResults, err := e.Search(ctx, collection, query, k)
	if err != nil {
		return GraphSearchResult{}, err
	}

	if e.Graph == nil {
		return GraphSearchResult{Results: seedResults, GraphExpanded: false}, nil
	}

	seedFiles := make(map[string]bool)
	for _, r := range seedResults {
		if r.File != "" {
			seedFiles[r.File] = true
		}
	}

	expanded := e.expandGraph(ctx, seedFiles, hops)
	if len(expanded) == 0 {
		return GraphSearchResult{Results: seedResults, GraphExpanded: false}, nil
	}
	if len(expanded) > MaxGraphExpandedFiles {
		expanded = expanded[:MaxGraphExpandedFiles]
	}

	all := append([]Result{}, seedResults...)
	for _, file := range expanded {
		hits, err := e.search(ctx, collection, nil, MaxChunksPerExpandedFile, &databases.Filter{
			Must: []databases.Condition{{Key: "file", Value: file}},
		}, 0)
		if err != nil {
			continue
		}
		all = append(all, resultsFrom(hits)...)
	}

	return GraphSearchResult{Results: all, GraphExpanded: true, ExpandedFiles: expanded}, nil
}

// expandGraph BFS's the graph store's edges from the seed files up to hops
// steps, returning files reachable but not already in the seed set.
func (e *Engine) expandGraph(ctx context.Context, seeds map[string]bool, hops int) []string {
	frontier := make([]string, 0, len(seeds))
	for f := range seeds {
		frontier = append(frontier, f)
	}
	visited := make(map[string]bool, len(seeds))
	for f := range seeds {
		visited[f] = true
	}
	discovered := make([]string, 0)

	for step := 0; step < hops && len(frontier) > 0; step++ {
		next := make([]string, 0)
		for _, node := range frontier {
			neighbors, err := e.Graph.Neighbors(ctx, node, "")
			if err != nil {
				continue
			}
			for _, n := range neighbors {
				if visited[n] {
					continue
				}
				visited[n] = true
				discovered = append(discovered, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return discovered
}
