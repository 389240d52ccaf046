package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// findFeatureK and the main/related split are named in spec.md §4.E.
const (
	findFeatureK        = 10
	findFeatureMainN    = 3
	findFeatureExplainN = 5
)

// FileGroup is one file bucket of a /find-feature response, ranked by its
// best-scoring chunk.
type FileGroup struct {
	File      string   `json:"file"`
	TopScore  float64  `json:"topScore"`
	Snippets  []Result `json:"snippets"`
}

// FindFeatureResponse is /find-feature's response shape.
type FindFeatureResponse struct {
	MainFiles    []FileGroup `json:"mainFiles"`
	RelatedFiles []FileGroup `json:"relatedFiles"`
	Explanation  string      `json:"explanation,omitempty"`
}

// FindFeature implements /find-feature: semantic search for 10 chunks,
// group by file, sort groups by their top chunk's score, split the top 3
// into mainFiles and the next 3 into relatedFiles, then ask the LLM for an
// explanation spanning the top 5 files.
func (e *Engine) FindFeature(ctx context.Context, collection, query string) (FindFeatureResponse, error) {
	vec, err := e.embed(ctx, query)
	if err != nil {
		return FindFeatureResponse{}, err
	}
	hits, err := e.search(ctx, collection, vec, findFeatureK, nil, 0)
	if err != nil {
		return FindFeatureResponse{}, err
	}
	results := boost(resultsFrom(hits))

	byFile := make(map[string][]Result)
	order := make([]string, 0)
	for _, r := range results {
		if r.File == "" {
			continue
		}
		if _, ok := byFile[r.File]; !ok {
			order = append(order, r.File)
		}
		byFile[r.File] = append(byFile[r.File], r)
	}

	groups := make([]FileGroup, 0, len(order))
	for _, f := range order {
		snips := byFile[f]
		sortByScoreDesc(snips)
		groups = append(groups, FileGroup{File: f, TopScore: snips[0].Score, Snippets: snips})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].TopScore > groups[j].TopScore })

	main := groups
	var related []FileGroup
	if len(groups) > findFeatureMainN {
		main = groups[:findFeatureMainN]
		end := findFeatureMainN * 2
		if end > len(groups) {
			end = len(groups)
		}
		related = groups[findFeatureMainN:end]
	}

	resp := FindFeatureResponse{MainFiles: main, RelatedFiles: related}
	if e.LLM == nil {
		return resp, nil
	}

	explainSet := append(append([]FileGroup{}, main...), related...)
	if len(explainSet) > findFeatureExplainN {
		explainSet = explainSet[:findFeatureExplainN]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Feature query: %s\n\n", query)
	for _, g := range explainSet {
		for _, s := range g.Snippets {
			fmt.Fprintf(&b, "File: %s\n%s\n\n", s.File, s.Content)
		}
	}
	explanation, err := e.chat(ctx, findFeatureSystemPrompt, b.String())
	if err != nil {
		return resp, nil
	}
	resp.Explanation = explanation
	return resp, nil
}

const findFeatureSystemPrompt = "You explain how a feature is implemented across a codebase, given the files most " +
	"relevant to it. Describe the flow across files plainly; don't repeat the file contents verbatim."
