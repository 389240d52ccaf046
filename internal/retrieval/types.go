// Package retrieval implements the retrieval engine (SPEC_FULL.md
// component E): the nine query endpoints (/search, /search-hybrid,
// /search-grouped, /search-similar, /search-graph, /ask, /explain,
// /find-feature, /context-pack), each its own algorithm over the vector-
// store contract rather than a single generic fuser.
package retrieval

import (
	"strconv"

	"knowledgecore/internal/persistence/databases"
)

// Result is one retrieved chunk, the common shape every search endpoint
// returns.
type Result struct {
	File      string  `json:"file,omitempty"`
	Content   string  `json:"content"`
	Language  string  `json:"language,omitempty"`
	Score     float64 `json:"score"`
	StartLine int     `json:"startLine,omitempty"`
	EndLine   int     `json:"endLine,omitempty"`
	ChunkType string  `json:"chunkType,omitempty"`
}

// codeBoostFactor is the ×1.05 score boost applied to code chunks before
// ranking, per spec.md §4.E.
const codeBoostFactor = 1.05

func fromVectorResult(r databases.VectorResult) Result {
	md := r.Metadata
	res := Result{
		Content:   md["content"],
		File:      md["file"],
		Language:  md["language"],
		Score:     r.Score,
		ChunkType: md["chunkType"],
	}
	res.StartLine, _ = strconv.Atoi(md["startLine"])
	res.EndLine, _ = strconv.Atoi(md["endLine"])
	return res
}

func resultsFrom(rs []databases.VectorResult) []Result {
	out := make([]Result, 0, len(rs))
	for _, r := range rs {
		out = append(out, fromVectorResult(r))
	}
	return out
}

// boost multiplies every code-typed result's score by codeBoostFactor.
func boost(results []Result) []Result {
	for i := range results {
		if results[i].ChunkType == "code" {
			results[i].Score *= codeBoostFactor
		}
	}
	return results
}

// dedupByFile keeps at most one result per File (the highest-scoring one),
// retaining file-less results individually. Caller is expected to have
// already sorted by score descending, but dedupByFile sorts itself to be
// safe against call-order mistakes.
func dedupByFile(results []Result) []Result {
	sortByScoreDesc(results)
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.File == "" {
			out = append(out, r)
			continue
		}
		if seen[r.File] {
			continue
		}
		seen[r.File] = true
		out = append(out, r)
	}
	return out
}

func sortByScoreDesc(results []Result) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func trim(results []Result, k int) []Result {
	if k > 0 && len(results) > k {
		return results[:k]
	}
	return results
}

// boostDedupTrim is the shared post-processing pipeline named across
// /search, /search-hybrid, and /ask: boost code chunks, sort, dedup by
// file, then trim to k.
func boostDedupTrim(results []Result, k int) []Result {
	results = boost(results)
	sortByScoreDesc(results)
	results = dedupByFile(results)
	return trim(results, k)
}
