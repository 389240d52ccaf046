// Package eval implements the eval harness (SPEC_FULL.md component J):
// replays a golden-query file against /search or /search-hybrid and scores
// recall@k/precision@k/MRR@k plus latency, aggregated overall and per
// category.
package eval

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Query is one golden query, per spec.md §4.J.
type Query struct {
	ID            string   `json:"id"`
	Query         string   `json:"query"`
	ExpectedFiles []string `json:"expectedFiles"`
	Category      string   `json:"category,omitempty"`
	K             int      `json:"k,omitempty"`
}

// GoldenSet is the golden-query file shape.
type GoldenSet struct {
	ProjectName string  `json:"projectName"`
	Collection  string  `json:"collection"`
	APIURL      string  `json:"apiUrl,omitempty"`
	Queries     []Query `json:"queries"`
}

// SearchFunc runs one query and returns the ranked files of its top-k
// hits, in rank order. Implementations adapt /search or /search-hybrid.
type SearchFunc func(ctx context.Context, query string, k int) ([]string, error)

// QueryResult is one query's scored outcome.
type QueryResult struct {
	ID         string        `json:"id"`
	Category   string        `json:"category,omitempty"`
	Recall     float64       `json:"recall"`
	Precision  float64       `json:"precision"`
	MRR        float64       `json:"mrr"`
	LatencyMS  float64       `json:"latencyMs"`
}

// Report is the aggregate result of running a GoldenSet.
type Report struct {
	Results         []QueryResult      `json:"results"`
	MeanRecall      float64            `json:"meanRecall"`
	MeanPrecision   float64            `json:"meanPrecision"`
	MeanMRR         float64            `json:"meanMRR"`
	MeanByCategory  map[string]float64 `json:"meanRecallByCategory,omitempty"`
	Latency         LatencyStats       `json:"latency"`
}

// LatencyStats is the {mean,p50,p95,p99} latency summary named in
// spec.md §4.J.
type LatencyStats struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

const defaultK = 10

// Run executes every query in set through search, scoring each and
// aggregating the report.
func Run(ctx context.Context, set GoldenSet, search SearchFunc) (Report, error) {
	results := make([]QueryResult, 0, len(set.Queries))
	latencies := make([]float64, 0, len(set.Queries))

	for _, q := range set.Queries {
		k := q.K
		if k <= 0 {
			k = defaultK
		}
		start := time.Now()
		files, err := search(ctx, q.Query, k)
		elapsed := time.Since(start).Seconds() * 1000
		if err != nil {
			results = append(results, QueryResult{ID: q.ID, Category: q.Category, LatencyMS: elapsed})
			latencies = append(latencies, elapsed)
			continue
		}
		r := scoreQuery(q, files, k)
		r.LatencyMS = elapsed
		results = append(results, r)
		latencies = append(latencies, elapsed)
	}

	return aggregate(results, latencies), nil
}

// scoreQuery computes recall@k, precision@k, and MRR@k for one query's
// ranked file results. A hit is suffix-match accepted either direction
// (expected is a suffix of actual, or actual is a suffix of expected),
// tolerating absolute-vs-relative path differences between the golden set
// and the indexer's stored paths.
func scoreQuery(q Query, files []string, k int) QueryResult {
	if len(files) > k {
		files = files[:k]
	}
	expected := q.ExpectedFiles
	if len(expected) == 0 {
		return QueryResult{ID: q.ID, Category: q.Category}
	}

	matchedExpected := make(map[int]bool, len(expected))
	relevantInTopK := 0
	mrr := 0.0
	for rank, f := range files {
		hit := false
		for ei, e := range expected {
			if matchedExpected[ei] {
				continue
			}
			if suffixMatch(e, f) {
				matchedExpected[ei] = true
				hit = true
				break
			}
		}
		if hit {
			relevantInTopK++
			if mrr == 0 {
				mrr = 1.0 / float64(rank+1)
			}
		}
	}

	recall := float64(len(matchedExpected)) / float64(len(expected))
	precision := 0.0
	if k > 0 {
		precision = float64(relevantInTopK) / float64(k)
	}
	return QueryResult{ID: q.ID, Category: q.Category, Recall: recall, Precision: precision, MRR: mrr}
}

func suffixMatch(a, b string) bool {
	return strings.HasSuffix(a, b) || strings.HasSuffix(b, a)
}

func aggregate(results []QueryResult, latencies []float64) Report {
	report := Report{Results: results, MeanByCategory: map[string]float64{}}
	if len(results) == 0 {
		return report
	}
	var sumRecall, sumPrecision, sumMRR float64
	byCategory := map[string][]float64{}
	for _, r := range results {
		sumRecall += r.Recall
		sumPrecision += r.Precision
		sumMRR += r.MRR
		if r.Category != "" {
			byCategory[r.Category] = append(byCategory[r.Category], r.Recall)
		}
	}
	n := float64(len(results))
	report.MeanRecall = sumRecall / n
	report.MeanPrecision = sumPrecision / n
	report.MeanMRR = sumMRR / n
	for cat, vals := range byCategory {
		report.MeanByCategory[cat] = mean(vals)
	}
	report.Latency = latencyStats(latencies)
	return report
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func latencyStats(vals []float64) LatencyStats {
	if len(vals) == 0 {
		return LatencyStats{}
	}
	sorted := append([]float64{}, vals...)
	sort.Float64s(sorted)
	return LatencyStats{
		Mean: mean(sorted),
		P50:  percentile(sorted, 0.50),
		P95:  percentile(sorted, 0.95),
		P99:  percentile(sorted, 0.99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
