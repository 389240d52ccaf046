package eval

import (
	"context"
	"testing"
)

func stubSearch(byQuery map[string][]string) SearchFunc {
	return func(_ context.Context, query string, k int) ([]string, error) {
		files := byQuery[query]
		if len(files) > k {
			files = files[:k]
		}
		return files, nil
	}
}

func TestRun_ScoresRecallPrecisionMRR(t *testing.T) {
	set := GoldenSet{
		ProjectName: "acme",
		Collection:  "acme_codebase",
		Queries: []Query{
			{ID: "q1", Query: "auth flow", ExpectedFiles: []string{"internal/auth/login.go"}, K: 3},
		},
	}
	search := stubSearch(map[string][]string{
		"auth flow": {"internal/other/file.go", "internal/auth/login.go", "internal/third/file.go"},
	})
	report, err := Run(context.Background(), set, search)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	r := report.Results[0]
	if r.Recall != 1.0 {
		t.Errorf("expected recall 1.0, got %v", r.Recall)
	}
	if r.MRR != 0.5 {
		t.Errorf("expected MRR 0.5 (rank 2), got %v", r.MRR)
	}
	want := 1.0 / 3.0
	if diff := r.Precision - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected precision %v, got %v", want, r.Precision)
	}
}

func TestRun_NoMatchYieldsZeroScores(t *testing.T) {
	set := GoldenSet{Queries: []Query{{ID: "q1", Query: "x", ExpectedFiles: []string{"a.go"}, K: 2}}}
	search := stubSearch(map[string][]string{"x": {"b.go", "c.go"}})
	report, _ := Run(context.Background(), set, search)
	if report.Results[0].Recall != 0 || report.Results[0].MRR != 0 {
		t.Errorf("expected zero recall/MRR on no match, got %+v", report.Results[0])
	}
}

func TestCompare_FlagsImprovedAndDegraded(t *testing.T) {
	before := Report{Results: []QueryResult{
		{ID: "q1", Recall: 0.5}, {ID: "q2", Recall: 0.9}, {ID: "q3", Recall: 0.5},
	}}
	after := Report{Results: []QueryResult{
		{ID: "q1", Recall: 0.9}, {ID: "q2", Recall: 0.4}, {ID: "q3", Recall: 0.505},
	}}
	cmp := Compare(before, after)
	if len(cmp.Improved) != 1 || cmp.Improved[0].ID != "q1" {
		t.Errorf("expected q1 improved, got %+v", cmp.Improved)
	}
	if len(cmp.Degraded) != 1 || cmp.Degraded[0].ID != "q2" {
		t.Errorf("expected q2 degraded, got %+v", cmp.Degraded)
	}
}

func TestLatencyStats_Percentiles(t *testing.T) {
	stats := latencyStats([]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})
	if stats.P50 <= 0 || stats.P95 <= 0 || stats.P99 <= 0 {
		t.Errorf("expected nonzero percentiles, got %+v", stats)
	}
	if stats.P99 < stats.P50 {
		t.Errorf("expected p99 >= p50, got %+v", stats)
	}
}
