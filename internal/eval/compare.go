package eval

// recallDeltaThreshold is the Δrecall spec.md §4.J's compare treats as a
// genuine improvement/degradation rather than noise.
const recallDeltaThreshold = 0.01

// Delta is one query's before/after comparison.
type Delta struct {
	ID            string  `json:"id"`
	RecallBefore  float64 `json:"recallBefore"`
	RecallAfter   float64 `json:"recallAfter"`
	RecallDelta   float64 `json:"recallDelta"`
}

// Comparison is compare(before, after)'s result: overall metric deltas
// plus the ids whose recall moved past the threshold in either direction.
type Comparison struct {
	MeanRecallDelta    float64 `json:"meanRecallDelta"`
	MeanPrecisionDelta float64 `json:"meanPrecisionDelta"`
	MeanMRRDelta       float64 `json:"meanMRRDelta"`
	LatencyMeanDelta   float64 `json:"latencyMeanDelta"`
	Improved           []Delta `json:"improved"`
	Degraded           []Delta `json:"degraded"`
}

// Compare implements spec.md §4.J's compare(before, after): deltas per
// aggregate metric, and per-query ids whose recall improved or degraded by
// more than recallDeltaThreshold.
func Compare(before, after Report) Comparison {
	c := Comparison{
		MeanRecallDelta:    after.MeanRecall - before.MeanRecall,
		MeanPrecisionDelta: after.MeanPrecision - before.MeanPrecision,
		MeanMRRDelta:       after.MeanMRR - before.MeanMRR,
		LatencyMeanDelta:   after.Latency.Mean - before.Latency.Mean,
	}

	beforeByID := make(map[string]QueryResult, len(before.Results))
	for _, r := range before.Results {
		beforeByID[r.ID] = r
	}
	for _, a := range after.Results {
		b, ok := beforeByID[a.ID]
		if !ok {
			continue
		}
		d := Delta{ID: a.ID, RecallBefore: b.Recall, RecallAfter: a.Recall, RecallDelta: a.Recall - b.Recall}
		switch {
		case d.RecallDelta > recallDeltaThreshold:
			c.Improved = append(c.Improved, d)
		case d.RecallDelta < -recallDeltaThreshold:
			c.Degraded = append(c.Degraded, d)
		}
	}
	return c
}
