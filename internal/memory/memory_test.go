package memory

import (
	"context"
	"testing"
	"time"

	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func newTestService() *Service {
	store := databases.NewMemoryVector()
	emb := embedder.NewDeterministic(32, true, 1)
	reg := reliability.NewRegistry(reliability.BreakerConfig{})
	return New(store, emb, reg)
}

func TestRemember_TodoGetsPendingStatus(t *testing.T) {
	s := newTestService()
	m, err := s.Remember(context.Background(), "proj1", TypeTodo, "write tests", nil, nil)
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	if m.Status != TodoPending {
		t.Fatalf("expected pending status, got %q", m.Status)
	}
	if len(m.StatusHistory) != 1 || m.StatusHistory[0].Status != TodoPending {
		t.Fatalf("expected statusHistory seeded with pending, got %+v", m.StatusHistory)
	}
}

func TestRecall_FiltersByTypeAndDropsSuperseded(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	fact, _ := s.Remember(ctx, "proj1", TypeFact, "the service uses postgres", nil, nil)
	_, _ = s.Remember(ctx, "proj1", TypeDecision, "use postgres for storage", nil, nil)

	results, err := s.Recall(ctx, "proj1", "postgres storage", RecallOptions{Type: TypeFact, Limit: 5})
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(results) != 1 || results[0].Memory.ID != fact.ID {
		t.Fatalf("expected only the fact memory, got %+v", results)
	}

	// Validate it and run a merge pass, then mark it superseded and confirm
	// recall drops it.
	if _, err := s.ValidateMemory(ctx, "proj1", fact.ID, true); err != nil {
		t.Fatalf("validate: %v", err)
	}
	clusters, err := s.MergeMemories(ctx, "proj1", MergeOptions{Threshold: 0.0})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	_ = clusters

	superseded, ok, err := s.get(ctx, "proj1", fact.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	superseded.SupersededBy = "replacement"
	vec, err := s.embed(ctx, string(superseded.Type)+": "+superseded.Content)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := s.upsert(ctx, "proj1", databases.Point{ID: superseded.ID, Vector: vec, Payload: payloadOf(superseded)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	results, err = s.Recall(ctx, "proj1", "postgres storage", RecallOptions{Type: TypeFact, Limit: 5})
	if err != nil {
		t.Fatalf("recall after supersede: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected superseded fact to be dropped, got %+v", results)
	}
}

func TestUpdateTodoStatus_IllegalTransitionRejected(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	todo, err := s.Remember(ctx, "proj1", TypeTodo, "ship the feature", nil, nil)
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	if _, err := s.UpdateTodoStatus(ctx, "proj1", todo.ID, TodoDone); err == nil {
		t.Fatalf("expected pending->done to be rejected")
	}
	if _, err := s.UpdateTodoStatus(ctx, "proj1", todo.ID, TodoInProgress); err != nil {
		t.Fatalf("pending->in_progress should succeed: %v", err)
	}
	updated, err := s.UpdateTodoStatus(ctx, "proj1", todo.ID, TodoDone)
	if err != nil {
		t.Fatalf("in_progress->done should succeed: %v", err)
	}
	if updated.Status != TodoDone || len(updated.StatusHistory) != 3 {
		t.Fatalf("expected 3 history entries (pending,in_progress,done), got %+v", updated.StatusHistory)
	}
}

func TestDecayFactor_MatchesAgingFormula(t *testing.T) {
	cases := []struct {
		ageDays   float64
		validated bool
		want      float64
	}{
		{10, false, 1.0},
		{29, false, 1.0},
		{30, false, 1.0},
		{60, false, 0.95},
		{95, false, 0.9},
		{1000, false, 0.5},
		{1000, true, 1.0},
	}
	for _, c := range cases {
		got := decayFactor(c.ageDays, c.validated)
		if got != c.want {
			t.Fatalf("decayFactor(%v,%v)=%v want %v", c.ageDays, c.validated, got, c.want)
		}
	}
}

func TestForgetByType_RemovesAllOfType(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	_, _ = s.Remember(ctx, "proj1", TypeInsight, "insight one", nil, nil)
	_, _ = s.Remember(ctx, "proj1", TypeInsight, "insight two", nil, nil)
	_, _ = s.Remember(ctx, "proj1", TypeFact, "unrelated fact", nil, nil)

	n, err := s.ForgetByType(ctx, "proj1", TypeInsight)
	if err != nil {
		t.Fatalf("forgetByType: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	stats, err := s.GetStats(ctx, "proj1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.ByType[TypeInsight] != 0 || stats.ByType[TypeFact] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestBatchRemember_CollectsPerItemErrorsWithoutAborting(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	result, err := s.BatchRemember(ctx, "proj1", []BatchItem{
		{Type: TypeFact, Content: "fact a"},
		{Type: TypeFact, Content: "fact b"},
	})
	if err != nil {
		t.Fatalf("batchRemember: %v", err)
	}
	if len(result.Saved) != 2 || len(result.Errors) != 0 {
		t.Fatalf("expected 2 saved, 0 errors, got %+v", result)
	}

	// An embedder that returns one vector too few leaves the last item
	// without an embedding; it is reported while the rest are saved.
	short := New(databases.NewMemoryVector(), shortEmbedder{embedder.NewDeterministic(32, true, 1)}, reliability.NewRegistry(reliability.BreakerConfig{}))
	result, err = short.BatchRemember(ctx, "proj1", []BatchItem{
		{Type: TypeFact, Content: "fact a"},
		{Type: TypeFact, Content: "fact b"},
	})
	if err != nil {
		t.Fatalf("batchRemember with short embedder: %v", err)
	}
	if len(result.Saved) != 1 || len(result.Errors) != 1 || result.Errors[0].Index != 1 {
		t.Fatalf("expected 1 saved and an error for item 1, got %+v", result)
	}
}

type shortEmbedder struct{ embedder.Embedder }

func (e shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.Embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vecs) == 0 {
		return vecs, err
	}
	return vecs[:len(vecs)-1], nil
}
