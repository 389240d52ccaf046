package session

import (
	"context"
	"testing"
	"time"

	"knowledgecore/internal/cache"
	"knowledgecore/internal/config"
	"knowledgecore/internal/memory"
	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
)

func newTestManager() *Manager {
	c := cache.New(config.CacheConfig{L1MaxEntries: 100})
	store := databases.NewMemoryVector()
	emb := embedder.NewDeterministic(16, true, 2)
	reg := reliability.NewRegistry(reliability.BreakerConfig{})
	mem := memory.New(store, emb, reg)
	return New(c, mem, NoopPrefetcher{})
}

func TestStartSession_ResumeInheritsBoundedState(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	first := m.StartSession(ctx, "proj1", "")
	for i := 0; i < 8; i++ {
		_, _ = m.RecordActivity(ctx, first.ID, Activity{Query: "query"})
	}
	_, _ = m.RecordActivity(ctx, first.ID, Activity{File: "main.go"})
	_ = m.RecordDecision(first.ID, "use postgres")

	resumed := m.StartSession(ctx, "proj1", first.ID)
	if len(resumed.RecentQueries) != trailingQueriesForResume {
		t.Fatalf("expected %d trailing queries inherited, got %d", trailingQueriesForResume, len(resumed.RecentQueries))
	}
	if len(resumed.CurrentFiles) != 1 || resumed.CurrentFiles[0] != "main.go" {
		t.Fatalf("expected currentFiles inherited, got %+v", resumed.CurrentFiles)
	}
	if len(resumed.Decisions) != 1 {
		t.Fatalf("expected decisions inherited, got %+v", resumed.Decisions)
	}
}

func TestRecordActivity_BoundsFilesAndQueries(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	sc := m.StartSession(ctx, "proj1", "")
	for i := 0; i < maxFiles+5; i++ {
		_, _ = m.RecordActivity(ctx, sc.ID, Activity{File: "f"})
	}
	got, _ := m.Get(sc.ID)
	if len(got.CurrentFiles) != maxFiles {
		t.Fatalf("expected currentFiles capped at %d, got %d", maxFiles, len(got.CurrentFiles))
	}
}

func TestEndSession_MaterializesLearningsAndDecisions(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	sc := m.StartSession(ctx, "proj1", "")
	_ = m.RecordLearning(sc.ID, "the retriever dedups by file")
	_ = m.RecordDecision(sc.ID, "switch to hybrid search")

	summary, err := m.EndSession(ctx, sc.ID)
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if summary.LearningsSaved != 2 {
		t.Fatalf("expected 2 memories saved (1 insight + 1 decision), got %d", summary.LearningsSaved)
	}
	if _, ok := m.Get(sc.ID); ok {
		t.Fatalf("expected session removed after end")
	}
}

func TestPredictiveLoader_SwallowsSearchErrors(t *testing.T) {
	c := cache.New(config.CacheConfig{})
	called := make(chan struct{}, 1)
	loader := NewPredictiveLoader(func(ctx context.Context, project, query string) error {
		select {
		case called <- struct{}{}:
		default:
		}
		return context.DeadlineExceeded
	}, c, 2)
	loader.Prefetch(context.Background(), "proj1", Context{RecentQueries: []string{"q1"}})
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("expected prefetch search to be invoked")
	}
}
