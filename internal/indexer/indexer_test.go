package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
)

func newTestIndexer() *Indexer {
	breakers := reliability.NewRegistry(reliability.BreakerConfig{})
	emb := embedder.NewDeterministic(16, true, 1)
	return New(databases.NewMemoryVector(), databases.NewMemoryGraph(), emb, breakers, false)
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "main.go"), "package main\n\nfunc Alpha() {\n\tprintln(\"a\")\n}\n\nfunc Beta() {\n\tprintln(\"b\")\n}\n")
	mustWrite(t, filepath.Join(dir, "README.md"), "# Title\n\nSome introductory content that is long enough to survive.\n\n## Usage\n\nMore content describing usage in depth.\n")
	mustWrite(t, filepath.Join(dir, "node_modules", "skip.go"), "package skip\n\nfunc ShouldBeExcluded() {}\n")
	return dir
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIndexProject_CompletesAndRejectsConcurrentRun(t *testing.T) {
	idx := newTestIndexer()
	dir := writeTree(t)
	req := IndexRequest{Project: "acme", Path: dir, ExcludePatterns: []string{"node_modules/*"}}

	if err := idx.IndexProject(context.Background(), req); err != nil {
		t.Fatalf("IndexProject: %v", err)
	}
	if err := idx.IndexProject(context.Background(), req); err == nil {
		t.Fatalf("expected already_indexing rejection for concurrent run")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := idx.GetIndexStatus("acme")
		if s.State == StateCompleted || s.State == StateError {
			if s.State == StateError {
				t.Fatalf("indexing ended in error: %+v", s.Errors)
			}
			if s.IndexedFiles == 0 {
				t.Fatalf("expected at least one file indexed")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("indexing did not complete in time")
}

func TestGetProjectStats(t *testing.T) {
	idx := newTestIndexer()
	dir := writeTree(t)
	stats, err := idx.GetProjectStats("acme", dir, nil, []string{"node_modules/*"})
	if err != nil {
		t.Fatalf("GetProjectStats: %v", err)
	}
	if stats.FileCount != 2 {
		t.Fatalf("expected 2 files (excluding node_modules), got %d", stats.FileCount)
	}
}

func TestDeterministicID_StableAcrossCalls(t *testing.T) {
	a := deterministicID("acme", "main.go", 1, 5, "func Alpha() {}")
	b := deterministicID("acme", "main.go", 1, 5, "func Alpha() {}")
	if a != b {
		t.Fatalf("expected stable id across identical inputs, got %q vs %q", a, b)
	}
	c := deterministicID("acme", "main.go", 1, 5, "func Beta() {}")
	if a == c {
		t.Fatalf("expected different content to yield a different id")
	}
}
