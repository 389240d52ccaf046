package databases

import (
	"context"
	"testing"
)

func TestMemoryVector_CollectionContract(t *testing.T) {
	t.Parallel()
	v := NewMemoryVector()
	ctx := context.Background()

	points := []Point{
		{ID: "p1", Vector: []float32{1, 0}, Payload: map[string]any{"file": "a.go", "kind": "code"}},
		{ID: "p2", Vector: []float32{0.9, 0.1}, Payload: map[string]any{"file": "a.go", "kind": "code"}},
		{ID: "p3", Vector: []float32{0, 1}, Payload: map[string]any{"file": "b.md", "kind": "doc"}},
	}
	if err := v.UpsertPoints(ctx, "proj1", points); err != nil {
		t.Fatalf("upsert points: %v", err)
	}

	hits, err := v.Search(ctx, "proj1", []float32{1, 0}, 2, nil, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != "p1" {
		t.Fatalf("unexpected search results: %#v", hits)
	}

	filtered, err := v.Search(ctx, "proj1", []float32{1, 0}, 10, &Filter{Must: []Condition{{Key: "kind", Value: "doc"}}}, 0)
	if err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != "p3" {
		t.Fatalf("expected only doc kind, got %#v", filtered)
	}

	groups, err := v.SearchGroups(ctx, "proj1", []float32{1, 0}, "file", 10, 1, nil)
	if err != nil {
		t.Fatalf("search groups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	if err := v.CreateAlias(ctx, "proj1-live", "proj1"); err != nil {
		t.Fatalf("create alias: %v", err)
	}
	info, ok, err := v.GetAliasInfo(ctx, "proj1-live")
	if err != nil || !ok || info.Collection != "proj1" {
		t.Fatalf("unexpected alias info: %#v ok=%v err=%v", info, ok, err)
	}
	if err := v.SwitchAlias(ctx, "proj1-live", "proj1-v2"); err != nil {
		t.Fatalf("switch alias: %v", err)
	}
	if err := v.UpsertPoints(ctx, "proj1-v2", points[:1]); err != nil {
		t.Fatalf("upsert into v2: %v", err)
	}
	aliasHits, err := v.Search(ctx, "proj1-live", []float32{1, 0}, 10, nil, 0)
	if err != nil {
		t.Fatalf("search via alias: %v", err)
	}
	if len(aliasHits) != 1 || aliasHits[0].ID != "p1" {
		t.Fatalf("alias should resolve to proj1-v2 contents, got %#v", aliasHits)
	}

	cols, err := v.ListCollections(ctx)
	if err != nil || len(cols) < 2 {
		t.Fatalf("expected at least 2 collections, got %#v err=%v", cols, err)
	}

	if err := v.ClearCollection(ctx, "proj1"); err != nil {
		t.Fatalf("clear collection: %v", err)
	}
	info2, err := v.CollectionInfo(ctx, "proj1")
	if err != nil || info2["pointsCount"] != int64(0) {
		t.Fatalf("expected cleared collection, got %#v err=%v", info2, err)
	}
}
