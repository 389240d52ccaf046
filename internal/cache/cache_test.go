package cache

import (
	"testing"
	"time"

	"knowledgecore/internal/config"
)

func newTestCache() *Cache {
	return New(config.CacheConfig{L1MaxEntries: 2})
}

func TestCache_L1SetGetAndLRUEviction(t *testing.T) {
	c := newTestCache()
	c.SetL1("a", []byte("1"), "proj1", 0)
	c.SetL1("b", []byte("2"), "proj1", 0)
	if _, ok := c.GetL1("a"); !ok {
		t.Fatalf("expected a to be present")
	}
	// c is now full at capacity 2; inserting a third evicts the LRU tail (b,
	// since a was just touched by the Get above).
	c.SetL1("c", []byte("3"), "proj1", 0)
	if _, ok := c.GetL1("b"); ok {
		t.Fatalf("expected b evicted as LRU")
	}
	if _, ok := c.GetL1("a"); !ok {
		t.Fatalf("expected a to survive eviction")
	}
}

func TestCache_L1ExpiresByTTL(t *testing.T) {
	c := newTestCache()
	c.SetL1("k", []byte("v"), "", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.GetL1("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestCache_InvalidateScope(t *testing.T) {
	c := newTestCache()
	c.SetL1("x", []byte("1"), "session:abc", 0)
	c.SetL1("y", []byte("2"), "session:abc", 0)
	c.SetL1("z", []byte("3"), "session:other", 0)
	c.InvalidateScope("session:abc")
	if _, ok := c.GetL1("x"); ok {
		t.Fatalf("expected x invalidated")
	}
	if _, ok := c.GetL1("z"); !ok {
		t.Fatalf("expected z (different scope) to survive")
	}
}

func TestCache_GetStatsTracksHitsAndMisses(t *testing.T) {
	c := newTestCache()
	c.SetL1("k", []byte("v"), "", 0)
	c.GetL1("k")
	c.GetL1("missing")
	stats := c.GetStats()
	l1 := stats["l1"]
	if l1.Hits != 1 || l1.Misses != 1 {
		t.Fatalf("expected 1 hit/1 miss, got %+v", l1)
	}
}

func TestCache_WithoutRedisL2L3AlwaysMiss(t *testing.T) {
	c := newTestCache()
	if _, ok := c.GetEmbedding(nil, "text"); ok { // nil ctx fine: redis client is nil, short-circuits
		t.Fatalf("expected miss with no redis client")
	}
}
