// Package cache implements the three-tier cache service (SPEC_FULL.md
// component H): an in-process L1 tier for session-local state, and L2
// (project-shared) / L3 (global) tiers backed by Redis, all write-through
// with scope-tagged keys for O(1) invalidation.
package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"knowledgecore/internal/config"
)

// Level identifies one of the three cache tiers.
type Level string

const (
	L1 Level = "l1"
	L2 Level = "l2"
	L3 Level = "l3"
)

// Default TTLs per spec.md §4.H: embeddings cache for a day, search results
// for 10 minutes, session state for an hour.
const (
	EmbeddingTTL = 24 * time.Hour
	SearchTTL    = 10 * time.Minute
	SessionTTL   = time.Hour
)

// levelStats tracks hit/miss counters for one tier.
type levelStats struct {
	mu   sync.Mutex
	hits int64
	miss int64
}

func (s *levelStats) hit()  { s.mu.Lock(); s.hits++; s.mu.Unlock() }
func (s *levelStats) missf() { s.mu.Lock(); s.miss++; s.mu.Unlock() }

func (s *levelStats) snapshot() (hits, miss int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.miss
}

// entry is one L1 cached value plus its scope tag, used for bulk invalidation.
type entry struct {
	key     string
	value   []byte
	scope   string
	expires time.Time
}

// Cache is the three-tier cache service. L1 is a bounded in-process LRU; L2
// and L3 share a Redis client distinguished only by key prefix and TTL, per
// spec.md's note that L2/L3 differ in scope not mechanism.
type Cache struct {
	redis *redis.Client

	mu       sync.Mutex
	l1       map[string]*list.Element
	l1Order  *list.List
	l1Max    int
	l1ByScope map[string]map[string]struct{}

	l2TTL time.Duration
	l3TTL time.Duration

	statsL1, statsL2, statsL3 levelStats
}

// New constructs a Cache from process configuration. An empty
// cfg.RedisAddr (e.g. a zero CacheConfig in a test) leaves the Redis client
// nil, which degrades L2/L3 to always-miss, leaving L1 fully functional.
func New(cfg config.CacheConfig) *Cache {
	var rc *redis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rc = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	max := cfg.L1MaxEntries
	if max <= 0 {
		max = 4096
	}
	l2 := time.Duration(cfg.L2TTLSeconds) * time.Second
	if l2 <= 0 {
		l2 = SearchTTL
	}
	l3 := time.Duration(cfg.L3TTLSeconds) * time.Second
	if l3 <= 0 {
		l3 = EmbeddingTTL
	}
	return &Cache{
		redis:     rc,
		l1:        make(map[string]*list.Element),
		l1Order:   list.New(),
		l1Max:     max,
		l1ByScope: make(map[string]map[string]struct{}),
		l2TTL:     l2,
		l3TTL:     l3,
	}
}

// Close releases the Redis connection, if any.
func (c *Cache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

// Key helpers (spec.md §4.H's session/embed/search key shapes).

// SessionKey returns the L1 key for a project's session state.
func SessionKey(project, sessionID string) string {
	return fmt.Sprintf("session:%s:%s", project, sessionID)
}

// EmbedKey returns the cache key for an embedding, hashed by text so long
// inputs don't blow out the key size.
func EmbedKey(text string) string {
	return fmt.Sprintf("embed:%s", hashString(text))
}

// SearchKey returns the cache key for a search result set, hashed over the
// collection/query/options triple.
func SearchKey(collection, query string, opts any) string {
	b, _ := json.Marshal(opts)
	return fmt.Sprintf("search:%s", hashString(collection+"|"+query+"|"+string(b)))
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}

// GetL1 reads a session-local value. Reads are by key only; the scope tag
// set by SetL1 matters only for InvalidateScope.
func (c *Cache) GetL1(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.l1[key]
	if !ok {
		c.statsL1.missf()
		return nil, false
	}
	e := el.Value.(*entry)
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		c.removeL1Locked(el)
		c.statsL1.missf()
		return nil, false
	}
	c.l1Order.MoveToFront(el)
	c.statsL1.hit()
	return e.value, true
}

// SetL1 writes a session-local value tagged with scope (typically the
// session or project id), evicting the LRU tail if over capacity.
func (c *Cache) SetL1(key string, value []byte, scope string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	if el, ok := c.l1[key]; ok {
		e := el.Value.(*entry)
		c.untagLocked(e)
		e.value = value
		e.scope = scope
		e.expires = expires
		c.tagLocked(e)
		c.l1Order.MoveToFront(el)
		return
	}
	e := &entry{key: key, value: value, scope: scope, expires: expires}
	el := c.l1Order.PushFront(e)
	c.l1[key] = el
	c.tagLocked(e)
	for c.l1Order.Len() > c.l1Max {
		back := c.l1Order.Back()
		if back == nil {
			break
		}
		c.removeL1Locked(back)
	}
}

func (c *Cache) tagLocked(e *entry) {
	if e.scope == "" {
		return
	}
	set, ok := c.l1ByScope[e.scope]
	if !ok {
		set = make(map[string]struct{})
		c.l1ByScope[e.scope] = set
	}
	set[e.key] = struct{}{}
}

func (c *Cache) untagLocked(e *entry) {
	if e.scope == "" {
		return
	}
	if set, ok := c.l1ByScope[e.scope]; ok {
		delete(set, e.key)
		if len(set) == 0 {
			delete(c.l1ByScope, e.scope)
		}
	}
}

func (c *Cache) removeL1Locked(el *list.Element) {
	e := el.Value.(*entry)
	c.untagLocked(e)
	delete(c.l1, e.key)
	c.l1Order.Remove(el)
}

// InvalidateScope drops every L1 entry tagged with scope in O(entries in
// scope), giving the per-session/per-project invalidation spec.md asks for.
func (c *Cache) InvalidateScope(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.l1ByScope[scope]
	if !ok {
		return
	}
	for key := range set {
		if el, ok := c.l1[key]; ok {
			delete(c.l1, key)
			c.l1Order.Remove(el)
		}
	}
	delete(c.l1ByScope, scope)
}

// Get reads from the named tier (L2 or L3), backed by Redis.
func (c *Cache) Get(ctx context.Context, level Level, key string) ([]byte, bool) {
	stats := c.statsFor(level)
	if c.redis == nil {
		stats.missf()
		return nil, false
	}
	v, err := c.redis.Get(ctx, string(level)+":"+key).Bytes()
	if err != nil {
		stats.missf()
		return nil, false
	}
	stats.hit()
	return v, true
}

// Set writes to the named tier with the tier's configured TTL, or an
// explicit ttl override when > 0.
func (c *Cache) Set(ctx context.Context, level Level, key string, value []byte, ttl time.Duration) error {
	if c.redis == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttlFor(level)
	}
	return c.redis.Set(ctx, string(level)+":"+key, value, ttl).Err()
}

func (c *Cache) ttlFor(level Level) time.Duration {
	if level == L3 {
		return c.l3TTL
	}
	return c.l2TTL
}

func (c *Cache) statsFor(level Level) *levelStats {
	switch level {
	case L3:
		return &c.statsL3
	default:
		return &c.statsL2
	}
}

// Stats is the per-level hit-rate report returned by GetStats.
type Stats struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRate  float64 `json:"hitRate"`
}

// GetStats reports per-level hit rates, per spec.md §4.H's single getStats().
func (c *Cache) GetStats() map[string]Stats {
	out := make(map[string]Stats, 3)
	for name, s := range map[string]*levelStats{"l1": &c.statsL1, "l2": &c.statsL2, "l3": &c.statsL3} {
		hits, miss := s.snapshot()
		total := hits + miss
		rate := 0.0
		if total > 0 {
			rate = float64(hits) / float64(total)
		}
		out[name] = Stats{Hits: hits, Misses: miss, HitRate: rate}
	}
	return out
}
