package cache

import (
	"context"
	"encoding/json"
)

// GetEmbedding reads a cached embedding vector for text from L3 (global),
// since embeddings are project-independent for a fixed model.
func (c *Cache) GetEmbedding(ctx context.Context, text string) ([]float32, bool) {
	raw, ok := c.Get(ctx, L3, EmbedKey(text))
	if !ok {
		return nil, false
	}
	var v []float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// SetEmbedding write-through caches an embedding vector with the L3
// embedding TTL.
func (c *Cache) SetEmbedding(ctx context.Context, text string, vec []float32) {
	b, err := json.Marshal(vec)
	if err != nil {
		return
	}
	_ = c.Set(ctx, L3, EmbedKey(text), b, EmbeddingTTL)
}

// GetSearch reads a cached search result set from L2 (project-shared),
// decoding into dst (a pointer to the caller's result type).
func (c *Cache) GetSearch(ctx context.Context, collection, query string, opts any, dst any) bool {
	raw, ok := c.Get(ctx, L2, SearchKey(collection, query, opts))
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// SetSearch write-through caches a search result set with the L2 search TTL.
func (c *Cache) SetSearch(ctx context.Context, collection, query string, opts any, results any) {
	b, err := json.Marshal(results)
	if err != nil {
		return
	}
	_ = c.Set(ctx, L2, SearchKey(collection, query, opts), b, SearchTTL)
}
