package databases

import (
	"context"
	"sort"
)

// resolveCollection follows one alias hop; collections and aliases share a
// namespace in the in-memory backend, mirroring how a fresh Qdrant/Postgres
// deployment resolves an unbound name to itself.
func (m *memoryVector) resolveCollection(name string) string {
	if c, ok := m.aliases[name]; ok {
		return c
	}
	return name
}

func conditionMatches(payload map[string]any, c Condition) bool {
	v, ok := payload[c.Key]
	if !ok {
		return false
	}
	s, _ := v.(string)
	if c.Value != "" {
		return s == c.Value
	}
	if c.Text != "" {
		return containsFold(s, c.Text)
	}
	return true
}

func containsFold(haystack, needle string) bool {
	hl, nl := len(haystack), len(needle)
	if nl == 0 {
		return true
	}
	if nl > hl {
		return false
	}
	for i := 0; i+nl <= hl; i++ {
		if equalFold(haystack[i:i+nl], needle) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func matchesPointFilter(payload map[string]any, f *Filter) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !conditionMatches(payload, c) {
			return false
		}
	}
	for _, c := range f.MustNot {
		if conditionMatches(payload, c) {
			return false
		}
	}
	if len(f.Should) > 0 {
		any := false
		for _, c := range f.Should {
			if conditionMatches(payload, c) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func (m *memoryVector) UpsertPoints(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	collection = m.resolveCollection(collection)
	bucket, ok := m.points[collection]
	if !ok {
		bucket = make(map[string]Point)
		m.points[collection] = bucket
	}
	for _, p := range points {
		cp := make([]float32, len(p.Vector))
		copy(cp, p.Vector)
		payload := make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			payload[k] = v
		}
		bucket[p.ID] = Point{ID: p.ID, Vector: cp, Sparse: p.Sparse, Payload: payload}
	}
	return nil
}

func (m *memoryVector) searchLocked(collection string, vector []float32, k int, filter *Filter) []VectorResult {
	bucket := m.points[m.resolveCollection(collection)]
	qnorm := norm(vector)
	out := make([]VectorResult, 0, len(bucket))
	for _, p := range bucket {
		if !matchesPointFilter(p.Payload, filter) {
			continue
		}
		out = append(out, VectorResult{ID: p.ID, Score: cosine(vector, p.Vector, qnorm), Metadata: flattenMetadata(p.Payload)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func (m *memoryVector) Search(_ context.Context, collection string, vector []float32, k int, filter *Filter, scoreThreshold float64) ([]VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := m.searchLocked(collection, vector, 0, filter)
	out := make([]VectorResult, 0, k)
	for _, h := range hits {
		if scoreThreshold > 0 && h.Score < scoreThreshold {
			continue
		}
		out = append(out, h)
		if k > 0 && len(out) >= k {
			break
		}
	}
	return out, nil
}

func (m *memoryVector) SearchGroups(_ context.Context, collection string, vector []float32, groupBy string, k, groupSize int, filter *Filter) ([]Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if groupSize <= 0 {
		groupSize = 3
	}
	hits := m.searchLocked(collection, vector, 0, filter)
	order := make([]string, 0)
	buckets := make(map[string][]VectorResult)
	for _, h := range hits {
		key := h.Metadata[groupBy]
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		if len(buckets[key]) < groupSize {
			buckets[key] = append(buckets[key], h)
		}
	}
	out := make([]Group, 0, len(order))
	for _, key := range order {
		if len(out) >= k {
			break
		}
		out = append(out, Group{Key: key, Hits: buckets[key]})
	}
	return out, nil
}

func (m *memoryVector) SearchHybridNative(_ context.Context, collection string, dense []float32, sparse map[uint32]float32, k int, filter *Filter) ([]VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.points[m.resolveCollection(collection)]
	qnorm := norm(dense)
	out := make([]VectorResult, 0, len(bucket))
	for _, p := range bucket {
		if !matchesPointFilter(p.Payload, filter) {
			continue
		}
		score := cosine(dense, p.Vector, qnorm)
		if len(sparse) > 0 && len(p.Sparse) > 0 {
			overlap := 0.0
			for idx, v := range sparse {
				if tv, ok := p.Sparse[idx]; ok {
					overlap += float64(v) * float64(tv)
				}
			}
			score = 0.7*score + 0.3*overlap
		}
		out = append(out, VectorResult{ID: p.ID, Score: score, Metadata: flattenMetadata(p.Payload)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *memoryVector) Recommend(_ context.Context, collection string, positiveIDs, negativeIDs []string, k int) ([]VectorResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.points[m.resolveCollection(collection)]
	if len(positiveIDs) == 0 {
		return nil, nil
	}
	seed, ok := bucket[positiveIDs[0]]
	if !ok {
		return nil, nil
	}
	out := m.searchLocked(collection, seed.Vector, k+len(negativeIDs)+1, nil)
	filtered := make([]VectorResult, 0, len(out))
	excluded := map[string]bool{seed.ID: true}
	for _, id := range negativeIDs {
		excluded[id] = true
	}
	for _, h := range out {
		if excluded[h.ID] {
			continue
		}
		filtered = append(filtered, h)
		if k > 0 && len(filtered) >= k {
			break
		}
	}
	return filtered, nil
}

func (m *memoryVector) FindClusters(ctx context.Context, collection string, seedIDs []string, k int, threshold float64) ([]Cluster, error) {
	out := make([]Cluster, 0, len(seedIDs))
	for _, seed := range seedIDs {
		hits, err := m.Recommend(ctx, collection, []string{seed}, nil, k)
		if err != nil {
			continue
		}
		members := make([]VectorResult, 0)
		for _, h := range hits {
			if h.Score >= threshold {
				members = append(members, h)
			}
		}
		if len(members) > 0 {
			out = append(out, Cluster{SeedID: seed, Items: members})
		}
	}
	return out, nil
}

func (m *memoryVector) FindDuplicates(ctx context.Context, collection string, k int, threshold float64) ([]Cluster, error) {
	m.mu.RLock()
	bucket := m.points[m.resolveCollection(collection)]
	ids := make([]string, 0, len(bucket))
	for id := range bucket {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	return m.FindClusters(ctx, collection, ids, k, threshold)
}

func (m *memoryVector) CreateAlias(_ context.Context, alias, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases[alias] = collection
	return nil
}

func (m *memoryVector) SwitchAlias(ctx context.Context, alias, newCollection string) error {
	return m.CreateAlias(ctx, alias, newCollection)
}

func (m *memoryVector) ListAliases(_ context.Context) ([]AliasInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]AliasInfo, 0, len(m.aliases))
	for a, c := range m.aliases {
		out = append(out, AliasInfo{Alias: a, Collection: c})
	}
	return out, nil
}

func (m *memoryVector) GetAliasInfo(_ context.Context, alias string) (AliasInfo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.aliases[alias]
	if !ok {
		return AliasInfo{}, false, nil
	}
	return AliasInfo{Alias: alias, Collection: c}, true, nil
}

func (m *memoryVector) EnsurePayloadIndexes(_ context.Context, _ string, _ []string) error {
	return nil
}

func (m *memoryVector) ListCollections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.points))
	for c := range m.points {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryVector) CreateCollection(_ context.Context, collection string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.points[collection]; !ok {
		m.points[collection] = make(map[string]Point)
	}
	return nil
}

func (m *memoryVector) DeleteCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.points, collection)
	return nil
}

func (m *memoryVector) ClearCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[collection] = make(map[string]Point)
	return nil
}

func (m *memoryVector) CollectionInfo(_ context.Context, collection string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bucket := m.points[m.resolveCollection(collection)]
	return map[string]any{"pointsCount": int64(len(bucket))}, nil
}
