package databases

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointID returns the Qdrant-safe id for an application id, generating a
// deterministic UUID for anything that isn't already one (see PAYLOAD_ID_FIELD).
func pointID(id string) (string, bool) {
	if _, err := uuid.Parse(id); err == nil {
		return id, false
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(), true
}

func toQdrantFilter(f *Filter) *qdrant.Filter {
	if f == nil {
		return nil
	}
	conv := func(conds []Condition) []*qdrant.Condition {
		out := make([]*qdrant.Condition, 0, len(conds))
		for _, c := range conds {
			if c.Text != "" {
				out = append(out, qdrant.NewMatchText(c.Key, c.Text))
			} else {
				out = append(out, qdrant.NewMatch(c.Key, c.Value))
			}
		}
		return out
	}
	qf := &qdrant.Filter{}
	if len(f.Must) > 0 {
		qf.Must = conv(f.Must)
	}
	if len(f.Should) > 0 {
		qf.Should = conv(f.Should)
	}
	if len(f.MustNot) > 0 {
		qf.MustNot = conv(f.MustNot)
	}
	return qf
}

func payloadToResult(payload map[string]*qdrant.Value, score float64, fallbackID string) VectorResult {
	metadata := make(map[string]string, len(payload))
	originalID := ""
	for k, v := range payload {
		if k == PAYLOAD_ID_FIELD {
			originalID = v.GetStringValue()
			continue
		}
		metadata[k] = v.GetStringValue()
	}
	id := originalID
	if id == "" {
		id = fallbackID
	}
	return VectorResult{ID: id, Score: score, Metadata: metadata}
}

// UpsertPoints batch-inserts/updates Points into an arbitrary named collection,
// generating the collection on first use with the dimension of the first vector.
func (q *qdrantVector) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := q.ensureNamedCollection(ctx, collection, len(points[0].Vector)); err != nil {
		return err
	}
	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		uid, generated := pointID(p.ID)
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		if generated {
			payload[PAYLOAD_ID_FIELD] = p.ID
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uid),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         structs,
	})
	return err
}

// Search runs a dense-vector search against an arbitrary collection with an
// optional structured filter and score threshold.
func (q *qdrantVector) Search(ctx context.Context, collection string, vector []float32, k int, filter *Filter, scoreThreshold float64) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         toQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if scoreThreshold > 0 {
		st := float32(scoreThreshold)
		req.ScoreThreshold = &st
	}
	hits, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	out := make([]VectorResult, 0, len(hits))
	for _, hit := range hits {
		fallback := hit.Id.GetUuid()
		out = append(out, payloadToResult(hit.Payload, float64(hit.Score), fallback))
	}
	return out, nil
}

// SearchGroups buckets results by a payload field, returning up to groupSize
// hits per group (SPEC_FULL.md /search-grouped).
func (q *qdrantVector) SearchGroups(ctx context.Context, collection string, vector []float32, groupBy string, k, groupSize int, filter *Filter) ([]Group, error) {
	if k <= 0 {
		k = 10
	}
	if groupSize <= 0 {
		groupSize = 3
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	limit := uint64(k)
	groupSz := uint32(groupSize)
	resp, err := q.client.QueryGroups(ctx, &qdrant.QueryPointGroups{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		GroupBy:        groupBy,
		Limit:          &limit,
		GroupSize:      &groupSz,
		Filter:         toQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]Group, 0, len(resp))
	for _, g := range resp {
		hits := make([]VectorResult, 0, len(g.Hits))
		for _, hit := range g.Hits {
			fallback := hit.Id.GetUuid()
			hits = append(hits, payloadToResult(hit.Payload, float64(hit.Score), fallback))
		}
		out = append(out, Group{Key: g.Id.GetStringValue(), Hits: hits})
	}
	return out, nil
}

// SearchHybridNative runs the backend's native dense+sparse fusion query.
func (q *qdrantVector) SearchHybridNative(ctx context.Context, collection string, dense []float32, sparse map[uint32]float32, k int, filter *Filter) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	d := make([]float32, len(dense))
	copy(d, dense)
	indices := make([]uint32, 0, len(sparse))
	values := make([]float32, 0, len(sparse))
	for idx, val := range sparse {
		indices = append(indices, idx)
		values = append(values, val)
	}
	limit := uint64(k)
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Prefetch: []*qdrant.PrefetchQuery{
			{Query: qdrant.NewQueryDense(d)},
			{Query: qdrant.NewQuerySparse(indices, values)},
		},
		Query:       qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:       &limit,
		Filter:      toQdrantFilter(filter),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]VectorResult, 0, len(resp))
	for _, hit := range resp {
		fallback := hit.Id.GetUuid()
		out = append(out, payloadToResult(hit.Payload, float64(hit.Score), fallback))
	}
	return out, nil
}

// Recommend runs a positive/negative example search.
func (q *qdrantVector) Recommend(ctx context.Context, collection string, positiveIDs, negativeIDs []string, k int) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	toRef := func(ids []string) []*qdrant.PointId {
		refs := make([]*qdrant.PointId, 0, len(ids))
		for _, id := range ids {
			uid, _ := pointID(id)
			refs = append(refs, qdrant.NewIDUUID(uid))
		}
		return refs
	}
	limit := uint64(k)
	resp, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryRecommend(&qdrant.RecommendInput{Positive: toRef(positiveIDs), Negative: toRef(negativeIDs)}),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]VectorResult, 0, len(resp))
	for _, hit := range resp {
		fallback := hit.Id.GetUuid()
		out = append(out, payloadToResult(hit.Payload, float64(hit.Score), fallback))
	}
	return out, nil
}

// FindClusters groups points around seed ids using recommend-by-id as the
// similarity probe, keeping members above threshold.
func (q *qdrantVector) FindClusters(ctx context.Context, collection string, seedIDs []string, k int, threshold float64) ([]Cluster, error) {
	out := make([]Cluster, 0, len(seedIDs))
	for _, seed := range seedIDs {
		hits, err := q.Recommend(ctx, collection, []string{seed}, nil, k)
		if err != nil {
			return nil, fmt.Errorf("recommend for seed %s: %w", seed, err)
		}
		members := make([]VectorResult, 0, len(hits))
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

// FindDuplicates scans the collection scroll-wise and clusters near-identical
// points via pairwise recommend similarity above threshold.
func (q *qdrantVector) FindDuplicates(ctx context.Context, collection string, k int, threshold float64) ([]Cluster, error) {
	ids, err := q.scrollIDs(ctx, collection, 256)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(ids))
	clusters := make([]Cluster, 0)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		hits, err := q.Recommend(ctx, collection, []string{id}, nil, k)
		if err != nil {
			continue
		}
		dupes := make([]VectorResult, 0)
		for _, h := range hits {
			if h.ID == id {
				continue
			}
			if h.Score >= threshold {
				dupes = append(dupes, h)
				seen[h.ID] = true
			}
		}
		if len(dupes) > 0 {
			seen[id] = true
			clusters = append(clusters, Cluster{SeedID: id, Items: dupes})
		}
	}
	return clusters, nil
}

func (q *qdrantVector) scrollIDs(ctx context.Context, collection string, limit uint32) ([]string, error) {
	resp, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp))
	for _, p := range resp {
		fallback := p.Id.GetUuid()
		r := payloadToResult(p.Payload, 0, fallback)
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateAlias binds alias -> collection (failing if the alias already exists
// pointing elsewhere; callers wanting a swap should use SwitchAlias).
func (q *qdrantVector) CreateAlias(ctx context.Context, alias, collection string) error {
	_, err := q.client.UpdateCollectionAliases(ctx, &qdrant.ChangeAliases{
		Actions: []*qdrant.AliasOperations{
			{
				Action: &qdrant.AliasOperations_CreateAlias{
					CreateAlias: &qdrant.CreateAlias{AliasName: alias, CollectionName: collection},
				},
			},
		},
	})
	return err
}

// SwitchAlias atomically repoints alias at newCollection. Qdrant applies
// delete+create within a single ChangeAliases call, which is the zero-downtime
// handover SPEC_FULL.md's reindex relies on: readers resolving through the
// alias never see a moment with no collection bound to it.
func (q *qdrantVector) SwitchAlias(ctx context.Context, alias, newCollection string) error {
	_, err := q.client.UpdateCollectionAliases(ctx, &qdrant.ChangeAliases{
		Actions: []*qdrant.AliasOperations{
			{
				Action: &qdrant.AliasOperations_DeleteAlias{
					DeleteAlias: &qdrant.DeleteAlias{AliasName: alias},
				},
			},
			{
				Action: &qdrant.AliasOperations_CreateAlias{
					CreateAlias: &qdrant.CreateAlias{AliasName: alias, CollectionName: newCollection},
				},
			},
		},
	})
	return err
}

func (q *qdrantVector) ListAliases(ctx context.Context) ([]AliasInfo, error) {
	resp, err := q.client.ListCollectionAliases(ctx, &qdrant.ListAliasesRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]AliasInfo, 0, len(resp))
	for _, a := range resp {
		out = append(out, AliasInfo{Alias: a.AliasName, Collection: a.CollectionName})
	}
	return out, nil
}

func (q *qdrantVector) GetAliasInfo(ctx context.Context, alias string) (AliasInfo, bool, error) {
	aliases, err := q.ListAliases(ctx)
	if err != nil {
		return AliasInfo{}, false, err
	}
	for _, a := range aliases {
		if a.Alias == alias {
			return a, true, nil
		}
	}
	return AliasInfo{}, false, nil
}

// EnsurePayloadIndexes creates keyword field indexes for filterable payload
// fields so searches filtering on {file, language, layer, service, type}
// stay fast as collections grow.
func (q *qdrantVector) EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error {
	for _, f := range fields {
		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      f,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			// Already-exists is not fatal; anything else propagates on the next field.
			continue
		}
	}
	return nil
}

func (q *qdrantVector) ListCollections(ctx context.Context) ([]string, error) {
	return q.client.ListCollections(ctx)
}

func (q *qdrantVector) ensureNamedCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	return q.CreateCollection(ctx, collection, dimension)
}

func (q *qdrantVector) CreateCollection(ctx context.Context, collection string, dimensions int) error {
	if dimensions <= 0 {
		dimensions = q.dimension
	}
	if dimensions <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: distance,
		}),
	})
}

func (q *qdrantVector) DeleteCollection(ctx context.Context, collection string) error {
	return q.client.DeleteCollection(ctx, collection)
}

func (q *qdrantVector) ClearCollection(ctx context.Context, collection string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{}),
	})
	return err
}

func (q *qdrantVector) CollectionInfo(ctx context.Context, collection string) (map[string]any, error) {
	info, err := q.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"status":        info.GetStatus().String(),
		"pointsCount":   info.GetPointsCount(),
		"segmentsCount": info.GetSegmentsCount(),
	}
	return out, nil
}
