package databases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// ensurePointsTable lazily creates the multi-collection points table the
// collection-scoped contract methods share. One table, partitioned logically
// by the `collection` column, keeps the schema Postgres-friendly without a
// CREATE TABLE per project collection.
func (p *pgVector) ensurePointsTable(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		dimensions = p.dimensions
	}
	vecType := "vector"
	if dimensions > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimensions)
	}
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS vector_points (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  vec %s,
  sparse JSONB NOT NULL DEFAULT '{}'::jsonb,
  payload JSONB NOT NULL DEFAULT '{}'::jsonb,
  PRIMARY KEY (collection, id)
);
`, vecType))
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS vector_aliases (alias TEXT PRIMARY KEY, collection TEXT NOT NULL)`)
	return err
}

func (p *pgVector) UpsertPoints(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := p.ensurePointsTable(ctx, len(points[0].Vector)); err != nil {
		return err
	}
	for _, pt := range points {
		payload, err := json.Marshal(pt.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", pt.ID, err)
		}
		sparse, err := json.Marshal(pt.Sparse)
		if err != nil {
			return fmt.Errorf("marshal sparse for %s: %w", pt.ID, err)
		}
		vec := pgvector.NewVector(pt.Vector)
		_, err = p.pool.Exec(ctx, `
INSERT INTO vector_points(collection, id, vec, sparse, payload) VALUES($1,$2,$3,$4,$5)
ON CONFLICT (collection, id) DO UPDATE SET vec=EXCLUDED.vec, sparse=EXCLUDED.sparse, payload=EXCLUDED.payload
`, collection, pt.ID, vec, sparse, payload)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *pgVector) distanceExpr() (op, scoreExpr string) {
	switch p.metric {
	case "l2", "euclidean":
		return "<->", "-(vec <-> $1::vector)"
	case "ip", "dot":
		return "<#>", "-(vec <#> $1::vector)"
	default:
		return "<=>", "1 - (vec <=> $1::vector)"
	}
}

func filterToJSONContains(f *Filter) map[string]string {
	if f == nil {
		return nil
	}
	must := map[string]string{}
	for _, c := range f.Must {
		if c.Value != "" {
			must[c.Key] = c.Value
		}
	}
	return must
}

func (p *pgVector) Search(ctx context.Context, collection string, vector []float32, k int, filter *Filter, scoreThreshold float64) ([]VectorResult, error) {
	if k <= 0 {
		k = 10
	}
	op, scoreExpr := p.distanceExpr()
	vec := pgvector.NewVector(vector)
	must := filterToJSONContains(filter)
	where := "WHERE collection = $2"
	args := []any{vec, collection, k}
	if len(must) > 0 {
		mustJSON, _ := json.Marshal(must)
		where += " AND payload @> $4"
		args = append(args, mustJSON)
	}
	query := fmt.Sprintf(`SELECT id, %s AS score, payload FROM vector_points %s ORDER BY vec %s $1 LIMIT $3`, scoreExpr, where, op)
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]VectorResult, 0, k)
	for rows.Next() {
		var id string
		var score float64
		var payload map[string]any
		if err := rows.Scan(&id, &score, &payload); err != nil {
			return nil, err
		}
		if scoreThreshold > 0 && score < scoreThreshold {
			continue
		}
		out = append(out, VectorResult{ID: id, Score: score, Metadata: flattenMetadata(payload)})
	}
	return out, rows.Err()
}

func flattenMetadata(payload map[string]any) map[string]string {
	md := make(map[string]string, len(payload))
	for k, v := range payload {
		md[k] = fmt.Sprintf("%v", v)
	}
	return md
}

// SearchGroups buckets rows client-side by a payload field: Postgres has no
// native "group by vector distance" primitive, so this fetches an over-fetch
// window and groups in process, same shape the caller sees from Qdrant.
func (p *pgVector) SearchGroups(ctx context.Context, collection string, vector []float32, groupBy string, k, groupSize int, filter *Filter) ([]Group, error) {
	if groupSize <= 0 {
		groupSize = 3
	}
	hits, err := p.Search(ctx, collection, vector, k*groupSize*4, filter, 0)
	if err != nil {
		return nil, err
	}
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

// SearchHybridNative approximates dense+sparse fusion with a weighted sum of
// the dense cosine score and a Jaccard-style overlap of sparse indices, since
// Postgres has no native sparse-vector fusion operator.
func (p *pgVector) SearchHybridNative(ctx context.Context, collection string, dense []float32, sparse map[uint32]float32, k int, filter *Filter) ([]VectorResult, error) {
	dHits, err := p.Search(ctx, collection, dense, k*3, filter, 0)
	if err != nil {
		return nil, err
	}
	if len(sparse) == 0 {
		if len(dHits) > k {
			dHits = dHits[:k]
		}
		return dHits, nil
	}
	rows, err := p.pool.Query(ctx, `SELECT id, sparse, payload FROM vector_points WHERE collection = $1`, collection)
	if err != nil {
		return dHits, nil
	}
	defer rows.Close()
	sparseByID := make(map[string]map[string]float64)
	for rows.Next() {
		var id string
		var sp map[string]float64
		var payload map[string]any
		if err := rows.Scan(&id, &sp, &payload); err != nil {
			continue
		}
		sparseByID[id] = sp
	}
	for i := range dHits {
		theirs := sparseByID[dHits[i].ID]
		overlap := 0.0
		for idx, v := range sparse {
			if tv, ok := theirs[fmt.Sprintf("%d", idx)]; ok {
				overlap += float64(v) * tv
			}
		}
		dHits[i].Score = 0.7*dHits[i].Score + 0.3*overlap
	}
	if len(dHits) > k {
		dHits = dHits[:k]
	}
	return dHits, nil
}

func (p *pgVector) Recommend(ctx context.Context, collection string, positiveIDs, negativeIDs []string, k int) ([]VectorResult, error) {
	if len(positiveIDs) == 0 {
		return nil, nil
	}
	var seed []float32
	row := p.pool.QueryRow(ctx, `SELECT vec FROM vector_points WHERE collection=$1 AND id=$2`, collection, positiveIDs[0])
	var v pgvector.Vector
	if err := row.Scan(&v); err != nil {
		return nil, fmt.Errorf("lookup positive seed: %w", err)
	}
	seed = v.Slice()
	return p.Search(ctx, collection, seed, k, nil, 0)
}

func (p *pgVector) FindClusters(ctx context.Context, collection string, seedIDs []string, k int, threshold float64) ([]Cluster, error) {
	out := make([]Cluster, 0, len(seedIDs))
	for _, seed := range seedIDs {
		hits, err := p.Recommend(ctx, collection, []string{seed}, nil, k)
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

func (p *pgVector) FindDuplicates(ctx context.Context, collection string, k int, threshold float64) ([]Cluster, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM vector_points WHERE collection=$1 LIMIT 1000`, collection)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()
	return p.FindClusters(ctx, collection, ids, k, threshold)
}

func (p *pgVector) CreateAlias(ctx context.Context, alias, collection string) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO vector_aliases(alias, collection) VALUES($1,$2) ON CONFLICT (alias) DO UPDATE SET collection=EXCLUDED.collection`, alias, collection)
	return err
}

func (p *pgVector) SwitchAlias(ctx context.Context, alias, newCollection string) error {
	return p.CreateAlias(ctx, alias, newCollection)
}

func (p *pgVector) ListAliases(ctx context.Context) ([]AliasInfo, error) {
	rows, err := p.pool.Query(ctx, `SELECT alias, collection FROM vector_aliases`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AliasInfo, 0)
	for rows.Next() {
		var a AliasInfo
		if err := rows.Scan(&a.Alias, &a.Collection); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *pgVector) GetAliasInfo(ctx context.Context, alias string) (AliasInfo, bool, error) {
	var a AliasInfo
	err := p.pool.QueryRow(ctx, `SELECT alias, collection FROM vector_aliases WHERE alias=$1`, alias).Scan(&a.Alias, &a.Collection)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return AliasInfo{}, false, nil
		}
		return AliasInfo{}, false, err
	}
	return a, true, nil
}

func (p *pgVector) EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error {
	for _, f := range fields {
		idxName := fmt.Sprintf("vp_%s_%s_idx", collection, f)
		_, _ = p.pool.Exec(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON vector_points ((payload->>'%s')) WHERE collection = '%s'`, idxName, f, collection))
	}
	return nil
}

func (p *pgVector) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT collection FROM vector_points`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err == nil {
			out = append(out, c)
		}
	}
	return out, rows.Err()
}

func (p *pgVector) CreateCollection(ctx context.Context, collection string, dimensions int) error {
	return p.ensurePointsTable(ctx, dimensions)
}

func (p *pgVector) DeleteCollection(ctx context.Context, collection string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM vector_points WHERE collection=$1`, collection)
	return err
}

func (p *pgVector) ClearCollection(ctx context.Context, collection string) error {
	return p.DeleteCollection(ctx, collection)
}

func (p *pgVector) CollectionInfo(ctx context.Context, collection string) (map[string]any, error) {
	var count int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM vector_points WHERE collection=$1`, collection).Scan(&count); err != nil {
		return nil, err
	}
	return map[string]any{"pointsCount": count}, nil
}
