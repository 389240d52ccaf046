// Package databases implements the vector-store contract (SPEC_FULL.md
// component D): uniform access to a vector backend regardless of which
// engine sits behind it, plus the full-text and graph stores that the
// parser/indexer/retrieval pipeline builds on.
package databases

import (
	"context"
)

// SearchResult represents a single hit from the full-text search backend.
type SearchResult struct {
	ID       string
	Score    float64
	Snippet  string
	Text     string
	Metadata map[string]string
}

// FullTextSearch defines the minimum interface for a pluggable FTS backend.
type FullTextSearch interface {
	Index(ctx context.Context, id string, text string, metadata map[string]string) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	GetByID(ctx context.Context, id string) (SearchResult, bool, error)
}

// VectorResult represents a single nearest neighbor lookup result.
type VectorResult struct {
	ID       string
	Score    float64 // Higher is closer by default
	Metadata map[string]string
}

// Point is the unit the indexer upserts into a collection: a vectorised
// ParsedChunk plus its full payload. Sparse is nil unless sparse vectors are
// enabled for the collection.
type Point struct {
	ID      string
	Vector  []float32
	Sparse  map[uint32]float32
	Payload map[string]any
}

// Condition is one clause of a Filter: an exact or text match on a payload key.
type Condition struct {
	Key   string
	Value string // exact match
	Text  string // substring/text match
}

// Filter is a condition set over a collection's payload, mirroring the
// vector-store contract's must/should/must_not shape.
type Filter struct {
	Must    []Condition
	Should  []Condition
	MustNot []Condition
}

// Group is one bucket of a searchGroups response.
type Group struct {
	Key   string
	Hits  []VectorResult
}

// Cluster is a set of near-duplicate or related point ids produced by
// findClusters/findDuplicates.
type Cluster struct {
	SeedID string
	Items  []VectorResult
}

// AliasInfo describes one alias -> collection binding.
type AliasInfo struct {
	Alias      string
	Collection string
}

// VectorStore is the engine-agnostic vector-store contract (SPEC_FULL.md
// §4.D). Collection-scoped operations take a collection name explicitly so a
// single backend instance can serve every project's collections.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)

	UpsertPoints(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, k int, filter *Filter, scoreThreshold float64) ([]VectorResult, error)
	SearchGroups(ctx context.Context, collection string, vector []float32, groupBy string, k, groupSize int, filter *Filter) ([]Group, error)
	SearchHybridNative(ctx context.Context, collection string, dense []float32, sparse map[uint32]float32, k int, filter *Filter) ([]VectorResult, error)
	Recommend(ctx context.Context, collection string, positiveIDs, negativeIDs []string, k int) ([]VectorResult, error)
	FindClusters(ctx context.Context, collection string, seedIDs []string, k int, threshold float64) ([]Cluster, error)
	FindDuplicates(ctx context.Context, collection string, k int, threshold float64) ([]Cluster, error)

	CreateAlias(ctx context.Context, alias, collection string) error
	SwitchAlias(ctx context.Context, alias, newCollection string) error
	ListAliases(ctx context.Context) ([]AliasInfo, error)
	GetAliasInfo(ctx context.Context, alias string) (AliasInfo, bool, error)

	EnsurePayloadIndexes(ctx context.Context, collection string, fields []string) error

	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, collection string, dimensions int) error
	DeleteCollection(ctx context.Context, collection string) error
	ClearCollection(ctx context.Context, collection string) error
	CollectionInfo(ctx context.Context, collection string) (map[string]any, error)
}

// Node is a minimal in-memory representation of a graph node.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// GraphDB defines a portable interface for minimal graph operations.
type GraphDB interface {
	UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error
	UpsertEdge(ctx context.Context, srcID, rel, dstID string, props map[string]any) error
	Neighbors(ctx context.Context, id string, rel string) ([]string, error)
	GetNode(ctx context.Context, id string) (Node, bool)
}

// Manager holds concrete database backends resolved from configuration.
type Manager struct {
	Search FullTextSearch
	Vector VectorStore
	Graph  GraphDB
}

// Close attempts to close any underlying pools. It's a no-op for memory backends.
func (m Manager) Close() {
	if c, ok := any(m.Search).(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := any(m.Vector).(interface{ Close() }); ok {
		c.Close()
	}
	if c, ok := any(m.Graph).(interface{ Close() }); ok {
		c.Close()
	}
}
