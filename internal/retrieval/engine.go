package retrieval

import (
	"context"
	"strings"

	"knowledgecore/internal/llm"
	"knowledgecore/internal/memory"
	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
)

// Suffixes named in spec.md §6's collection-naming contract.
const (
	SuffixCodebase   = "codebase"
	SuffixDocs       = "docs"
	SuffixConfluence = "confluence"
	SuffixMemory     = "agent_memory"
	SuffixSessions   = "sessions"
)

// CollectionName returns "{project}_{suffix}", or "{project}_{name}" when
// name is already a bare (unprefixed) collection name, per spec.md §6.
func CollectionName(project, name string) string {
	prefix := project + "_"
	if strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

// Engine is the retrieval engine (component E): every query endpoint is a
// method here, sharing the embedder, vector store, graph store, and LLM
// collaborator behind the reliability fabric's breakers.
type Engine struct {
	Vector   databases.VectorStore
	Graph    databases.GraphDB
	Emb      embedder.Embedder
	LLM      llm.Provider
	Memory   *memory.Service
	Breakers *reliability.Registry
}

// New constructs a retrieval Engine.
func New(vector databases.VectorStore, graph databases.GraphDB, emb embedder.Embedder, provider llm.Provider, breakers *reliability.Registry) *Engine {
	return &Engine{Vector: vector, Graph: graph, Emb: emb, LLM: provider, Breakers: breakers}
}

// WithMemory attaches a memory Service for /context-pack's memory facet.
func (e *Engine) WithMemory(m *memory.Service) *Engine {
	e.Memory = m
	return e
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.Breakers.Get("embedding").Execute(func() error {
		vecs, err := e.Emb.EmbedBatch(ctx, []string{text})
		if err != nil {
			return reliability.New(reliability.KindUpstream, "embed failed", err)
		}
		if len(vecs) == 0 {
			return reliability.New(reliability.KindUpstream, "embed returned no vectors", nil)
		}
		out = vecs[0]
		return nil
	})
	return out, err
}

func (e *Engine) search(ctx context.Context, collection string, vec []float32, k int, filter *databases.Filter, threshold float64) ([]databases.VectorResult, error) {
	var out []databases.VectorResult
	err := e.Breakers.Get("vectorStore").Execute(func() error {
		r, err := e.Vector.Search(ctx, collection, vec, k, filter, threshold)
		if err != nil {
			return reliability.New(reliability.KindUpstream, "vector search failed", err)
		}
		out = r
		return nil
	})
	return out, err
}
