package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/reliability"
)

// legalTransitions encodes the todo status machine of spec.md §4.F:
// pending -> in_progress -> done|cancelled, and pending -> cancelled
// directly. Re-applying the current status is idempotent.
var legalTransitions = map[TodoStatus][]TodoStatus{
	TodoPending:    {TodoInProgress, TodoCancelled},
	TodoInProgress: {TodoDone, TodoCancelled},
	TodoDone:       {},
	TodoCancelled:  {},
}

func isLegalTransition(from, to TodoStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UpdateTodoStatus transitions a todo memory's status, appending to its
// statusHistory. Illegal transitions return a reliability.Validation error.
func (s *Service) UpdateTodoStatus(ctx context.Context, project, id string, to TodoStatus) (Memory, error) {
	m, ok, err := s.get(ctx, project, id)
	if err != nil {
		return Memory{}, err
	}
	if !ok {
		return Memory{}, reliability.NotFound("memory not found: " + id)
	}
	if m.Type != TypeTodo {
		return Memory{}, reliability.Validation("memory is not a todo")
	}
	if !isLegalTransition(m.Status, to) {
		return Memory{}, reliability.Validation(fmt.Sprintf("illegal todo transition %s -> %s", m.Status, to))
	}
	now := s.clock.Now()
	if m.Status != to {
		m.Status = to
		m.StatusHistory = append(m.StatusHistory, StatusChange{Status: to, At: now})
	}
	m.UpdatedAt = now
	vec, err := s.embed(ctx, fmt.Sprintf("%s: %s", m.Type, m.Content))
	if err != nil {
		return Memory{}, err
	}
	if err := s.upsert(ctx, project, databases.Point{ID: m.ID, Vector: vec, Payload: payloadOf(m)}); err != nil {
		return Memory{}, err
	}
	return m, nil
}

func (s *Service) get(ctx context.Context, project, id string) (Memory, bool, error) {
	var found databases.VectorResult
	var ok bool
	err := s.breakers.Get("vectorStore").Execute(func() error {
		results, err := s.store.Search(ctx, collectionFor(project), nil, 10000, nil, 0)
		if err != nil {
			return reliability.New(reliability.KindUpstream, "memory get failed", err)
		}
		for _, r := range results {
			if r.ID == id {
				found, ok = r, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return Memory{}, false, err
	}
	if !ok {
		return Memory{}, false, nil
	}
	_, payload, pok := s.fetchPayload(ctx, project, found)
	if !pok {
		return Memory{}, false, nil
	}
	return memoryFromPayload(id, payload), true, nil
}

// ValidateMemory patches a memory's validated flag, exempting it from aging
// decay going forward.
func (s *Service) ValidateMemory(ctx context.Context, project, id string, validated bool) (Memory, error) {
	m, ok, err := s.get(ctx, project, id)
	if err != nil {
		return Memory{}, err
	}
	if !ok {
		return Memory{}, reliability.NotFound("memory not found: " + id)
	}
	m.Validated = validated
	m.UpdatedAt = s.clock.Now()
	vec, err := s.embed(ctx, fmt.Sprintf("%s: %s", m.Type, m.Content))
	if err != nil {
		return Memory{}, err
	}
	if err := s.upsert(ctx, project, databases.Point{ID: m.ID, Vector: vec, Payload: payloadOf(m)}); err != nil {
		return Memory{}, err
	}
	return m, nil
}

// GetUnvalidatedMemories scrolls for memories whose validated flag is false
// or absent.
func (s *Service) GetUnvalidatedMemories(ctx context.Context, project string, limit int) ([]Memory, error) {
	all, err := s.List(ctx, project, RecallOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]Memory, 0, len(all))
	for _, m := range all {
		if !m.Validated {
			out = append(out, m)
		}
	}
	return out, nil
}

// LowConfidenceDays is the quarantine cutoff: unvalidated memories
// created at least this many days ago are surfaced as needing
// review, supplementing the plain unvalidated view per SPEC_FULL.md's
// Confluence/quarantine feature supplement.
const LowConfidenceDays = 14

// Quarantine returns unvalidated memories older than LowConfidenceDays,
// the named view distinct from the plain unvalidated list.
func (s *Service) Quarantine(ctx context.Context, project string) ([]Memory, error) {
	unvalidated, err := s.GetUnvalidatedMemories(ctx, project, 1000)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]Memory, 0, len(unvalidated))
	for _, m := range unvalidated {
		if now.Sub(m.CreatedAt).Hours()/24 >= LowConfidenceDays {
			out = append(out, m)
		}
	}
	return out, nil
}

// Stats is the getStats() aggregation: memory count by type.
type Stats struct {
	ByType map[Type]int `json:"byType"`
	Total  int          `json:"total"`
}

// GetStats aggregates memory counts by type.
func (s *Service) GetStats(ctx context.Context, project string) (Stats, error) {
	all, err := s.List(ctx, project, RecallOptions{Limit: 10000})
	if err != nil {
		return Stats{}, err
	}
	st := Stats{ByType: map[Type]int{}}
	for _, m := range all {
		st.ByType[m.Type]++
		st.Total++
	}
	return st, nil
}

// BatchItem is one item of a batchRemember call.
type BatchItem struct {
	Type     Type
	Content  string
	Tags     []string
	Metadata map[string]any
}

// BatchError records a per-item failure from batchRemember.
type BatchError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult is batchRemember's return shape: saved memories plus
// per-item errors, never aborting the whole batch on a single failure.
type BatchResult struct {
	Saved  []Memory     `json:"saved"`
	Errors []BatchError `json:"errors"`
}

// BatchRemember batch-embeds every item, upserts them in a single call, and
// collects per-item embedding failures into Errors without aborting the
// batch.
func (s *Service) BatchRemember(ctx context.Context, project string, items []BatchItem) (BatchResult, error) {
	if err := reliability.ProjectName(project); err != nil {
		return BatchResult{}, err
	}
	now := s.clock.Now()
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = fmt.Sprintf("%s: %s", it.Type, it.Content)
	}
	var vecs [][]float32
	err := s.breakers.Get("embedding").Execute(func() error {
		v, err := s.emb.EmbedBatch(ctx, texts)
		if err != nil {
			return reliability.New(reliability.KindUpstream, "batch embed failed", err)
		}
		vecs = v
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	points := make([]databases.Point, 0, len(items))
	for i, it := range items {
		if i >= len(vecs) {
			result.Errors = append(result.Errors, BatchError{Index: i, Error: "embedding missing for item"})
			continue
		}
		m := Memory{
			ID: uuid.NewString(), Project: project, Type: it.Type, Content: it.Content,
			Tags: it.Tags, Metadata: it.Metadata, CreatedAt: now, UpdatedAt: now,
		}
		if it.Type == TypeTodo {
			m.Status = TodoPending
			m.StatusHistory = []StatusChange{{Status: TodoPending, At: now}}
		}
		points = append(points, databases.Point{ID: m.ID, Vector: vecs[i], Payload: payloadOf(m)})
		result.Saved = append(result.Saved, m)
	}
	if len(points) > 0 {
		if err := s.upsert(ctx, project, points...); err != nil {
			return BatchResult{}, err
		}
	}
	return result, nil
}
