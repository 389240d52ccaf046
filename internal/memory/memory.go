// Package memory implements the memory service (SPEC_FULL.md component F):
// a typed, embedding-searchable store of agent memories (facts, decisions,
// todos, insights, preferences) with aging decay, validation, and a
// never-hard-delete merge lifecycle.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
)

// Type is one of the memory kinds named in spec.md §3.
type Type string

const (
	TypeFact        Type = "fact"
	TypeDecision    Type = "decision"
	TypeTodo        Type = "todo"
	TypeInsight     Type = "insight"
	TypePreference  Type = "preference"
)

// TodoStatus is one of a todo memory's lifecycle states.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoDone       TodoStatus = "done"
	TodoCancelled  TodoStatus = "cancelled"
)

// StatusChange is one entry of a todo's statusHistory.
type StatusChange struct {
	Status TodoStatus `json:"status"`
	At     time.Time  `json:"at"`
}

// Memory is the spec.md §3 Memory record.
type Memory struct {
	ID            string         `json:"id"`
	Project       string         `json:"project"`
	Type          Type           `json:"type"`
	Content       string         `json:"content"`
	Tags          []string       `json:"tags,omitempty"`
	Validated     bool           `json:"validated"`
	SupersededBy  string         `json:"supersededBy,omitempty"`
	RelatedTo     []string       `json:"relatedTo,omitempty"`
	Status        TodoStatus     `json:"status,omitempty"`
	StatusHistory []StatusChange `json:"statusHistory,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LastAccessed  time.Time      `json:"lastAccessed"`
}

// Clock abstracts time for deterministic tests.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service implements the memory operations of spec.md §4.F over a
// VectorStore collection (typically `{project}_agent_memory`).
type Service struct {
	store    databases.VectorStore
	emb      embedder.Embedder
	breakers *reliability.Registry
	clock    Clock
}

// New constructs a memory Service.
func New(store databases.VectorStore, emb embedder.Embedder, breakers *reliability.Registry) *Service {
	return &Service{store: store, emb: emb, breakers: breakers, clock: systemClock{}}
}

// WithClock overrides the clock, for deterministic decay tests.
func (s *Service) WithClock(c Clock) *Service { s.clock = c; return s }

func collectionFor(project string) string {
	return project + "_agent_memory"
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := s.breakers.Get("embedding").Execute(func() error {
		vecs, err := s.emb.EmbedBatch(ctx, []string{text})
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

// payloadOf and memoryFromPayload encode every field as a plain string.
// databases.VectorResult.Metadata is map[string]string on every backend
// (each flattens its payload via fmt.Sprintf("%v", v) on read) so any
// non-string value written here would come back mangled; composite fields
// are JSON-encoded rather than stored as native slices/maps/bools.
func payloadOf(m Memory) map[string]any {
	p := map[string]any{
		"project":   m.Project,
		"type":      string(m.Type),
		"content":   m.Content,
		"validated": strconv.FormatBool(m.Validated),
		"createdAt": m.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt": m.UpdatedAt.Format(time.RFC3339Nano),
	}
	if !m.LastAccessed.IsZero() {
		p["lastAccessed"] = m.LastAccessed.Format(time.RFC3339Nano)
	}
	if len(m.Tags) > 0 {
		p["tags"] = mustJSON(m.Tags)
	}
	if m.SupersededBy != "" {
		p["supersededBy"] = m.SupersededBy
	}
	if len(m.RelatedTo) > 0 {
		p["relatedTo"] = mustJSON(m.RelatedTo)
	}
	if m.Status != "" {
		p["status"] = string(m.Status)
	}
	if len(m.StatusHistory) > 0 {
		p["statusHistory"] = mustJSON(m.StatusHistory)
	}
	if len(m.Metadata) > 0 {
		p["metadata"] = mustJSON(m.Metadata)
	}
	return p
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func memoryFromPayload(id string, p map[string]any) Memory {
	m := Memory{ID: id, Metadata: map[string]any{}}
	str := func(key string) string {
		v, _ := p[key].(string)
		return v
	}
	m.Project = str("project")
	m.Type = Type(str("type"))
	m.Content = str("content")
	m.Validated, _ = strconv.ParseBool(str("validated"))
	m.SupersededBy = str("supersededBy")
	m.Status = TodoStatus(str("status"))
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, str("createdAt"))
	m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, str("updatedAt"))
	if v := str("lastAccessed"); v != "" {
		m.LastAccessed, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v := str("tags"); v != "" {
		_ = json.Unmarshal([]byte(v), &m.Tags)
	}
	if v := str("relatedTo"); v != "" {
		_ = json.Unmarshal([]byte(v), &m.RelatedTo)
	}
	if v := str("statusHistory"); v != "" {
		_ = json.Unmarshal([]byte(v), &m.StatusHistory)
	}
	if v := str("metadata"); v != "" {
		_ = json.Unmarshal([]byte(v), &m.Metadata)
	}
	return m
}

// NearestThreshold is the best-effort relatedTo prepopulation cutoff named in
// spec.md §4.F.
const NearestThreshold = 0.85

// Remember embeds "{type}: {content}" and stores the memory. Todo memories
// get status=pending plus a statusHistory append. relatedTo prepopulation
// via nearest-neighbor search is best-effort and never fails the call.
func (s *Service) Remember(ctx context.Context, project string, typ Type, content string, tags []string, metadata map[string]any) (Memory, error) {
	if err := reliability.ProjectName(project); err != nil {
		return Memory{}, err
	}
	now := s.clock.Now()
	m := Memory{
		ID:        uuid.NewString(),
		Project:   project,
		Type:      typ,
		Content:   content,
		Tags:      tags,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if typ == TypeTodo {
		m.Status = TodoPending
		m.StatusHistory = []StatusChange{{Status: TodoPending, At: now}}
	}

	vec, err := s.embed(ctx, fmt.Sprintf("%s: %s", typ, content))
	if err != nil {
		return Memory{}, err
	}

	if related, ok := s.findRelated(ctx, project, vec); ok {
		m.RelatedTo = related
	}

	point := databases.Point{ID: m.ID, Vector: vec, Payload: payloadOf(m)}
	if err := s.upsert(ctx, project, point); err != nil {
		return Memory{}, err
	}
	return m, nil
}

// findRelated is the best-effort nearest-neighbor prepopulation; any failure
// is swallowed since it's non-essential to the remember call succeeding.
func (s *Service) findRelated(ctx context.Context, project string, vec []float32) ([]string, bool) {
	results, err := s.store.Search(ctx, collectionFor(project), vec, 5, nil, NearestThreshold)
	if err != nil || len(results) == 0 {
		return nil, false
	}
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids, true
}

func (s *Service) upsert(ctx context.Context, project string, points ...databases.Point) error {
	return s.breakers.Get("vectorStore").Execute(func() error {
		if err := s.store.UpsertPoints(ctx, collectionFor(project), points); err != nil {
			return reliability.New(reliability.KindUpstream, "memory upsert failed", err)
		}
		return nil
	})
}

// ScoredMemory pairs a Memory with its adjusted relevance score.
type ScoredMemory struct {
	Memory Memory  `json:"memory"`
	Score  float64 `json:"score"`
}

// RecallOptions filters a Recall call.
type RecallOptions struct {
	Type  Type
	Tag   string
	Limit int
}

// decayFactor implements spec.md's aging decay:
// s * max(0.5, 1 - 0.05*floor((ageDays-30)/30)) for ageDays >= 30, validated
// memories exempt.
func decayFactor(ageDays float64, validated bool) float64 {
	if validated || ageDays < 30 {
		return 1.0
	}
	steps := float64(int((ageDays - 30) / 30))
	factor := 1 - 0.05*steps
	if factor < 0.5 {
		factor = 0.5
	}
	return factor
}

// Recall embeds query, searches 2*limit candidates, filters by type/tag,
// drops superseded memories, applies aging decay, and returns the top limit
// by adjusted score.
func (s *Service) Recall(ctx context.Context, project, query string, opt RecallOptions) ([]ScoredMemory, error) {
	limit := opt.Limit
	if limit <= 0 {
		limit = 10
	}
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	var results []databases.VectorResult
	err = s.breakers.Get("vectorStore").Execute(func() error {
		r, err := s.store.Search(ctx, collectionFor(project), vec, 2*limit, nil, 0)
		if err != nil {
			return reliability.New(reliability.KindUpstream, "memory search failed", err)
		}
		results = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	scored := make([]ScoredMemory, 0, len(results))
	for _, r := range results {
		id, payload, ok := s.fetchPayload(ctx, project, r)
		if !ok {
			continue
		}
		m := memoryFromPayload(id, payload)
		if m.SupersededBy != "" {
			continue
		}
		if opt.Type != "" && m.Type != opt.Type {
			continue
		}
		if opt.Tag != "" && !containsTag(m.Tags, opt.Tag) {
			continue
		}
		ageDays := now.Sub(m.CreatedAt).Hours() / 24
		adj := r.Score * decayFactor(ageDays, m.Validated)
		scored = append(scored, ScoredMemory{Memory: m, Score: adj})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// fetchPayload adapts a VectorResult's metadata (string map) back to the
// any-typed payload used for memory decoding; metadata from Search is
// string-typed so this works over the common VectorResult/Metadata case.
func (s *Service) fetchPayload(_ context.Context, _ string, r databases.VectorResult) (string, map[string]any, bool) {
	if r.Metadata == nil {
		return r.ID, nil, false
	}
	p := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		p[k] = v
	}
	return r.ID, p, true
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Forget hard-deletes a memory by id, swallowing backend errors into a
// false return per spec.md §4.F.
func (s *Service) Forget(ctx context.Context, project, id string) bool {
	err := s.breakers.Get("vectorStore").Execute(func() error {
		return s.store.Delete(ctx, id)
	})
	return err == nil
}

// ForgetByType deletes every memory of the given type in a project, returning
// the count removed. Implemented via scroll (List) + per-id delete since the
// VectorStore contract has no bulk-filtered delete.
func (s *Service) ForgetByType(ctx context.Context, project string, typ Type) (int, error) {
	mems, err := s.List(ctx, project, RecallOptions{Type: typ, Limit: 1000})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range mems {
		if s.Forget(ctx, project, m.ID) {
			n++
		}
	}
	return n, nil
}

// List returns active (non-superseded) memories matching filters without a
// semantic query, using a zero-vector scroll over the collection.
func (s *Service) List(ctx context.Context, project string, opt RecallOptions) ([]Memory, error) {
	limit := opt.Limit
	if limit <= 0 {
		limit = 50
	}
	filter := &databases.Filter{}
	if opt.Type != "" {
		filter.Must = append(filter.Must, databases.Condition{Key: "type", Value: string(opt.Type)})
	}
	var results []databases.VectorResult
	err := s.breakers.Get("vectorStore").Execute(func() error {
		r, err := s.store.Search(ctx, collectionFor(project), nil, limit, filter, 0)
		if err != nil {
			return reliability.New(reliability.KindUpstream, "memory list failed", err)
		}
		results = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Memory, 0, len(results))
	for _, r := range results {
		id, payload, ok := s.fetchPayload(ctx, project, r)
		if !ok {
			continue
		}
		m := memoryFromPayload(id, payload)
		if m.SupersededBy != "" {
			continue
		}
		if opt.Tag != "" && !containsTag(m.Tags, opt.Tag) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
