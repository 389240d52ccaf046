// Package session implements session context tracking and predictive
// prefetch (SPEC_FULL.md component G): bounded per-session activity state,
// cache-through persistence, and end-of-session materialization of insights
// and decisions into the memory service.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"knowledgecore/internal/cache"
	"knowledgecore/internal/memory"
)

const (
	maxFiles   = 20
	maxQueries = 50
	trailingQueriesForResume = 5
)

// Decision is one design decision recorded during a session.
type Decision struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Context is the spec.md §3 SessionContext record.
type Context struct {
	ID             string     `json:"id"`
	Project        string     `json:"project"`
	StartedAt      time.Time  `json:"startedAt"`
	CurrentFiles   []string   `json:"currentFiles"`
	RecentQueries  []string   `json:"recentQueries"`
	ToolsUsed      []string   `json:"toolsUsed"`
	ActiveFeatures []string   `json:"activeFeatures"`
	Decisions      []Decision `json:"decisions"`
	PendingLearnings []string `json:"pendingLearnings"`
	LastActivity   time.Time  `json:"lastActivity"`
}

// Summary is the return shape of EndSession.
type Summary struct {
	SessionID      string        `json:"sessionId"`
	Project        string        `json:"project"`
	Duration       time.Duration `json:"duration"`
	ToolsUsed      []string      `json:"toolsUsed"`
	FilesTouched   []string      `json:"filesTouched"`
	QueryCount     int           `json:"queryCount"`
	LearningsSaved int           `json:"learningsSaved"`
	Summary        string        `json:"summary"`
}

// Prefetcher is invoked fire-and-forget after session start and every
// activity update to warm likely-next results; failures are swallowed.
type Prefetcher interface {
	Prefetch(ctx context.Context, project string, ctxSnapshot Context)
}

// NoopPrefetcher discards prefetch requests; used when no predictive loader
// is wired.
type NoopPrefetcher struct{}

func (NoopPrefetcher) Prefetch(context.Context, string, Context) {}

// Clock abstracts time for deterministic tests.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Manager owns every live session's context, single-writer per session via
// a per-session mutex, cache-through to the L1 tier for cross-request
// durability within a process.
type Manager struct {
	cache  *cache.Cache
	mem    *memory.Service
	pref   Prefetcher
	clock  Clock

	mu       sync.Mutex
	sessions map[string]*sessionState
}

type sessionState struct {
	mu  sync.Mutex
	ctx Context
}

// New constructs a session Manager.
func New(c *cache.Cache, mem *memory.Service, pref Prefetcher) *Manager {
	if pref == nil {
		pref = NoopPrefetcher{}
	}
	return &Manager{cache: c, mem: mem, pref: pref, clock: systemClock{}, sessions: make(map[string]*sessionState)}
}

// WithClock overrides the clock for deterministic tests.
func (m *Manager) WithClock(c Clock) *Manager { m.clock = c; return m }

// StartSession begins a new session, optionally inheriting currentFiles, the
// trailing 5 queries, and decisions from resumeFrom.
func (m *Manager) StartSession(ctx context.Context, project, resumeFrom string) Context {
	now := m.clock.Now()
	sc := Context{
		ID:        uuid.NewString(),
		Project:   project,
		StartedAt: now,
		LastActivity: now,
	}
	if resumeFrom != "" {
		if prior, ok := m.get(resumeFrom); ok {
			sc.CurrentFiles = append([]string(nil), prior.CurrentFiles...)
			sc.Decisions = append([]Decision(nil), prior.Decisions...)
			if len(prior.RecentQueries) > trailingQueriesForResume {
				sc.RecentQueries = append([]string(nil), prior.RecentQueries[len(prior.RecentQueries)-trailingQueriesForResume:]...)
			} else {
				sc.RecentQueries = append([]string(nil), prior.RecentQueries...)
			}
		}
	}

	m.mu.Lock()
	m.sessions[sc.ID] = &sessionState{ctx: sc}
	m.mu.Unlock()
	m.persist(sc)
	m.pref.Prefetch(ctx, project, sc)
	return sc
}

func (m *Manager) get(id string) (Context, bool) {
	m.mu.Lock()
	st, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return Context{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.ctx, true
}

func (m *Manager) persist(sc Context) {
	b := mustMarshal(sc)
	m.cache.SetL1(cache.SessionKey(sc.Project, sc.ID), b, "session:"+sc.ID, 0)
}

// Activity is one recorded unit of session activity.
type Activity struct {
	File    string
	Query   string
	Tool    string
	Feature string
}

// RecordActivity appends an activity to the session, FIFO-truncating
// currentFiles at 20 entries and recentQueries at 50, then fires a
// best-effort prefetch.
func (m *Manager) RecordActivity(ctx context.Context, sessionID string, a Activity) (Context, error) {
	m.mu.Lock()
	st, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return Context{}, fmt.Errorf("session %s not found", sessionID)
	}
	st.mu.Lock()
	if a.File != "" {
		st.ctx.CurrentFiles = appendBounded(st.ctx.CurrentFiles, a.File, maxFiles)
	}
	if a.Query != "" {
		st.ctx.RecentQueries = appendBounded(st.ctx.RecentQueries, a.Query, maxQueries)
	}
	if a.Tool != "" {
		st.ctx.ToolsUsed = appendUnique(st.ctx.ToolsUsed, a.Tool)
	}
	if a.Feature != "" {
		st.ctx.ActiveFeatures = appendUnique(st.ctx.ActiveFeatures, a.Feature)
	}
	st.ctx.LastActivity = m.clock.Now()
	snapshot := st.ctx
	st.mu.Unlock()

	m.persist(snapshot)
	m.pref.Prefetch(ctx, snapshot.Project, snapshot)
	return snapshot, nil
}

// RecordDecision appends a design decision to the session, materialized as a
// decision memory at EndSession.
func (m *Manager) RecordDecision(sessionID, text string) error {
	m.mu.Lock()
	st, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	st.mu.Lock()
	st.ctx.Decisions = append(st.ctx.Decisions, Decision{Text: text, At: m.clock.Now()})
	snapshot := st.ctx
	st.mu.Unlock()
	m.persist(snapshot)
	return nil
}

// RecordLearning queues a pending learning, materialized as an insight
// memory at EndSession.
func (m *Manager) RecordLearning(sessionID, text string) error {
	m.mu.Lock()
	st, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	st.mu.Lock()
	st.ctx.PendingLearnings = append(st.ctx.PendingLearnings, text)
	snapshot := st.ctx
	st.mu.Unlock()
	m.persist(snapshot)
	return nil
}

// EndSession materializes pendingLearnings as insight memories and decisions
// as decision memories, each tagged "session","{sessionId[0..8]}" with
// metadata.sessionId, then removes the session.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (Summary, error) {
	m.mu.Lock()
	st, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if !ok {
		return Summary{}, fmt.Errorf("session %s not found", sessionID)
	}
	st.mu.Lock()
	sc := st.ctx
	st.mu.Unlock()

	shortID := sessionID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	tags := []string{"session", shortID}
	meta := map[string]any{"sessionId": sessionID}

	saved := 0
	if m.mem != nil {
		for _, l := range sc.PendingLearnings {
			if _, err := m.mem.Remember(ctx, sc.Project, memory.TypeInsight, l, tags, meta); err == nil {
				saved++
			}
		}
		for _, d := range sc.Decisions {
			if _, err := m.mem.Remember(ctx, sc.Project, memory.TypeDecision, d.Text, tags, meta); err == nil {
				saved++
			}
		}
	}

	m.cache.InvalidateScope("session:" + sessionID)
	duration := m.clock.Now().Sub(sc.StartedAt)
	return Summary{
		SessionID:      sessionID,
		Project:        sc.Project,
		Duration:       duration,
		ToolsUsed:      sc.ToolsUsed,
		FilesTouched:   sc.CurrentFiles,
		QueryCount:     len(sc.RecentQueries),
		LearningsSaved: saved,
		Summary:        fmt.Sprintf("session %s touched %d files, ran %d queries, saved %d learnings over %s", shortID, len(sc.CurrentFiles), len(sc.RecentQueries), saved, duration.Round(time.Second)),
	}, nil
}

// Get returns the live context for a session.
func (m *Manager) Get(sessionID string) (Context, bool) {
	return m.get(sessionID)
}

// List returns every live session's context, optionally filtered to one
// project.
func (m *Manager) List(project string) []Context {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	out := make([]Context, 0, len(ids))
	for _, id := range ids {
		if sc, ok := m.get(id); ok {
			if project != "" && sc.Project != project {
				continue
			}
			out = append(out, sc)
		}
	}
	return out
}

func appendBounded(list []string, v string, max int) []string {
	list = append(list, v)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
