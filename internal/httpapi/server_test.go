package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"knowledgecore/internal/cache"
	"knowledgecore/internal/config"
	"knowledgecore/internal/indexer"
	"knowledgecore/internal/memory"
	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/rag/embedder"
	"knowledgecore/internal/reliability"
	"knowledgecore/internal/retrieval"
	"knowledgecore/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	vector := databases.NewMemoryVector()
	graph := databases.NewMemoryGraph()
	breakers := reliability.NewRegistry(reliability.BreakerConfig{})
	emb := embedder.NewDeterministic(16, true, 1)

	memSvc := memory.New(vector, emb, breakers)
	idx := indexer.New(vector, graph, emb, breakers, false)
	engine := retrieval.New(vector, graph, emb, nil, breakers).WithMemory(memSvc)
	c := cache.New(config.CacheConfig{})
	sessions := session.New(c, memSvc, session.NoopPrefetcher{})

	return &Server{
		Retrieval: engine,
		Memory:    memSvc,
		Session:   sessions,
		Indexer:   idx,
		Cache:     c,
		Vector:    vector,
		Breakers:  breakers,
	}
}

func TestHealth_ReportsOK(t *testing.T) {
	e := NewRouter(newTestServer(t))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("expected status ok in body, got %s", rec.Body.String())
	}
}

func TestSearch_RejectsMissingProjectHeader(t *testing.T) {
	e := NewRouter(newTestServer(t))
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"auth flow"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing X-Project-Name, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSearch_EchoesRequestID(t *testing.T) {
	e := NewRouter(newTestServer(t))
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"query":"auth flow"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Project-Name", "acme")
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Request-ID"); got != "req-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
}

func TestMemoryRemember_ThenRecall(t *testing.T) {
	e := NewRouter(newTestServer(t))

	rememberReq := httptest.NewRequest(http.MethodPost, "/api/memory", strings.NewReader(
		`{"type":"fact","content":"the service boots on port 8080"}`))
	rememberReq.Header.Set("Content-Type", "application/json")
	rememberReq.Header.Set("X-Project-Name", "acme")
	rememberRec := httptest.NewRecorder()
	e.ServeHTTP(rememberRec, rememberReq)
	if rememberRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rememberRec.Code, rememberRec.Body.String())
	}

	recallReq := httptest.NewRequest(http.MethodPost, "/api/memory/recall", strings.NewReader(
		`{"query":"what port does it boot on"}`))
	recallReq.Header.Set("Content-Type", "application/json")
	recallReq.Header.Set("X-Project-Name", "acme")
	recallRec := httptest.NewRecorder()
	e.ServeHTTP(recallRec, recallReq)
	if recallRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recallRec.Code, recallRec.Body.String())
	}
	if !strings.Contains(recallRec.Body.String(), "boots on port 8080") {
		t.Fatalf("expected recalled memory in body, got %s", recallRec.Body.String())
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := NewRouter(newTestServer(t))

	startReq := httptest.NewRequest(http.MethodPost, "/api/session/start", strings.NewReader(`{"project":"acme"}`))
	startReq.Header.Set("Content-Type", "application/json")
	startRec := httptest.NewRecorder()
	e.ServeHTTP(startRec, startReq)
	if startRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", startRec.Code, startRec.Body.String())
	}
}

func TestUnknownSession_Returns404(t *testing.T) {
	e := NewRouter(newTestServer(t))
	req := httptest.NewRequest(http.MethodGet, "/api/session/does-not-exist", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
