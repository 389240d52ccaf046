// Package httpapi implements the HTTP surface (SPEC_FULL.md component K):
// an echo router dispatching to the retrieval engine, memory service,
// session manager and indexer behind the project/request-id header
// contract of spec.md §6.
package httpapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"knowledgecore/internal/cache"
	"knowledgecore/internal/indexer"
	"knowledgecore/internal/memory"
	"knowledgecore/internal/observability"
	"knowledgecore/internal/persistence/databases"
	"knowledgecore/internal/reliability"
	"knowledgecore/internal/retrieval"
	"knowledgecore/internal/session"
)

// maxBodySize is the 10MB request body ceiling named in spec.md §6, in the
// size-suffixed form echo's BodyLimit middleware parses.
const maxBodySize = "10M"

// Server bundles every component the router dispatches to.
type Server struct {
	Retrieval *retrieval.Engine
	Memory    *memory.Service
	Session   *session.Manager
	Indexer   *indexer.Indexer
	Cache     *cache.Cache
	Vector    databases.VectorStore
	Breakers  *reliability.Registry
}

// NewRouter builds the echo instance, middleware chain, and full route
// table for a Server.
func NewRouter(s *Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(requestIDMiddleware)
	e.Use(projectContextMiddleware)
	e.Use(accessLogMiddleware)

	e.GET("/health", s.handleHealth)
	e.GET("/metrics", s.handleMetrics)

	api := e.Group("/api")

	api.POST("/search", s.handleSearch)
	api.POST("/search-hybrid", s.handleSearchHybrid)
	api.POST("/search-grouped", s.handleSearchGrouped)
	api.POST("/search-similar", s.handleSearchSimilar)
	api.POST("/search-graph", s.handleSearchGraph)
	api.POST("/ask", s.handleAsk)
	api.POST("/explain", s.handleExplain)
	api.POST("/find-feature", s.handleFindFeature)
	api.POST("/context-pack", s.handleContextPack)

	api.POST("/index", s.handleIndex)
	api.POST("/reindex", s.handleReindex)
	api.GET("/index/status/:collection", s.handleIndexStatus)
	api.GET("/stats/:collection", s.handleProjectStats)

	api.GET("/collections", s.handleListCollections)
	api.GET("/collections/:name", s.handleCollectionInfo)
	api.POST("/collections/:name/clear", s.handleClearCollection)
	api.DELETE("/collections/:name", s.handleDeleteCollection)
	api.GET("/aliases", s.handleListAliases)
	api.GET("/alias/:project", s.handleGetAlias)

	api.POST("/memory", s.handleMemoryRemember)
	api.POST("/memory/recall", s.handleMemoryRecall)
	api.GET("/memory/list", s.handleMemoryList)
	api.DELETE("/memory/:id", s.handleMemoryForget)
	api.PATCH("/memory/:id/validate", s.handleMemoryValidate)
	api.PATCH("/memory/todo/:id", s.handleMemoryTodoStatus)
	api.POST("/memory/merge", s.handleMemoryMerge)
	api.POST("/memory/batch", s.handleMemoryBatch)
	api.GET("/memory/stats", s.handleMemoryStats)
	api.GET("/memory/quarantine", s.handleMemoryQuarantine)
	api.GET("/memory/unvalidated", s.handleMemoryUnvalidated)

	api.POST("/session/start", s.handleSessionStart)
	api.GET("/session/:id", s.handleSessionGet)
	api.POST("/session/:id/activity", s.handleSessionActivity)
	api.POST("/session/:id/decision", s.handleSessionDecision)
	api.POST("/session/:id/learning", s.handleSessionLearning)
	api.POST("/session/:id/end", s.handleSessionEnd)
	api.GET("/sessions", s.handleSessionList)

	return e
}

func accessLogMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
		}
		log := observability.LoggerWithTrace(c.Request().Context())
		log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", status).
			Str("requestId", requestID(c)).
			Msg("http request")
		return err
	}
}

// errorHandler maps a handler's error into the reliability taxonomy's HTTP
// status and a {error:{kind,message}} body, echoing X-Request-ID on every
// response per spec.md §6.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := reliability.StatusCode(err)
	kind := "internal"
	msg := err.Error()
	if rerr, ok := reliability.AsError(err); ok {
		kind = string(rerr.Kind)
		msg = rerr.Message
	}
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	_ = c.JSON(status, map[string]any{
		"error": map[string]any{
			"kind":    kind,
			"message": msg,
		},
		"requestId": requestID(c),
	})
}
