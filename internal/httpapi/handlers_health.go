package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// handleHealth reports process liveness plus the reliability fabric's
// breaker states and cache hit rates, per spec.md §6.
func (s *Server) handleHealth(c echo.Context) error {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"breakers":  s.Breakers.Snapshot(),
	}
	if s.Cache != nil {
		body["cache"] = s.Cache.GetStats()
	}
	return c.JSON(http.StatusOK, body)
}

// handleMetrics exposes the breaker registry and cache tier stats the
// teacher's otel stack pushes to an OTLP collector rather than scrapes;
// this endpoint is the pull-based complement for operators without an
// OTLP backend wired up.
func (s *Server) handleMetrics(c echo.Context) error {
	body := map[string]any{
		"breakers": s.Breakers.Snapshot(),
	}
	if s.Cache != nil {
		body["cache"] = s.Cache.GetStats()
	}
	return c.JSON(http.StatusOK, body)
}
