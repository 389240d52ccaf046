package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"knowledgecore/internal/reliability"
	"knowledgecore/internal/session"
)

type sessionStartRequest struct {
	Project    string `json:"project,omitempty"`
	ResumeFrom string `json:"resumeFrom,omitempty"`
}

func (s *Server) handleSessionStart(c echo.Context) error {
	var req sessionStartRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	project := req.Project
	if project == "" {
		project = projectName(c)
	}
	if project == "" {
		return reliability.Validation("project is required")
	}
	ctx := s.Session.StartSession(c.Request().Context(), project, req.ResumeFrom)
	return c.JSON(http.StatusCreated, ctx)
}

func (s *Server) handleSessionGet(c echo.Context) error {
	ctx, ok := s.Session.Get(c.Param("id"))
	if !ok {
		return reliability.NotFound("session not found: " + c.Param("id"))
	}
	return c.JSON(http.StatusOK, ctx)
}

type sessionActivityRequest struct {
	File    string `json:"file,omitempty"`
	Query   string `json:"query,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Feature string `json:"feature,omitempty"`
}

func (s *Server) handleSessionActivity(c echo.Context) error {
	var req sessionActivityRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	ctx, err := s.Session.RecordActivity(c.Request().Context(), c.Param("id"), session.Activity{
		File: req.File, Query: req.Query, Tool: req.Tool, Feature: req.Feature,
	})
	if err != nil {
		return reliability.NotFound(err.Error())
	}
	return c.JSON(http.StatusOK, ctx)
}

type sessionTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSessionDecision(c echo.Context) error {
	var req sessionTextRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Text == "" {
		return reliability.Validation("text is required")
	}
	if err := s.Session.RecordDecision(c.Param("id"), req.Text); err != nil {
		return reliability.NotFound(err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSessionLearning(c echo.Context) error {
	var req sessionTextRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Text == "" {
		return reliability.Validation("text is required")
	}
	if err := s.Session.RecordLearning(c.Param("id"), req.Text); err != nil {
		return reliability.NotFound(err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSessionEnd(c echo.Context) error {
	summary, err := s.Session.EndSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return reliability.NotFound(err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleSessionList(c echo.Context) error {
	sessions := s.Session.List(c.QueryParam("project"))
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}
