package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"knowledgecore/internal/indexer"
	"knowledgecore/internal/reliability"
)

type indexRequest struct {
	Project         string   `json:"project"`
	Path            string   `json:"path"`
	Force           bool     `json:"force,omitempty"`
	Patterns        []string `json:"patterns,omitempty"`
	ExcludePatterns []string `json:"excludePatterns,omitempty"`
}

func (req indexRequest) toRequest(c echo.Context) indexer.IndexRequest {
	project := req.Project
	if project == "" {
		project = projectName(c)
	}
	path := req.Path
	if path == "" {
		path = projectPath(c)
	}
	return indexer.IndexRequest{
		Project:         project,
		Path:            path,
		Force:           req.Force,
		Patterns:        req.Patterns,
		ExcludePatterns: req.ExcludePatterns,
	}
}

func (s *Server) handleIndex(c echo.Context) error {
	var req indexRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	ireq := req.toRequest(c)
	if ireq.Project == "" || ireq.Path == "" {
		return reliability.Validation("project and path are required")
	}
	if err := s.Indexer.IndexProject(c.Request().Context(), ireq); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, s.Indexer.GetIndexStatus(ireq.Project))
}

type reindexRequest struct {
	indexRequest
	Alias string `json:"alias,omitempty"`
}

func (s *Server) handleReindex(c echo.Context) error {
	var req reindexRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	ireq := req.indexRequest.toRequest(c)
	if ireq.Project == "" || ireq.Path == "" {
		return reliability.Validation("project and path are required")
	}
	if err := s.Indexer.ReindexWithZeroDowntime(c.Request().Context(), ireq, req.Alias); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, s.Indexer.GetIndexStatus(ireq.Project))
}

func (s *Server) handleIndexStatus(c echo.Context) error {
	project := c.Param("collection")
	return c.JSON(http.StatusOK, s.Indexer.GetIndexStatus(project))
}

func (s *Server) handleProjectStats(c echo.Context) error {
	project := c.Param("collection")
	path := c.QueryParam("path")
	if path == "" {
		path = projectPath(c)
	}
	if path == "" {
		return reliability.Validation("path is required (query param or X-Project-Path)")
	}
	stats, err := s.Indexer.GetProjectStats(project, path, nil, nil)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
