package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"knowledgecore/internal/memory"
	"knowledgecore/internal/reliability"
)

func memoryProject(c echo.Context, body string) (string, error) {
	project := body
	if project == "" {
		project = projectName(c)
	}
	if project == "" {
		return "", reliability.Validation("project is required (body field or X-Project-Name header)")
	}
	return project, nil
}

type rememberRequest struct {
	Project  string         `json:"project,omitempty"`
	Type     memory.Type    `json:"type"`
	Content  string         `json:"content"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleMemoryRemember(c echo.Context) error {
	var req rememberRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	project, err := memoryProject(c, req.Project)
	if err != nil {
		return err
	}
	if req.Content == "" || req.Type == "" {
		return reliability.Validation("type and content are required")
	}
	m, err := s.Memory.Remember(c.Request().Context(), project, req.Type, req.Content, req.Tags, req.Metadata)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

type recallRequest struct {
	Project string      `json:"project,omitempty"`
	Query   string      `json:"query"`
	Type    memory.Type `json:"type,omitempty"`
	Tag     string      `json:"tag,omitempty"`
	Limit   int         `json:"limit,omitempty"`
}

func (s *Server) handleMemoryRecall(c echo.Context) error {
	var req recallRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	project, err := memoryProject(c, req.Project)
	if err != nil {
		return err
	}
	if req.Query == "" {
		return reliability.Validation("query is required")
	}
	scored, err := s.Memory.Recall(c.Request().Context(), project, req.Query, memory.RecallOptions{
		Type: req.Type, Tag: req.Tag, Limit: req.Limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": scored})
}

func (s *Server) handleMemoryList(c echo.Context) error {
	project, err := memoryProject(c, c.QueryParam("project"))
	if err != nil {
		return err
	}
	opt := memory.RecallOptions{Type: memory.Type(c.QueryParam("type")), Tag: c.QueryParam("tag")}
	mems, err := s.Memory.List(c.Request().Context(), project, opt)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": mems})
}

func (s *Server) handleMemoryForget(c echo.Context) error {
	project, err := memoryProject(c, c.QueryParam("project"))
	if err != nil {
		return err
	}
	id := c.Param("id")
	if !s.Memory.Forget(c.Request().Context(), project, id) {
		return reliability.NotFound("memory not found: " + id)
	}
	return c.NoContent(http.StatusNoContent)
}

type validateRequest struct {
	Project   string `json:"project,omitempty"`
	Validated bool   `json:"validated"`
}

func (s *Server) handleMemoryValidate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	project, err := memoryProject(c, req.Project)
	if err != nil {
		return err
	}
	m, err := s.Memory.ValidateMemory(c.Request().Context(), project, c.Param("id"), req.Validated)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

type todoStatusRequest struct {
	Project string             `json:"project,omitempty"`
	Status  memory.TodoStatus  `json:"status"`
}

func (s *Server) handleMemoryTodoStatus(c echo.Context) error {
	var req todoStatusRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	project, err := memoryProject(c, req.Project)
	if err != nil {
		return err
	}
	if req.Status == "" {
		return reliability.Validation("status is required")
	}
	m, err := s.Memory.UpdateTodoStatus(c.Request().Context(), project, c.Param("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

type mergeRequest struct {
	Project   string  `json:"project,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	DryRun    bool    `json:"dryRun,omitempty"`
}

func (s *Server) handleMemoryMerge(c echo.Context) error {
	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	project, err := memoryProject(c, req.Project)
	if err != nil {
		return err
	}
	clusters, err := s.Memory.MergeMemories(c.Request().Context(), project, memory.MergeOptions{
		Threshold: req.Threshold, DryRun: req.DryRun,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"clusters": clusters})
}

type batchRememberRequest struct {
	Project string              `json:"project,omitempty"`
	Items   []batchRememberItem `json:"items"`
}

type batchRememberItem struct {
	Type     memory.Type    `json:"type"`
	Content  string         `json:"content"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleMemoryBatch(c echo.Context) error {
	var req batchRememberRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	project, err := memoryProject(c, req.Project)
	if err != nil {
		return err
	}
	if len(req.Items) == 0 {
		return reliability.Validation("items is required")
	}
	items := make([]memory.BatchItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = memory.BatchItem{Type: it.Type, Content: it.Content, Tags: it.Tags, Metadata: it.Metadata}
	}
	result, err := s.Memory.BatchRemember(c.Request().Context(), project, items)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleMemoryStats(c echo.Context) error {
	project, err := memoryProject(c, c.QueryParam("project"))
	if err != nil {
		return err
	}
	stats, err := s.Memory.GetStats(c.Request().Context(), project)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleMemoryQuarantine(c echo.Context) error {
	project, err := memoryProject(c, c.QueryParam("project"))
	if err != nil {
		return err
	}
	mems, err := s.Memory.Quarantine(c.Request().Context(), project)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": mems})
}

func (s *Server) handleMemoryUnvalidated(c echo.Context) error {
	project, err := memoryProject(c, c.QueryParam("project"))
	if err != nil {
		return err
	}
	mems, err := s.Memory.GetUnvalidatedMemories(c.Request().Context(), project, 100)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": mems})
}
