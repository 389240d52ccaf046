package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"knowledgecore/internal/reliability"
	"knowledgecore/internal/retrieval"
)

// collectionFor resolves the request's target collection, defaulting the
// suffix to "codebase" when the caller supplies a bare collection field.
func collectionFor(c echo.Context, name string) (string, error) {
	project := projectName(c)
	if project == "" {
		return "", reliability.Validation("X-Project-Name header is required")
	}
	if name == "" {
		name = retrieval.SuffixCodebase
	}
	return retrieval.CollectionName(project, name), nil
}

type searchRequest struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
	K          int    `json:"k,omitempty"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Query == "" {
		return reliability.Validation("query is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	results, err := s.Retrieval.Search(c.Request().Context(), collection, req.Query, req.K)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

type searchHybridRequest struct {
	searchRequest
	Weight float64 `json:"weight,omitempty"`
}

func (s *Server) handleSearchHybrid(c echo.Context) error {
	var req searchHybridRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Query == "" {
		return reliability.Validation("query is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	result, err := s.Retrieval.SearchHybrid(c.Request().Context(), collection, req.Query, req.K, req.Weight)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

type searchGroupedRequest struct {
	searchRequest
	GroupBy   string `json:"groupBy"`
	GroupSize int    `json:"groupSize,omitempty"`
}

func (s *Server) handleSearchGrouped(c echo.Context) error {
	var req searchGroupedRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Query == "" {
		return reliability.Validation("query is required")
	}
	if req.GroupBy == "" {
		req.GroupBy = "file"
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	groups, err := s.Retrieval.SearchGrouped(c.Request().Context(), collection, req.Query, req.GroupBy, req.K, req.GroupSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"groups": groups})
}

type searchSimilarRequest struct {
	Snippet        string  `json:"snippet"`
	Collection     string  `json:"collection,omitempty"`
	K              int     `json:"k,omitempty"`
	ScoreThreshold float64 `json:"scoreThreshold,omitempty"`
}

func (s *Server) handleSearchSimilar(c echo.Context) error {
	var req searchSimilarRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Snippet == "" {
		return reliability.Validation("snippet is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	results, err := s.Retrieval.SearchSimilar(c.Request().Context(), collection, req.Snippet, req.K, req.ScoreThreshold)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}

type searchGraphRequest struct {
	searchRequest
	Hops int `json:"hops,omitempty"`
}

func (s *Server) handleSearchGraph(c echo.Context) error {
	var req searchGraphRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Query == "" {
		return reliability.Validation("query is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	result, err := s.Retrieval.SearchGraph(c.Request().Context(), collection, req.Query, req.K, req.Hops)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

type askRequest struct {
	Question   string `json:"question"`
	Collection string `json:"collection,omitempty"`
}

func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Question == "" {
		return reliability.Validation("question is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	resp, err := s.Retrieval.Ask(c.Request().Context(), collection, req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

type explainRequest struct {
	File        string `json:"file"`
	FileContent string `json:"fileContent"`
	Collection  string `json:"collection,omitempty"`
}

func (s *Server) handleExplain(c echo.Context) error {
	var req explainRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.FileContent == "" {
		return reliability.Validation("fileContent is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	resp, err := s.Retrieval.Explain(c.Request().Context(), collection, req.File, req.FileContent)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

type findFeatureRequest struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
}

func (s *Server) handleFindFeature(c echo.Context) error {
	var req findFeatureRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Query == "" {
		return reliability.Validation("query is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	resp, err := s.Retrieval.FindFeature(c.Request().Context(), collection, req.Query)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

type contextPackRequest struct {
	Query         string `json:"query"`
	Collection    string `json:"collection,omitempty"`
	IncludeMemory bool   `json:"includeMemory,omitempty"`
	IncludeTests  bool   `json:"includeTests,omitempty"`
	IncludeGraph  bool   `json:"includeGraph,omitempty"`
	TokenBudget   int    `json:"tokenBudget,omitempty"`
}

func (s *Server) handleContextPack(c echo.Context) error {
	var req contextPackRequest
	if err := c.Bind(&req); err != nil {
		return reliability.Validation("invalid request body")
	}
	if req.Query == "" {
		return reliability.Validation("query is required")
	}
	collection, err := collectionFor(c, req.Collection)
	if err != nil {
		return err
	}
	resp, err := s.Retrieval.ContextPack(c.Request().Context(), collection, req.Query, retrieval.ContextPackOptions{
		Project:       projectName(c),
		IncludeMemory: req.IncludeMemory,
		IncludeTests:  req.IncludeTests,
		IncludeGraph:  req.IncludeGraph,
		TokenBudget:   req.TokenBudget,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
