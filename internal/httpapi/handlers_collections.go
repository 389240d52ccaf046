package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"knowledgecore/internal/reliability"
)

func (s *Server) handleListCollections(c echo.Context) error {
	names, err := s.Vector.ListCollections(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"collections": names})
}

func (s *Server) handleCollectionInfo(c echo.Context) error {
	name := c.Param("name")
	info, err := s.Vector.CollectionInfo(c.Request().Context(), name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleClearCollection(c echo.Context) error {
	name := c.Param("name")
	if err := s.Vector.ClearCollection(c.Request().Context(), name); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteCollection(c echo.Context) error {
	name := c.Param("name")
	if err := s.Vector.DeleteCollection(c.Request().Context(), name); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListAliases(c echo.Context) error {
	aliases, err := s.Vector.ListAliases(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"aliases": aliases})
}

func (s *Server) handleGetAlias(c echo.Context) error {
	project := c.Param("project")
	info, ok, err := s.Vector.GetAliasInfo(c.Request().Context(), project)
	if err != nil {
		return err
	}
	if !ok {
		return reliability.NotFound("no alias registered for project " + project)
	}
	return c.JSON(http.StatusOK, info)
}
