package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"knowledgecore/internal/validation"
)

// Header names named in spec.md §6's request-context contract.
const (
	headerProjectName = "X-Project-Name"
	headerProjectPath = "X-Project-Path"
	headerAPIKey      = "X-API-Key"
	headerRequestID   = "X-Request-ID"
)

const (
	ctxKeyProjectName = "project_name"
	ctxKeyProjectPath = "project_path"
	ctxKeyAPIKey      = "api_key"
	ctxKeyRequestID   = "request_id"
)

// requestIDMiddleware assigns a request id if the caller didn't supply one,
// and echoes it on every response.
func requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Response().Header().Set(headerRequestID, id)
		return next(c)
	}
}

// projectContextMiddleware lifts the project-scoping headers into the echo
// context so handlers don't re-parse them. X-Project-Name is rejected if it
// isn't a single safe path segment, since it ends up as a collection-name
// prefix and, via the indexer, a filesystem walk root.
func projectContextMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		name, err := validation.ProjectID(c.Request().Header.Get(headerProjectName))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid X-Project-Name: "+err.Error())
		}
		c.Set(ctxKeyProjectName, name)
		c.Set(ctxKeyProjectPath, c.Request().Header.Get(headerProjectPath))
		c.Set(ctxKeyAPIKey, c.Request().Header.Get(headerAPIKey))
		return next(c)
	}
}

func requestID(c echo.Context) string {
	v, _ := c.Get(ctxKeyRequestID).(string)
	return v
}

func projectName(c echo.Context) string {
	v, _ := c.Get(ctxKeyProjectName).(string)
	return v
}

func projectPath(c echo.Context) string {
	v, _ := c.Get(ctxKeyProjectPath).(string)
	return v
}
