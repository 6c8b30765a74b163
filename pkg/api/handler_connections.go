package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	echo "github.com/labstack/echo/v5"

	"github.com/gatemock/gatemock/pkg/gateway"
)

// connectionID extracts and URL-decodes the {id} path parameter. Connection
// ids end in '=' which clients routinely percent-encode as %3D.
func connectionID(c *echo.Context) string {
	raw := c.Param("id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

// postToConnectionHandler handles POST /@connections/{id}: the request body
// is written verbatim to the session's socket as one text frame.
func (s *Server) postToConnectionHandler(c *echo.Context) error {
	id := connectionID(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}

	if err := s.manager.Post(c.Request().Context(), id, body); err != nil {
		return s.mapManagerError(c, id, err)
	}
	return c.NoContent(http.StatusOK)
}

// getConnectionHandler handles GET /@connections/{id}.
func (s *Server) getConnectionHandler(c *echo.Context) error {
	id := connectionID(c)

	info, err := s.manager.Get(id)
	if err != nil {
		return s.mapManagerError(c, id, err)
	}
	return c.JSON(http.StatusOK, &ConnectionResponse{
		ConnectionID: info.ID,
		ConnectedAt:  isoMillis(info.ConnectedAt),
		LastActiveAt: isoMillis(info.LastActiveAt),
	})
}

// deleteConnectionHandler handles DELETE /@connections/{id}: closes the
// socket with 1000 on behalf of the backend.
func (s *Server) deleteConnectionHandler(c *echo.Context) error {
	id := connectionID(c)

	if err := s.manager.Delete(id); err != nil {
		return s.mapManagerError(c, id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// mapManagerError maps manager errors to management API responses. A session
// that is absent or already closing is Gone; nothing else escapes the manager.
func (s *Server) mapManagerError(c *echo.Context, id string, err error) error {
	if errors.Is(err, gateway.ErrGone) {
		return c.JSON(http.StatusGone, &GoneResponse{Message: "Gone", ConnectionID: id})
	}
	s.logger.Error("Unexpected management error", "connection_id", id, "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
