package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// healthHandler handles GET /health. Read-only: repeated calls never mutate
// gateway state.
func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:      "ok",
		Connections: s.manager.Count(),
		Uptime:      int(time.Since(s.startedAt).Seconds()),
	})
}
