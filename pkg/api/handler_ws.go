package api

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// session manager. Anything that is not an upgrade attempt falls out of the
// path space and is a 404.
func (s *Server) wsHandler(c *echo.Context) error {
	if !strings.EqualFold(c.Request().Header.Get("Upgrade"), "websocket") {
		return echo.NewHTTPError(http.StatusNotFound, "Not Found")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Local emulator: clients connect from arbitrary origins (browsers,
		// CLIs, test harnesses) and the real admission gate is the backend's
		// $connect response.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	// Blocks for the session's whole lifetime.
	s.manager.HandleConnection(c.Request().Context(), conn, c.Request())
	return nil
}
