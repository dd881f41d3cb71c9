package http

import "github.com/labstack/echo/v4"

// Handler is an API surface the server mounts on its Echo router; the
// levels handler is the read side's implementation.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
