package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// ErrReadReplica is the body returned when a write reaches a replica.
const ErrReadReplica = "Read replica - write operations not allowed"

// ReadOnlyReplica returns a middleware that rejects the wrapped routes with
// 403 when the instance is a read replica.  The check runs before the
// handler, so nothing is parsed and no connection is opened.  On a primary
// it is a pass-through.
func ReadOnlyReplica(isReplica bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !isReplica {
			return next
		}
		return func(c echo.Context) error {
			return c.JSON(http.StatusForbidden, echo.Map{"error": ErrReadReplica})
		}
	}
}
