package handler // declare the package name; contains HTTP handlers

import (
	"net/http" // net/http provides status codes and response helpers

	"github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health is the check load balancers and the failover tooling poll.  It
// opens a connection and runs SELECT 1; anything short of that succeeding
// is reported as 503 so traffic moves to the other region.
func (h *Handler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	sess, ok := h.open(ctx)
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":    "unhealthy",
			"region":    h.Cfg.Region,
			"timestamp": h.timestamp(),
			"error":     connFailed,
		})
	}
	defer h.release(sess)

	if err := sess.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":    "unhealthy",
			"region":    h.Cfg.Region,
			"timestamp": h.timestamp(),
			"error":     err.Error(),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":     "healthy",
		"region":     h.Cfg.Region,
		"is_replica": h.Cfg.IsReplica,
		"timestamp":  h.timestamp(),
	})
}
