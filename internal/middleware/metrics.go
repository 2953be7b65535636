package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/metrics"
)

// Instrument records request count and latency per route template, so
// /api/data and /health each get one series regardless of query strings.
func Instrument(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// write the error response now so the recorded status is final;
				// the committed response makes later error handlers no-ops
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequests.WithLabelValues(method, route, status).Inc()
			m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
