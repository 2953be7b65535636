package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/google/uuid"                        // request id generator
	"github.com/labstack/echo/v4"                   // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware" // echo's bundled middleware (recover, request id, logger)
	"go.uber.org/zap"                               // structured request logging

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/handler"    // route handlers
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/middleware" // replica gate, rate limit, metrics
)

// New builds the echo instance with the shared middleware chain and all
// routes registered.  limiter may be nil when rate limiting is off.
func New(h *handler.Handler, limiter echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = handler.NewRenderer()

	// Outermost first: the request id must exist before the logger reads it,
	// and Recover sits innermost so a panic still gets counted and logged.
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(h.Log))
	e.Use(middleware.Instrument(h.Metrics))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		// hand the panic to Instrument as an error instead of writing a 500 here
		DisableErrorHandler: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			h.Log.Error("panic recovered", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	RegisterRoutes(e, h, limiter)
	return e
}

// RegisterRoutes maps the service's endpoints.  Everything under /api goes
// through the optional limiter; POST /api/data additionally goes through
// the replica gate so a replica rejects it before touching MySQL.
func RegisterRoutes(e *echo.Echo, h *handler.Handler, limiter echo.MiddlewareFunc) {
	e.GET("/", h.Index)
	e.GET("/health", h.Health)
	e.GET("/metrics", echo.WrapHandler(h.Metrics.Handler()))

	var api *echo.Group
	if limiter != nil {
		api = e.Group("/api", limiter)
	} else {
		api = e.Group("/api")
	}
	api.GET("/data", h.ListData)
	api.POST("/data", h.CreateData, middleware.ReadOnlyReplica(h.Cfg.IsReplica))
	api.GET("/replication-status", h.ReplicationStatus)
}

// requestLogger writes one zap line per request.
func requestLogger(log *zap.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				log.Error("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	})
}
