package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/config"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/database"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/handler"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/logger"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/metrics"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/middleware"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/repository"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/router"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/service"
)

func main() {
	envErr := godotenv.Load() // optional .env for local runs

	cfg := config.Load()
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Printf("logger setup failed, falling back to stdout: %v", err)
		zl = zap.NewExample()
	}
	defer func() { _ = zl.Sync() }()
	if envErr != nil {
		zl.Debug("no .env file found, using environment variables")
	}

	zl.Info("initializing database",
		zap.String("region", cfg.Region),
		zap.Bool("is_replica", cfg.IsReplica),
		zap.String("db_host", cfg.DB.Host))

	db, err := database.Open(cfg.DB)
	if err != nil {
		// Only a malformed DSN gets here; requests will report the failure.
		zl.Error("database handle setup failed", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
		if err := database.InitSchema(context.Background(), db, cfg.DB.ConnectTimeout); err != nil {
			zl.Warn("database initialization failed", zap.Error(err))
		} else {
			zl.Info("database initialized successfully")
		}
	}

	m := metrics.New()
	var store repository.Store = unavailableStore{}
	if db != nil {
		store = repository.NewMySQLStore(db, cfg.DB.ConnectTimeout)
	}

	var events handler.EventPublisher
	if ec := config.LoadEventsConfig(); ec.Enabled {
		events = service.NewPublisher(ec.URL, ec.Queue)
		zl.Info("record.created events enabled", zap.String("queue", ec.Queue))
	}

	var limiter echo.MiddlewareFunc
	if rl := config.LoadRateLimitConfig(); rl.Enabled {
		if rdb := config.NewRedisClient(config.LoadRedisConfig()); rdb != nil {
			defer rdb.Close()
			limiter = middleware.NewTokenBucket(rl, rdb, zl)
			zl.Info("rate limiting enabled", zap.Int("capacity", rl.Capacity))
		} else {
			zl.Warn("rate limiting requested but redis is unreachable; continuing without it")
		}
	}

	h := handler.New(cfg, store, zl, m, events)
	e := router.New(h, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		zl.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown error", zap.Error(err))
	}
}

// unavailableStore stands in when no database handle could be built, so
// every route still answers with its connection-failure response.
type unavailableStore struct{}

func (unavailableStore) Open(context.Context) (repository.Session, error) {
	return nil, errors.New("database handle not configured")
}
