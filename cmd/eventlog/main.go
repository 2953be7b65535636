// Command eventlog consumes record.created events and appends them to
// logs/records.log, giving a DR drill a per-region trail of accepted writes.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/config"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/logger"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/queue"
)

func main() {
	_ = godotenv.Load()

	zl, err := logger.New(config.Load().LogLevel)
	if err != nil {
		log.Printf("logger setup failed, falling back to stdout: %v", err)
		zl = zap.NewExample()
	}
	defer func() { _ = zl.Sync() }()

	ec := config.LoadEventsConfig()
	c := &queue.Consumer{URL: ec.URL, Queue: ec.Queue, Dir: "logs", Log: zl}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zl.Info("consuming", zap.String("queue", ec.Queue))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("consumer stopped", zap.Error(err))
	}
}
