package handler // handler package contains the HTTP handlers for the DR test service

import (
	"context" // context bounds event publishing
	"time"    // time stamps health responses

	"go.uber.org/zap" // structured logging

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/config"     // immutable runtime config
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/metrics"    // prometheus collectors
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/queue"      // event payloads
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/repository" // storage adapter
)

// connFailed is the error text for every route that cannot reach MySQL.
const connFailed = "Database connection failed"

// EventPublisher announces committed writes.  A nil publisher disables events.
type EventPublisher interface {
	PublishRecordCreated(ctx context.Context, ev queue.RecordCreatedEvent) error
}

// Handler bundles the dependencies shared by every route.  Nothing in it is
// mutated after construction, so one Handler serves all requests.
type Handler struct {
	Cfg     config.Config
	Store   repository.Store
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Events  EventPublisher
	Now     func() time.Time
}

// New constructs a Handler and panics if a required dependency is nil.
func New(cfg config.Config, store repository.Store, log *zap.Logger, m *metrics.Metrics, events EventPublisher) *Handler {
	if store == nil || log == nil || m == nil {
		panic("nil dependency passed to handler.New")
	}
	return &Handler{Cfg: cfg, Store: store, Log: log, Metrics: m, Events: events, Now: time.Now}
}

// open acquires a session.  Failures are logged and counted here so every
// route reports them the same way.
func (h *Handler) open(ctx context.Context) (repository.Session, bool) {
	sess, err := h.Store.Open(ctx)
	if err != nil {
		h.Log.Error("database connection error", zap.Error(err))
		h.Metrics.DBConnectFailures.Inc()
		return nil, false
	}
	return sess, true
}

// release closes a session; a failed close only gets logged.
func (h *Handler) release(sess repository.Session) {
	if err := sess.Close(); err != nil {
		h.Log.Warn("database close error", zap.Error(err))
	}
}

func (h *Handler) timestamp() string {
	return h.Now().UTC().Format(time.RFC3339Nano)
}
