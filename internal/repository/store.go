package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/database"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/model"
)

// Store hands out one Session per request.
type Store interface {
	Open(ctx context.Context) (Session, error)
}

// Session is a single live connection.  Close must be called on every path
// once Open succeeded.
type Session interface {
	Ping(ctx context.Context) error
	ListRecent(ctx context.Context, limit int) ([]model.Record, error)
	Insert(ctx context.Context, message, region string) (uint64, error)
	ReplicationStatus(ctx context.Context) (model.ReplicationStatus, error)
	Close() error
}

// conn is the part of *sql.Conn a session needs.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
	Close() error
}

// MySQLStore dials a new connection for every Open.
type MySQLStore struct {
	db      *sql.DB
	timeout time.Duration
}

func NewMySQLStore(db *sql.DB, connectTimeout time.Duration) *MySQLStore {
	return &MySQLStore{db: db, timeout: connectTimeout}
}

// Open connects within the configured connect timeout.
func (s *MySQLStore) Open(ctx context.Context) (Session, error) {
	c, err := database.Acquire(ctx, s.db, s.timeout)
	if err != nil {
		return nil, err
	}
	return NewSession(c), nil
}

// MySQLSession runs the service's queries over one connection.
type MySQLSession struct{ c conn }

func NewSession(c conn) *MySQLSession { return &MySQLSession{c: c} }

// Ping runs the liveness query.
func (s *MySQLSession) Ping(ctx context.Context) error {
	var one int
	return s.c.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

func (s *MySQLSession) Close() error { return s.c.Close() }
