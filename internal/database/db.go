package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/config"
)

// MySQLConfig turns cfg into a driver config.  Credentials are set on the
// struct rather than spliced into the DSN so passwords may contain '@' or '/'.
func MySQLConfig(cfg config.DBConfig) (*mysql.Config, error) {
	// parseTime=true -> TIMESTAMP -> time.Time | loc=UTC keeps times consistent across regions
	dsn := fmt.Sprintf("tcp(%s)/%s?charset=%s&parseTime=true&loc=UTC&timeout=%s",
		net.JoinHostPort(cfg.Host, cfg.Port), cfg.Name, url.QueryEscape(cfg.Charset), cfg.ConnectTimeout)
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	// loc only tells the driver how to read the text it gets back; the server
	// renders TIMESTAMP columns in the session zone, so pin that to UTC too.
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	mc.Params["time_zone"] = "'+00:00'"
	return mc, nil
}

// Open prepares a handle for MySQL without dialing.  Idle connections are
// never kept: every Acquire dials a fresh connection and Close on it hangs
// up, so each request does its own connect and teardown.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	mc, err := MySQLConfig(cfg)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(time.Minute)
	return db, nil
}

// Acquire dials one connection, bounded by timeout.  The caller owns the
// returned *sql.Conn and must Close it on every path.
func Acquire(ctx context.Context, db *sql.DB, timeout time.Duration) (*sql.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	// db.Conn may hand back a connection without a round trip; confirm the
	// server answers before calling it usable.
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
