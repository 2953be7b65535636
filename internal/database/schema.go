package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TableName is the only table this service touches.
const TableName = "test_data"

const createTableSQL = `CREATE TABLE IF NOT EXISTS test_data (
	id INT AUTO_INCREMENT PRIMARY KEY,
	message VARCHAR(255) NOT NULL,
	region VARCHAR(50) NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	INDEX idx_created_at (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// InitSchema creates test_data if it does not exist.  It is safe to run on
// every start, on primaries and replicas alike.
func InitSchema(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	conn, err := Acquire(ctx, db, timeout)
	if err != nil {
		return fmt.Errorf("init schema: connect: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("init schema: create %s: %w", TableName, err)
	}
	return nil
}
