package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/model"
)

// ListRecent returns up to limit rows, newest first.
func (s *MySQLSession) ListRecent(ctx context.Context, limit int) ([]model.Record, error) {
	const q = `SELECT id, message, region, created_at
	           FROM test_data ORDER BY created_at DESC LIMIT ?`
	rows, err := s.c.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]model.Record, 0, limit)
	for rows.Next() {
		var (
			r       model.Record
			created sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Message, &r.Region, &created); err != nil {
			return nil, fmt.Errorf("list records: scan: %w", err)
		}
		if created.Valid {
			ts := model.FormatTimestamp(created.Time)
			r.CreatedAt = &ts
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// Insert stores one row and returns its generated id.  The statement runs
// in autocommit mode, so it is committed once ExecContext returns.
func (s *MySQLSession) Insert(ctx context.Context, message, region string) (uint64, error) {
	res, err := s.c.ExecContext(ctx,
		"INSERT INTO test_data (message, region) VALUES (?, ?)", message, region)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert record: last insert id: %w", err)
	}
	return uint64(id), nil
}
