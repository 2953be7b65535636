package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/model"
)

// errParse is MySQL's ER_PARSE_ERROR, returned by servers older than 8.0.22
// for SHOW REPLICA STATUS.
const errParse = 1064

var (
	ioRunningCols  = []string{"Replica_IO_Running", "Slave_IO_Running"}
	sqlRunningCols = []string{"Replica_SQL_Running", "Slave_SQL_Running"}
	behindCols     = []string{"Seconds_Behind_Source", "Seconds_Behind_Master"}
	hostCols       = []string{"Source_Host", "Master_Host"}
)

// ReplicationStatus reads the replica status row.  It tries the 8.0.22+
// statement first and falls back to SHOW SLAVE STATUS on a syntax error.
// ErrNoReplicationStatus means the server returned no row.
func (s *MySQLSession) ReplicationStatus(ctx context.Context) (model.ReplicationStatus, error) {
	row, err := s.showStatus(ctx, "SHOW REPLICA STATUS")
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errParse {
		row, err = s.showStatus(ctx, "SHOW SLAVE STATUS")
	}
	if err != nil {
		return model.ReplicationStatus{}, fmt.Errorf("replication status: %w", err)
	}
	if row == nil {
		return model.ReplicationStatus{}, ErrNoReplicationStatus
	}
	return mapStatus(row)
}

// showStatus returns the first row keyed by column name, or nil when the
// result is empty.  The column set differs across versions, so columns are
// scanned generically.
func (s *MySQLSession) showStatus(ctx context.Context, q string) (map[string]sql.NullString, error) {
	rows, err := s.c.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	row := make(map[string]sql.NullString, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	return row, rows.Err()
}

func mapStatus(row map[string]sql.NullString) (model.ReplicationStatus, error) {
	st := model.ReplicationStatus{
		IORunning:  pick(row, ioRunningCols),
		SQLRunning: pick(row, sqlRunningCols),
		MasterHost: pick(row, hostCols),
	}
	if v := pick(row, behindCols); v != nil {
		n, err := strconv.ParseInt(*v, 10, 64)
		if err != nil {
			return model.ReplicationStatus{}, fmt.Errorf("replication status: seconds behind %q: %w", *v, err)
		}
		st.SecondsBehindMaster = &n
	}
	return st, nil
}

// pick returns the first non-NULL value among names.
func pick(row map[string]sql.NullString, names []string) *string {
	for _, n := range names {
		if v, ok := row[n]; ok && v.Valid {
			s := v.String
			return &s
		}
	}
	return nil
}
