package model

// ReplicationStatus is the subset of the replica status row the service
// reports.  JSON names follow the classic SHOW SLAVE STATUS columns so
// dashboards keep working against both old and new MySQL versions.
type ReplicationStatus struct {
	IORunning           *string `json:"slave_io_running"`      // Replica_IO_Running / Slave_IO_Running
	SQLRunning          *string `json:"slave_sql_running"`     // Replica_SQL_Running / Slave_SQL_Running
	SecondsBehindMaster *int64  `json:"seconds_behind_master"` // null while the SQL thread is stopped
	MasterHost          *string `json:"master_host"`           // Source_Host / Master_Host
}
