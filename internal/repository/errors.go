// Package repository is the storage adapter between the HTTP handlers and
// MySQL.  Handlers depend only on the Store and Session interfaces, which
// lets tests swap MySQL for an in-memory double.
package repository

import "errors"

// ErrNoReplicationStatus is returned when the server has no replica status
// row, i.e. replication was never configured on it.  Handlers report this
// as a normal 200 response rather than a failure.
var ErrNoReplicationStatus = errors.New("no replication status found")
