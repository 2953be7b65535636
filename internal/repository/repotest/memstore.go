// Package repotest provides an in-memory repository.Store for tests.
package repotest

import (
	"context"
	"sync"
	"time"

	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/model"
	"github.com/moonhyeonmin/aws-multi-region-dr-architecture/internal/repository"
)

// MemStore keeps records in insertion order.  The *Err fields inject
// failures into the matching operation.
type MemStore struct {
	mu      sync.Mutex
	records []model.Record
	nextID  uint64

	Now       func() time.Time
	OpenErr   error
	PingErr   error
	ListErr   error
	InsertErr error
	StatusErr error
	Status    *model.ReplicationStatus // nil means no status row

	Opened int
	Closed int
}

// NewMemStore returns an empty store whose clock advances one second per insert.
func NewMemStore() *MemStore {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	return &MemStore{Now: func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}}
}

func (s *MemStore) Open(context.Context) (repository.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.Opened++
	return &memSession{s: s}, nil
}

// Records returns a copy of everything stored, oldest first.
func (s *MemStore) Records() []model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Record(nil), s.records...)
}

type memSession struct {
	s      *MemStore
	closed bool
}

func (m *memSession) Ping(context.Context) error { return m.s.PingErr }

func (m *memSession) ListRecent(_ context.Context, limit int) ([]model.Record, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.ListErr != nil {
		return nil, m.s.ListErr
	}
	out := make([]model.Record, 0, limit)
	for i := len(m.s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.s.records[i])
	}
	return out, nil
}

func (m *memSession) Insert(_ context.Context, message, region string) (uint64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.InsertErr != nil {
		return 0, m.s.InsertErr
	}
	m.s.nextID++
	ts := model.FormatTimestamp(m.s.Now())
	m.s.records = append(m.s.records, model.Record{ID: m.s.nextID, Message: message, Region: region, CreatedAt: &ts})
	return m.s.nextID, nil
}

func (m *memSession) ReplicationStatus(context.Context) (model.ReplicationStatus, error) {
	if m.s.StatusErr != nil {
		return model.ReplicationStatus{}, m.s.StatusErr
	}
	if m.s.Status == nil {
		return model.ReplicationStatus{}, repository.ErrNoReplicationStatus
	}
	return *m.s.Status, nil
}

func (m *memSession) Close() error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.s.Closed++
	}
	return nil
}
