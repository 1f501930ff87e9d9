package mock

import (
	"context"
	"sync"
	"time"

	"github.com/jon4hz/botconsole/internal/database"
)

// MockDB is an in-memory stand-in for the session database used in tests.
type MockDB struct {
	mu      sync.RWMutex
	records map[string]record

	// Error simulation
	GetError    error
	SetError    error
	DeleteError error
	ClearError  error
}

type record struct {
	payload   []byte
	updatedAt time.Time
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{records: make(map[string]record)}
}

func (m *MockDB) Get(_ context.Context, browserID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	r, ok := m.records[browserID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return append([]byte(nil), r.payload...), nil
}

func (m *MockDB) Set(_ context.Context, browserID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetError != nil {
		return m.SetError
	}
	m.records[browserID] = record{payload: append([]byte(nil), payload...), updatedAt: time.Now()}
	return nil
}

func (m *MockDB) Delete(_ context.Context, browserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.records, browserID)
	return nil
}

func (m *MockDB) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearError != nil {
		return m.ClearError
	}
	m.records = make(map[string]record)
	return nil
}

// PurgeExpired removes records written before the given time.
func (m *MockDB) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, r := range m.records {
		if r.updatedAt.Before(before) {
			delete(m.records, id)
			purged++
		}
	}
	return purged, nil
}

// Raw returns the stored payload without error simulation.
func (m *MockDB) Raw(browserID string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[browserID]
	return r.payload, ok
}

// Len returns the number of stored records.
func (m *MockDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
