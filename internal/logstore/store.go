// Package logstore keeps recent instrument log lines behind a narrow
// insert/query interface. The default backend is an in-memory ring; a
// Postgres backend is available for local dev via USE_DATABASE.
package logstore

import (
	"sync"

	"github.com/connectedlabs/lab-instrument-gateway/internal/domain"
)

// Store is the insert/query surface both backends implement.
type Store interface {
	Insert(entries []domain.LogEntry) (int, error)
	// Recent returns entries newest first, optionally filtered by
	// instrument and level. limit <= 0 means the default of 100.
	Recent(instrumentID, level string, limit int) ([]domain.LogEntry, error)
}

const (
	memoryCapacity = 5000
	defaultLimit   = 100
)

// MemoryStore is a fixed-capacity ring of log entries, oldest evicted first.
type MemoryStore struct {
	mu  sync.RWMutex
	buf []domain.LogEntry // oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buf: make([]domain.LogEntry, 0, memoryCapacity)}
}

func (s *MemoryStore) Insert(entries []domain.LogEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		if len(s.buf) >= memoryCapacity {
			s.buf = s.buf[1:]
		}
		s.buf = append(s.buf, e)
	}
	return len(entries), nil
}

func (s *MemoryStore) Recent(instrumentID, level string, limit int) ([]domain.LogEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LogEntry, 0)
	for i := len(s.buf) - 1; i >= 0; i-- {
		e := s.buf[i]
		if instrumentID != "" && e.InstrumentID != instrumentID {
			continue
		}
		if level != "" && e.Level != level {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
