package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory, in insertion order.
type MemoryStore struct {
	mu        sync.RWMutex
	contracts []*Record
	byID      map[string]*Record
	audit     []*AuditEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Record)}
}

func (m *MemoryStore) AddContract(_ context.Context, rec *Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	stored := rec.Clone()
	m.contracts = append(m.contracts, stored)
	m.byID[stored.ID] = stored
	return stored.ID, nil
}

func (m *MemoryStore) FindByHash(_ context.Context, hash string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.contracts {
		if rec.Hash == hash {
			return rec.Clone(), nil
		}
	}
	return nil, notFound("contract with hash", hash)
}

func (m *MemoryStore) GetContract(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, notFound("contract", id)
	}
	return rec.Clone(), nil
}

func (m *MemoryStore) ListContracts(_ context.Context) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Record, 0, len(m.contracts))
	for i := len(m.contracts) - 1; i >= 0; i-- {
		out = append(out, m.contracts[i].Clone())
	}
	return out, nil
}

func (m *MemoryStore) AddAudit(_ context.Context, ev *AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	cp := *ev
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *MemoryStore) ListAudit(_ context.Context, limit int) ([]*AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.audit)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*AuditEvent, 0, n)
	for i := len(m.audit) - 1; i >= 0 && len(out) < n; i-- {
		cp := *m.audit[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
