package typing

import (
	"context"
	"sync"
	"time"
)

type Memory struct {
	mu      sync.RWMutex
	signals map[int64]Signal
}

func NewMemory() *Memory {
	return &Memory{signals: make(map[int64]Signal)}
}

func (m *Memory) Set(_ context.Context, userID int64, s Signal) error {
	m.mu.Lock()
	m.signals[userID] = s
	m.mu.Unlock()
	return nil
}

func (m *Memory) ClearOnSend(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signals[userID]
	if !ok {
		return nil
	}
	s.IsTyping = false
	s.UpdatedAt = at
	m.signals[userID] = s
	return nil
}

func (m *Memory) All(_ context.Context, tenantID string) (map[int64]Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]Signal)
	for id, s := range m.signals {
		if tenantID == "" || s.TenantID == tenantID {
			out[id] = s
		}
	}
	return out, nil
}
