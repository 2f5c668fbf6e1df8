package state

import (
	"context"
	"sync"
	"sync/atomic"

	"sensoralarm/internal/models"
)

// MemoryStore is an in-process Store for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[models.StateKey]models.AlarmState

	gets atomic.Uint64
	puts atomic.Uint64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{states: make(map[models.StateKey]models.AlarmState)}
}

// Get returns a copy of the stored state.
func (m *MemoryStore) Get(_ context.Context, key models.StateKey) (*models.AlarmState, error) {
	m.gets.Add(1)

	m.mu.RLock()
	st, ok := m.states[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return copyState(st), nil
}

// Put overwrites the state of a key.
func (m *MemoryStore) Put(_ context.Context, key models.StateKey, st models.AlarmState) error {
	m.puts.Add(1)

	m.mu.Lock()
	m.states[key] = *copyState(st)
	m.mu.Unlock()
	return nil
}

// Stats returns the number of reads and writes served.
func (m *MemoryStore) Stats() (gets, puts uint64) {
	return m.gets.Load(), m.puts.Load()
}

func copyState(st models.AlarmState) *models.AlarmState {
	out := models.AlarmState{LastState: st.LastState}
	if st.LastNotifiedAt != nil {
		t := *st.LastNotifiedAt
		out.LastNotifiedAt = &t
	}
	return &out
}
