// Package control is the controller-side runtime: the network-wide player,
// instance, game and party registries and the logic that routes packets and
// players between them.
package control

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/records"
)

// PlayerManager is the network-wide player registry. It is mutated from
// many connection read loops concurrently.
type PlayerManager struct {
	mu      sync.RWMutex
	players map[uuid.UUID]records.PlayerRecord
}

func NewPlayerManager() *PlayerManager {
	return &PlayerManager{players: make(map[uuid.UUID]records.PlayerRecord)}
}

func (m *PlayerManager) Get(id uuid.UUID) (records.PlayerRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	return p, ok
}

func (m *PlayerManager) Upsert(p records.PlayerRecord) {
	m.mu.Lock()
	m.players[p.UUID] = p
	m.mu.Unlock()
}

// Update applies fn to the stored record, creating it when absent.
func (m *PlayerManager) Update(id uuid.UUID, fn func(*records.PlayerRecord)) records.PlayerRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.players[id]
	p.UUID = id
	fn(&p)
	m.players[id] = p
	return p
}

func (m *PlayerManager) Remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.players, id)
	m.mu.Unlock()
}

func (m *PlayerManager) List() []records.PlayerRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]records.PlayerRecord, 0, len(m.players))
	for _, p := range m.players {
		out = append(out, p)
	}
	return out
}

// OnInstance returns the players currently located on the instance.
func (m *PlayerManager) OnInstance(instanceID string) []records.PlayerRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []records.PlayerRecord
	for _, p := range m.players {
		if p.InstanceID == instanceID {
			out = append(out, p)
		}
	}
	return out
}

func (m *PlayerManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
