package control

import (
	"sync"
	"sync/atomic"

	"github.com/lahuca/lane/framework/records"
)

// GameManager registers the games running on instances. Game ids are
// controller-assigned and unique for the controller's lifetime.
type GameManager struct {
	nextID atomic.Int64
	mu     sync.RWMutex
	games  map[int64]records.GameRecord
}

func NewGameManager() *GameManager {
	return &GameManager{games: make(map[int64]records.GameRecord)}
}

// Upsert stores the record, assigning an id when the instance reports a new
// game (GameID 0). Returns the effective id.
func (m *GameManager) Upsert(rec records.GameRecord) int64 {
	if rec.GameID == 0 {
		rec.GameID = m.nextID.Add(1)
	}
	m.mu.Lock()
	m.games[rec.GameID] = rec
	m.mu.Unlock()
	return rec.GameID
}

func (m *GameManager) Get(id int64) (records.GameRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	return g, ok
}

func (m *GameManager) Remove(id int64) {
	m.mu.Lock()
	delete(m.games, id)
	m.mu.Unlock()
}

// RemoveOnInstance drops every game hosted by the instance, returning the
// removed ids. Called when an instance disconnects.
func (m *GameManager) RemoveOnInstance(instanceID string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []int64
	for id, g := range m.games {
		if g.InstanceID == instanceID {
			delete(m.games, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (m *GameManager) List() []records.GameRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]records.GameRecord, 0, len(m.games))
	for _, g := range m.games {
		out = append(out, g)
	}
	return out
}

func (m *GameManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}
