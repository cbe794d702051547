package datastore

import (
	"context"
	"strings"
	"sync"
)

// MemoryBackend keeps objects in a process map. Used by tests and by
// embedded single-node setups that do not need persistence.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string]DataObject
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]DataObject)}
}

func (m *MemoryBackend) Load(_ context.Context, id ObjectID) (*DataObject, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id.String()]
	if !ok {
		return nil, false, nil
	}
	cp := obj
	return &cp, true, nil
}

func (m *MemoryBackend) Save(_ context.Context, obj *DataObject) error {
	m.mu.Lock()
	m.objects[obj.ID.String()] = *obj
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id ObjectID) error {
	m.mu.Lock()
	delete(m.objects, id.String())
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) ListIDs(_ context.Context, relational *RelationalID, prefix string) ([]ObjectID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []ObjectID
	for _, obj := range m.objects {
		id := obj.ID
		if relational == nil {
			if id.Relational != nil {
				continue
			}
		} else {
			if id.Relational == nil || *id.Relational != *relational {
				continue
			}
		}
		if prefix != "" && !strings.HasPrefix(id.Key, prefix) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
