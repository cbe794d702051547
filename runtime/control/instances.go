package control

import (
	"sync"
	"time"

	"github.com/lahuca/lane/framework/records"
)

// InstanceManager tracks every connected instance and the last status it
// reported. Entries appear on connectionConnect and disappear on
// disconnect; the slot state between those points is whatever the instance
// last claimed.
type InstanceManager struct {
	mu        sync.RWMutex
	instances map[string]*instanceEntry
}

type instanceEntry struct {
	record   records.InstanceRecord
	lastSeen int64
}

func NewInstanceManager() *InstanceManager {
	return &InstanceManager{instances: make(map[string]*instanceEntry)}
}

func (m *InstanceManager) Connected(id, instanceType string) {
	m.mu.Lock()
	m.instances[id] = &instanceEntry{
		record:   records.InstanceRecord{ID: id, Type: instanceType},
		lastSeen: time.Now().UnixMilli(),
	}
	m.mu.Unlock()
}

func (m *InstanceManager) Disconnected(id string) {
	m.mu.Lock()
	delete(m.instances, id)
	m.mu.Unlock()
}

func (m *InstanceManager) UpdateStatus(rec records.InstanceRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.instances[rec.ID]
	if !ok {
		return false
	}
	entry.record = rec
	entry.lastSeen = time.Now().UnixMilli()
	return true
}

func (m *InstanceManager) Touch(id string) {
	m.mu.Lock()
	if entry, ok := m.instances[id]; ok {
		entry.lastSeen = time.Now().UnixMilli()
	}
	m.mu.Unlock()
}

func (m *InstanceManager) Get(id string) (records.InstanceRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.instances[id]
	if !ok {
		return records.InstanceRecord{}, false
	}
	return entry.record, true
}

func (m *InstanceManager) List() []records.InstanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]records.InstanceRecord, 0, len(m.instances))
	for _, entry := range m.instances {
		out = append(out, entry.record)
	}
	return out
}

func (m *InstanceManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}
