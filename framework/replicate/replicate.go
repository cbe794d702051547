// Package replicate keeps one authoritative object and its remote replica
// views loosely synchronized. The authoritative side pushes snapshots to
// subscribers after each committed change; replicas are read-mostly caches
// and never a source of truth.
package replicate

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/codec"
)

var (
	ErrReplicaRemoved = errors.New("replicated object removed remotely")
	ErrNotSubscribed  = errors.New("not subscribed to replicated object")
)

// Sender pushes packets toward a named peer. The controller's transport
// server satisfies it.
type Sender interface {
	SendTo(id string, p codec.Packet) error
}

// Authoritative owns the subscriber set for one replicated object. Fan-out
// is fire-and-forget: a failed push to one subscriber is logged and never
// fails the operation that triggered it.
type Authoritative[R any] struct {
	objectType    string
	replicationID int64
	sender        Sender

	mu          sync.Mutex
	subscribers map[string]struct{}
}

func NewAuthoritative[R any](objectType string, replicationID int64, sender Sender) *Authoritative[R] {
	return &Authoritative[R]{
		objectType:    objectType,
		replicationID: replicationID,
		sender:        sender,
		subscribers:   make(map[string]struct{}),
	}
}

func (a *Authoritative[R]) ReplicationID() int64 { return a.replicationID }

func (a *Authoritative[R]) Subscribe(subscriberID string) {
	a.mu.Lock()
	a.subscribers[subscriberID] = struct{}{}
	a.mu.Unlock()
}

func (a *Authoritative[R]) Unsubscribe(subscriberID string) {
	a.mu.Lock()
	delete(a.subscribers, subscriberID)
	a.mu.Unlock()
}

func (a *Authoritative[R]) Subscribers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.subscribers))
	for id := range a.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// PushUpdate fans the snapshot out to every current subscriber.
func (a *Authoritative[R]) PushUpdate(snapshot R) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error("marshal %s/%d snapshot: %v", a.objectType, a.replicationID, err)
		return
	}
	p := &codec.ReplicatedUpdatePacket{
		ObjectType:    a.objectType,
		ReplicationID: a.replicationID,
		Snapshot:      data,
	}
	for _, id := range a.Subscribers() {
		if err := a.sender.SendTo(id, p); err != nil {
			log.Debug("replicate update %s/%d to %s: %v", a.objectType, a.replicationID, id, err)
		}
	}
}

// PushRemove tells every replica the object is gone and clears the
// subscriber set. Called when the owning entity is destroyed.
func (a *Authoritative[R]) PushRemove() {
	p := &codec.ReplicatedRemovePacket{
		ObjectType:    a.objectType,
		ReplicationID: a.replicationID,
	}
	for _, id := range a.Subscribers() {
		if err := a.sender.SendTo(id, p); err != nil {
			log.Debug("replicate remove %s/%d to %s: %v", a.objectType, a.replicationID, id, err)
		}
	}
	a.mu.Lock()
	a.subscribers = make(map[string]struct{})
	a.mu.Unlock()
}

// Replica is the remote view. Reads of the cached value may be briefly
// stale; anything correctness-sensitive must round-trip to the
// authoritative side, and Guard blocks that path once the object was
// removed remotely.
type Replica[R any] struct {
	objectType    string
	replicationID int64

	mu              sync.RWMutex
	value           *R
	lastSyncTime    int64
	subscribed      bool
	removedRemotely bool
}

func NewReplica[R any](objectType string, replicationID int64) *Replica[R] {
	return &Replica[R]{objectType: objectType, replicationID: replicationID}
}

func (r *Replica[R]) ReplicationID() int64 { return r.replicationID }

func (r *Replica[R]) SetSubscribed(subscribed bool) {
	r.mu.Lock()
	r.subscribed = subscribed
	r.mu.Unlock()
}

func (r *Replica[R]) Subscribed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subscribed
}

// ApplyUpdate merges an inbound snapshot. Updates for objects this replica
// never subscribed to are ignored and do not touch lastSyncTime.
func (r *Replica[R]) ApplyUpdate(snapshot json.RawMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.subscribed || r.removedRemotely {
		return false
	}
	var v R
	if err := json.Unmarshal(snapshot, &v); err != nil {
		log.Warn("bad %s/%d snapshot: %v", r.objectType, r.replicationID, err)
		return false
	}
	r.value = &v
	r.lastSyncTime = time.Now().UnixMilli()
	return true
}

// ApplyRemove marks the object gone; later authoritative operations through
// this replica fail with ErrReplicaRemoved instead of silently no-opping.
func (r *Replica[R]) ApplyRemove() {
	r.mu.Lock()
	r.removedRemotely = true
	r.subscribed = false
	r.mu.Unlock()
}

func (r *Replica[R]) Removed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.removedRemotely
}

func (r *Replica[R]) LastSyncTime() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSyncTime
}

// Value returns the cached snapshot, ok=false when none arrived yet.
func (r *Replica[R]) Value() (R, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.value == nil {
		var zero R
		return zero, false
	}
	return *r.value, true
}

// Guard is called before any operation that round-trips to the
// authoritative side.
func (r *Replica[R]) Guard() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.removedRemotely {
		return fmt.Errorf("%s/%d: %w", r.objectType, r.replicationID, ErrReplicaRemoved)
	}
	if !r.subscribed {
		return fmt.Errorf("%s/%d: %w", r.objectType, r.replicationID, ErrNotSubscribed)
	}
	return nil
}

type tableKey struct {
	objectType    string
	replicationID int64
}

// Handle is the type-erased replica view a Table dispatches into.
type Handle interface {
	ApplyUpdate(snapshot json.RawMessage) bool
	ApplyRemove()
}

// Table routes inbound replication packets to the owning replica.
type Table struct {
	mu      sync.RWMutex
	entries map[tableKey]Handle
}

func NewTable() *Table {
	return &Table{entries: make(map[tableKey]Handle)}
}

func (t *Table) Put(objectType string, replicationID int64, h Handle) {
	t.mu.Lock()
	t.entries[tableKey{objectType, replicationID}] = h
	t.mu.Unlock()
}

func (t *Table) Delete(objectType string, replicationID int64) {
	t.mu.Lock()
	delete(t.entries, tableKey{objectType, replicationID})
	t.mu.Unlock()
}

func (t *Table) Get(objectType string, replicationID int64) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.entries[tableKey{objectType, replicationID}]
	return h, ok
}

// Update applies an inbound update packet; unknown objects are ignored.
func (t *Table) Update(p *codec.ReplicatedUpdatePacket) bool {
	h, ok := t.Get(p.ObjectType, p.ReplicationID)
	if !ok {
		return false
	}
	return h.ApplyUpdate(p.Snapshot)
}

// Remove applies an inbound remove packet and drops the table entry.
func (t *Table) Remove(p *codec.ReplicatedRemovePacket) bool {
	h, ok := t.Get(p.ObjectType, p.ReplicationID)
	if !ok {
		return false
	}
	h.ApplyRemove()
	t.Delete(p.ObjectType, p.ReplicationID)
	return true
}
