// Package datastore implements the key-addressed, permission-checked data
// model shared across the network, with swappable storage backends.
package datastore

import (
	"fmt"
	"strings"
	"time"
)

// RelationalID scopes an object to one entity row of a table, e.g.
// players/<uuid>. A nil RelationalID on an ObjectID means the object lives
// in the flat singular namespace.
type RelationalID struct {
	Table    string `json:"table"`
	EntityID string `json:"entityId"`
}

// ObjectID addresses one data object. Keys are dot-separated hierarchical
// strings, which makes prefix listing possible.
type ObjectID struct {
	Relational *RelationalID `json:"relational,omitempty"`
	Key        string        `json:"key"`
}

func SingularID(key string) ObjectID {
	return ObjectID{Key: key}
}

func RelationalObjectID(table, entityID, key string) ObjectID {
	return ObjectID{Relational: &RelationalID{Table: table, EntityID: entityID}, Key: key}
}

func (id ObjectID) IsRelational() bool {
	return id.Relational != nil
}

// String renders a stable unique form used for map keys and lock striping.
func (id ObjectID) String() string {
	if id.Relational != nil {
		return fmt.Sprintf("%s/%s/%s", id.Relational.Table, id.Relational.EntityID, id.Key)
	}
	return id.Key
}

func (id ObjectID) validate() error {
	if id.Key == "" {
		return ErrInvalidID
	}
	if strings.ContainsAny(id.Key, "/\\") {
		return ErrInvalidID
	}
	if id.Relational != nil && (id.Relational.Table == "" || id.Relational.EntityID == "") {
		return ErrInvalidID
	}
	return nil
}

// DataObject is the stored unit. RemovalTime semantics: 0 with the ephemeral
// marker set means delete when the owning process shuts down; a positive
// value is an absolute expiry timestamp checked on every read.
type DataObject struct {
	ID              ObjectID      `json:"id"`
	OwnerPermission PermissionKey `json:"ownerPermission"`
	Value           string        `json:"value"`
	LastUpdated     int64         `json:"lastUpdated"`
	RemovalTime     *int64        `json:"removalTime,omitempty"`
}

func NewDataObject(id ObjectID, owner PermissionKey, value string) *DataObject {
	return &DataObject{ID: id, OwnerPermission: owner, Value: value}
}

// WithRemovalTime marks the object ephemeral (t == 0) or expiring at t.
func (o *DataObject) WithRemovalTime(t int64) *DataObject {
	o.RemovalTime = &t
	return o
}

func (o *DataObject) IsEphemeral() bool {
	return o.RemovalTime != nil && *o.RemovalTime == 0
}

// ShouldRemove reports whether the object is logically expired at now.
func (o *DataObject) ShouldRemove(now time.Time) bool {
	if o.RemovalTime == nil || *o.RemovalTime == 0 {
		return false
	}
	return *o.RemovalTime <= now.UnixMilli()
}

// ObjectView is what a reader receives: the object plus the access the
// reader's permission grants. The view is the enforcement boundary; callers
// never get a raw write capability they are not entitled to.
type ObjectView struct {
	DataObject
	ReadAccess  bool `json:"readAccess"`
	WriteAccess bool `json:"writeAccess"`
}
