package datastore

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/lahuca/lane/common/log"
)

var (
	ErrInvalidID     = errors.New("invalid data object id")
	ErrInvalidObject = errors.New("invalid data object")
	ErrClosed        = errors.New("data store closed")
)

// Backend is the raw storage contract. Implementations do no permission or
// expiry logic; the Store front enforces both so every backend behaves the
// same.
type Backend interface {
	Load(ctx context.Context, id ObjectID) (*DataObject, bool, error)
	Save(ctx context.Context, obj *DataObject) error
	Delete(ctx context.Context, id ObjectID) error
	ListIDs(ctx context.Context, relational *RelationalID, prefix string) ([]ObjectID, error)
	Close() error
}

const lockStripes = 32

// Store front-ends a Backend with access checks, expiry-on-read, the
// ephemeral cleanup set and per-id striped locking. The striping closes the
// read-check-overwrite race between concurrent writers to the same id.
type Store struct {
	backend Backend

	locks [lockStripes]sync.Mutex

	ephemeralMu sync.Mutex
	ephemeral   map[string]ObjectID

	closed sync.Once
}

func NewStore(backend Backend) *Store {
	return &Store{
		backend:   backend,
		ephemeral: make(map[string]ObjectID),
	}
}

func (s *Store) stripe(id ObjectID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id.String()))
	return &s.locks[h.Sum32()%lockStripes]
}

// Read returns the object view for the caller's permission, or ok=false when
// the object is absent. An object past its removal time is deleted under
// controller authority and reported absent.
func (s *Store) Read(ctx context.Context, permission PermissionKey, id ObjectID) (*ObjectView, bool, error) {
	if err := id.validate(); err != nil {
		return nil, false, err
	}
	mu := s.stripe(id)
	mu.Lock()
	defer mu.Unlock()
	return s.readLocked(ctx, permission, id)
}

func (s *Store) readLocked(ctx context.Context, permission PermissionKey, id ObjectID) (*ObjectView, bool, error) {
	obj, ok, err := s.backend.Load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	if obj.ShouldRemove(time.Now()) {
		if err := s.backend.Delete(ctx, id); err != nil {
			return nil, false, err
		}
		s.unregisterEphemeral(id)
		return nil, false, nil
	}
	// Reads default to allow, so ReadAccess is informational; WriteAccess
	// tells the caller whether an overwrite would be accepted.
	view := &ObjectView{
		DataObject:  *obj,
		ReadAccess:  HasReadAccess(permission, obj.OwnerPermission),
		WriteAccess: HasWriteAccess(permission, obj.OwnerPermission),
	}
	return view, true, nil
}

// Write stores obj, refreshing LastUpdated. When the id already exists the
// existing object is re-read and the caller's write access is re-checked
// before the overwrite; a denial returns false with no error and no change.
func (s *Store) Write(ctx context.Context, permission PermissionKey, obj *DataObject) (bool, error) {
	if obj == nil {
		return false, ErrInvalidObject
	}
	if err := obj.ID.validate(); err != nil {
		return false, err
	}
	if !obj.OwnerPermission.IsFormattedCorrectly() {
		return false, ErrInvalidObject
	}
	mu := s.stripe(obj.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, ok, err := s.backend.Load(ctx, obj.ID)
	if err != nil {
		return false, err
	}
	if ok && !existing.ShouldRemove(time.Now()) {
		if !HasWriteAccess(permission, existing.OwnerPermission) {
			return false, nil
		}
	}

	obj.LastUpdated = time.Now().UnixMilli()
	if err := s.backend.Save(ctx, obj); err != nil {
		return false, err
	}
	if obj.IsEphemeral() {
		s.registerEphemeral(obj.ID)
	} else {
		s.unregisterEphemeral(obj.ID)
	}
	return true, nil
}

// Remove deletes the object when the caller has write access. Removing an
// absent object succeeds (idempotent).
func (s *Store) Remove(ctx context.Context, permission PermissionKey, id ObjectID) (bool, error) {
	if err := id.validate(); err != nil {
		return false, err
	}
	mu := s.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	obj, ok, err := s.backend.Load(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	if !obj.ShouldRemove(time.Now()) && !HasWriteAccess(permission, obj.OwnerPermission) {
		return false, nil
	}
	if err := s.backend.Delete(ctx, id); err != nil {
		return false, err
	}
	s.unregisterEphemeral(id)
	return true, nil
}

// ListIDs lists object ids below a relational scope and key prefix.
func (s *Store) ListIDs(ctx context.Context, relational *RelationalID, prefix string) ([]ObjectID, error) {
	return s.backend.ListIDs(ctx, relational, prefix)
}

// ListObjects reads every object below the scope with the caller's
// permission, skipping expired ones.
func (s *Store) ListObjects(ctx context.Context, permission PermissionKey, relational *RelationalID, prefix string) ([]*ObjectView, error) {
	ids, err := s.backend.ListIDs(ctx, relational, prefix)
	if err != nil {
		return nil, err
	}
	views := make([]*ObjectView, 0, len(ids))
	for _, id := range ids {
		view, ok, err := s.Read(ctx, permission, id)
		if err != nil {
			return nil, err
		}
		if ok {
			views = append(views, view)
		}
	}
	return views, nil
}

func (s *Store) registerEphemeral(id ObjectID) {
	s.ephemeralMu.Lock()
	s.ephemeral[id.String()] = id
	s.ephemeralMu.Unlock()
}

func (s *Store) unregisterEphemeral(id ObjectID) {
	s.ephemeralMu.Lock()
	delete(s.ephemeral, id.String())
	s.ephemeralMu.Unlock()
}

// Shutdown removes every ephemeral object under controller authority.
// Per-id failures are logged and do not abort the sweep.
func (s *Store) Shutdown(ctx context.Context) {
	s.closed.Do(func() {
		s.ephemeralMu.Lock()
		ids := make([]ObjectID, 0, len(s.ephemeral))
		for _, id := range s.ephemeral {
			ids = append(ids, id)
		}
		s.ephemeralMu.Unlock()

		for _, id := range ids {
			if _, err := s.Remove(ctx, Controller, id); err != nil {
				log.Error("ephemeral sweep failed for %s: %v", id, err)
			}
		}
		if err := s.backend.Close(); err != nil {
			log.Error("data store backend close: %v", err)
		}
	})
}
