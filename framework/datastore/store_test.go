package datastore

import (
	"context"
	"sync"
	"testing"
	"time"
)

var (
	instanceKey = PermissionKey{Name: "survival", Identifier: "abc123"}
	strangerKey = PermissionKey{Name: "lobby", Identifier: "xyz789"}
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewMemoryBackend())
}

func TestStoreWriteThenRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj := NewDataObject(SingularID("motd"), instanceKey, "welcome")
	written, err := s.Write(ctx, instanceKey, obj)
	if err != nil || !written {
		t.Fatalf("write = %v, %v", written, err)
	}
	if obj.LastUpdated == 0 {
		t.Error("write must stamp LastUpdated")
	}

	view, ok, err := s.Read(ctx, instanceKey, SingularID("motd"))
	if err != nil || !ok {
		t.Fatalf("read = %v, %v", ok, err)
	}
	if view.Value != "welcome" {
		t.Errorf("value = %q", view.Value)
	}
	if !view.ReadAccess || !view.WriteAccess {
		t.Error("owner must have full access")
	}
}

func TestStoreControllerOwnedObject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	obj := NewDataObject(SingularID("secret"), Controller, "hidden")
	if written, err := s.Write(ctx, Controller, obj); err != nil || !written {
		t.Fatalf("controller write = %v, %v", written, err)
	}

	// default-allow read, value visible; default-deny write
	view, ok, err := s.Read(ctx, strangerKey, SingularID("secret"))
	if err != nil || !ok {
		t.Fatalf("read = %v, %v", ok, err)
	}
	if !view.ReadAccess {
		t.Error("reads default to allowed")
	}
	if view.Value != "hidden" {
		t.Errorf("non-owner read must see the value, got %q", view.Value)
	}
	if view.WriteAccess {
		t.Error("writes default to denied")
	}

	overwrite := NewDataObject(SingularID("secret"), strangerKey, "stolen")
	written, err := s.Write(ctx, strangerKey, overwrite)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if written {
		t.Fatal("non-owner write must be refused")
	}

	view, _, _ = s.Read(ctx, Controller, SingularID("secret"))
	if view.Value != "hidden" {
		t.Errorf("denied write must not change the value, got %q", view.Value)
	}
}

func TestStoreRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, instanceKey, NewDataObject(SingularID("temp"), instanceKey, "v"))
	removed, err := s.Remove(ctx, instanceKey, SingularID("temp"))
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	if _, ok, _ := s.Read(ctx, instanceKey, SingularID("temp")); ok {
		t.Error("object survived removal")
	}

	// removing what is not there succeeds
	removed, err = s.Remove(ctx, instanceKey, SingularID("temp"))
	if err != nil || !removed {
		t.Errorf("idempotent remove = %v, %v", removed, err)
	}
}

func TestStoreRemoveDenied(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, instanceKey, NewDataObject(SingularID("mine"), instanceKey, "v"))
	removed, err := s.Remove(ctx, strangerKey, SingularID("mine"))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed {
		t.Fatal("stranger must not remove the object")
	}
	if _, ok, _ := s.Read(ctx, instanceKey, SingularID("mine")); !ok {
		t.Error("object must survive a denied removal")
	}
}

func TestStoreExpiryOnRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute).UnixMilli()
	obj := NewDataObject(SingularID("stale"), instanceKey, "old").WithRemovalTime(past)
	if written, err := s.Write(ctx, instanceKey, obj); err != nil || !written {
		t.Fatalf("write = %v, %v", written, err)
	}

	if _, ok, err := s.Read(ctx, strangerKey, SingularID("stale")); err != nil || ok {
		t.Fatalf("expired object must read as absent: %v, %v", ok, err)
	}
	// second read stays absent, delete already cascaded
	if _, ok, _ := s.Read(ctx, instanceKey, SingularID("stale")); ok {
		t.Error("expired object came back")
	}
}

func TestStoreExpiredSlotIsWritable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute).UnixMilli()
	s.Write(ctx, instanceKey, NewDataObject(SingularID("slot"), instanceKey, "old").WithRemovalTime(past))

	// expired object no longer guards its id, any writer may claim it
	written, err := s.Write(ctx, strangerKey, NewDataObject(SingularID("slot"), strangerKey, "new"))
	if err != nil || !written {
		t.Fatalf("write over expired = %v, %v", written, err)
	}
	view, ok, _ := s.Read(ctx, strangerKey, SingularID("slot"))
	if !ok || view.Value != "new" {
		t.Errorf("claimed slot not readable: %v", view)
	}
}

func TestStoreEphemeralSweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, instanceKey, NewDataObject(SingularID("session"), instanceKey, "v").WithRemovalTime(0))
	s.Write(ctx, instanceKey, NewDataObject(SingularID("durable"), instanceKey, "v"))

	s.Shutdown(ctx)

	if _, ok, _ := s.backend.Load(ctx, SingularID("session")); ok {
		t.Error("ephemeral object survived shutdown")
	}
	if _, ok, _ := s.backend.Load(ctx, SingularID("durable")); !ok {
		t.Error("durable object swept by mistake")
	}
}

func TestStoreEphemeralPromotion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Write(ctx, instanceKey, NewDataObject(SingularID("maybe"), instanceKey, "v").WithRemovalTime(0))
	// rewriting without a removal time makes the object durable
	s.Write(ctx, instanceKey, NewDataObject(SingularID("maybe"), instanceKey, "v2"))

	s.Shutdown(ctx)
	if _, ok, _ := s.backend.Load(ctx, SingularID("maybe")); !ok {
		t.Error("promoted object swept at shutdown")
	}
}

func TestStoreRelationalListing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rel := &RelationalID{Table: "players", EntityID: "p1"}
	s.Write(ctx, instanceKey, NewDataObject(RelationalObjectID("players", "p1", "stats.kills"), instanceKey, "5"))
	s.Write(ctx, instanceKey, NewDataObject(RelationalObjectID("players", "p1", "stats.deaths"), instanceKey, "2"))
	s.Write(ctx, instanceKey, NewDataObject(RelationalObjectID("players", "p1", "savedLocale"), instanceKey, "en_US"))
	s.Write(ctx, instanceKey, NewDataObject(RelationalObjectID("players", "p2", "stats.kills"), instanceKey, "9"))

	ids, err := s.ListIDs(ctx, rel, "stats.")
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v, want 2 stats keys for p1", ids)
	}

	views, err := s.ListObjects(ctx, instanceKey, rel, "")
	if err != nil {
		t.Fatalf("list objects: %v", err)
	}
	if len(views) != 3 {
		t.Errorf("views = %d, want 3", len(views))
	}
}

func TestStoreInvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.Read(ctx, instanceKey, SingularID("")); err == nil {
		t.Error("empty key must be rejected")
	}
	if _, err := s.Write(ctx, instanceKey, nil); err == nil {
		t.Error("nil object must be rejected")
	}
	bad := NewDataObject(SingularID("x"), PermissionKey{Name: "has space", Identifier: "abc"}, "v")
	if _, err := s.Write(ctx, instanceKey, bad); err == nil {
		t.Error("malformed owner permission must be rejected")
	}
}

func TestStoreConcurrentWritesSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Write(ctx, instanceKey, NewDataObject(SingularID("hot"), instanceKey, "v"))
		}()
	}
	wg.Wait()

	view, ok, err := s.Read(ctx, instanceKey, SingularID("hot"))
	if err != nil || !ok {
		t.Fatalf("read after race = %v, %v", ok, err)
	}
	if view.OwnerPermission != instanceKey {
		t.Errorf("owner = %v", view.OwnerPermission)
	}
}

func TestFileBackendPersistence(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	s := NewStore(backend)
	ctx := context.Background()

	s.Write(ctx, instanceKey, NewDataObject(SingularID("persist"), instanceKey, "disk"))
	s.Write(ctx, instanceKey, NewDataObject(RelationalObjectID("players", "p1", "rank"), instanceKey, "gold"))

	// reopen over the same directory
	backend2, err := NewFileBackend(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2 := NewStore(backend2)

	view, ok, err := s2.Read(ctx, instanceKey, SingularID("persist"))
	if err != nil || !ok {
		t.Fatalf("read = %v, %v", ok, err)
	}
	if view.Value != "disk" {
		t.Errorf("value = %q", view.Value)
	}
	view, ok, _ = s2.Read(ctx, instanceKey, RelationalObjectID("players", "p1", "rank"))
	if !ok || view.Value != "gold" {
		t.Errorf("relational read failed: %v", view)
	}
}
