package control

import (
	"testing"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
)

func TestResultFromCode(t *testing.T) {
	if got := resultFromCode(codec.ResultOK); !got.IsOK() || got.Data != nil {
		t.Errorf("OK mapped to %+v", got)
	}
	if got := resultFromCode(codec.ResultInsufficientRights); got.IsOK() || got.Code != codec.ResultInsufficientRights {
		t.Errorf("denial mapped to %+v", got)
	}
}

func TestPlayerManager(t *testing.T) {
	m := NewPlayerManager()
	id := uuid.New()

	m.Upsert(records.PlayerRecord{UUID: id, Username: "alice", InstanceID: "inst-1"})
	rec, ok := m.Get(id)
	if !ok || rec.Username != "alice" {
		t.Fatalf("get = %+v, %v", rec, ok)
	}

	m.Update(id, func(r *records.PlayerRecord) {
		r.State = records.StateQueued
	})
	rec, _ = m.Get(id)
	if rec.State != records.StateQueued {
		t.Errorf("state = %s", rec.State)
	}

	other := uuid.New()
	m.Upsert(records.PlayerRecord{UUID: other, InstanceID: "inst-2"})
	on := m.OnInstance("inst-1")
	if len(on) != 1 || on[0].UUID != id {
		t.Errorf("on instance = %v", on)
	}

	m.Remove(id)
	if _, ok := m.Get(id); ok {
		t.Error("player survived removal")
	}
	if m.Count() != 1 {
		t.Errorf("count = %d", m.Count())
	}
}

func TestGameManagerAssignsIDs(t *testing.T) {
	m := NewGameManager()

	a := m.Upsert(records.GameRecord{InstanceID: "inst-1", GameType: "duels"})
	b := m.Upsert(records.GameRecord{InstanceID: "inst-1", GameType: "duels"})
	if a == 0 || b == 0 || a == b {
		t.Fatalf("ids = %d, %d", a, b)
	}

	// an explicit id updates in place
	got := m.Upsert(records.GameRecord{GameID: a, InstanceID: "inst-1", GameType: "duels", GameState: "running"})
	if got != a {
		t.Errorf("update returned %d, want %d", got, a)
	}
	rec, ok := m.Get(a)
	if !ok || rec.GameState != "running" {
		t.Errorf("get = %+v, %v", rec, ok)
	}
}

func TestGameManagerRemoveOnInstance(t *testing.T) {
	m := NewGameManager()
	a := m.Upsert(records.GameRecord{InstanceID: "inst-1"})
	m.Upsert(records.GameRecord{InstanceID: "inst-2"})

	removed := m.RemoveOnInstance("inst-1")
	if len(removed) != 1 || removed[0] != a {
		t.Errorf("removed = %v", removed)
	}
	if m.Count() != 1 {
		t.Errorf("count = %d", m.Count())
	}
}

func TestInstanceManagerStatus(t *testing.T) {
	m := NewInstanceManager()

	if m.UpdateStatus(records.InstanceRecord{ID: "ghost"}) {
		t.Error("status for unknown instance must be rejected")
	}

	m.Connected("inst-1", "survival")
	rec, ok := m.Get("inst-1")
	if !ok || rec.Type != "survival" {
		t.Fatalf("get = %+v, %v", rec, ok)
	}

	update := records.InstanceRecord{ID: "inst-1", Type: "survival", Load: 12.5}
	update.OnlineJoinable = true
	if !m.UpdateStatus(update) {
		t.Fatal("status update rejected")
	}
	rec, _ = m.Get("inst-1")
	if rec.Load != 12.5 || !rec.OnlineJoinable {
		t.Errorf("record = %+v", rec)
	}

	m.Disconnected("inst-1")
	if _, ok := m.Get("inst-1"); ok {
		t.Error("instance survived disconnect")
	}
}
