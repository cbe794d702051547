package control

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
)

type fakeSender struct {
	sent map[string][]codec.Packet
	fail bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]codec.Packet)}
}

func (s *fakeSender) SendTo(id string, p codec.Packet) error {
	if s.fail {
		return errors.New("peer gone")
	}
	s.sent[id] = append(s.sent[id], p)
	return nil
}

func TestPartyLifecycle(t *testing.T) {
	m := NewPartyManager(newFakeSender())
	owner := uuid.New()
	guest := uuid.New()

	party := m.Create(owner)
	rec := party.Record()
	if rec.PartyID == 0 || rec.Owner != owner {
		t.Fatalf("create: %+v", rec)
	}
	if len(rec.Players) != 1 || rec.Players[0] != owner {
		t.Fatalf("owner not seated: %+v", rec.Players)
	}

	partyID, code := m.AddInvitation(owner, rec.PartyID, guest)
	if code != codec.ResultOK || partyID != rec.PartyID {
		t.Fatalf("invite: %s, %d", code, partyID)
	}
	has, code := m.HasInvitation(partyID, guest)
	if code != codec.ResultOK || !has {
		t.Fatalf("has invitation: %v, %s", has, code)
	}

	if code := m.AcceptInvitation(partyID, guest); code != codec.ResultOK {
		t.Fatalf("accept: %s", code)
	}
	members, _ := m.Members(partyID)
	if len(members) != 2 {
		t.Fatalf("members = %v", members)
	}
	if has, _ := m.HasInvitation(partyID, guest); has {
		t.Error("invitation must be consumed on accept")
	}
}

func TestPartyInviteCreatesWhenZeroID(t *testing.T) {
	m := NewPartyManager(newFakeSender())
	actor := uuid.New()
	guest := uuid.New()

	partyID, code := m.AddInvitation(actor, 0, guest)
	if code != codec.ResultOK || partyID == 0 {
		t.Fatalf("invite into fresh party: %s, %d", code, partyID)
	}
	party, ok := m.Get(partyID)
	if !ok || party.Record().Owner != actor {
		t.Error("fresh party must be owned by the actor")
	}
}

func TestPartyInviteOnlyGate(t *testing.T) {
	m := NewPartyManager(newFakeSender())
	owner := uuid.New()
	intruder := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	if code := m.SetInvitationsOnly(owner, id, true); code != codec.ResultOK {
		t.Fatalf("set invite only: %s", code)
	}
	if code := m.SetInvitationsOnly(intruder, id, false); code != codec.ResultInsufficientRights {
		t.Errorf("non-owner toggled invite only: %s", code)
	}
	if code := m.JoinPlayer(id, intruder); code != codec.ResultInsufficientRights {
		t.Errorf("uninvited join on invite-only party: %s", code)
	}

	m.AddInvitation(owner, id, intruder)
	if code := m.JoinPlayer(id, intruder); code != codec.ResultOK {
		t.Errorf("invited join refused: %s", code)
	}
}

func TestPartyDenyInvitation(t *testing.T) {
	m := NewPartyManager(newFakeSender())
	owner := uuid.New()
	guest := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	m.AddInvitation(owner, id, guest)
	if code := m.DenyInvitation(id, guest); code != codec.ResultOK {
		t.Fatalf("deny: %s", code)
	}
	if code := m.AcceptInvitation(id, guest); code != codec.ResultIllegalState {
		t.Errorf("accept after deny: %s", code)
	}
}

func TestPartyOwnerLeavesReassignsOwnership(t *testing.T) {
	m := NewPartyManager(newFakeSender())
	owner := uuid.New()
	guest := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	m.AddInvitation(owner, id, guest)
	m.AcceptInvitation(id, guest)

	if code := m.RemovePlayer(owner, id, owner); code != codec.ResultOK {
		t.Fatalf("owner leave: %s", code)
	}
	rec := party.Record()
	if rec.Owner != guest {
		t.Errorf("ownership not handed over: %v", rec.Owner)
	}
}

func TestPartyLastPlayerLeavingDisbands(t *testing.T) {
	m := NewPartyManager(newFakeSender())
	owner := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	if code := m.RemovePlayer(owner, id, owner); code != codec.ResultOK {
		t.Fatalf("leave: %s", code)
	}
	if _, ok := m.Get(id); ok {
		t.Error("empty party must disband")
	}
}

func TestPartyKickRequiresOwnerOrSelf(t *testing.T) {
	m := NewPartyManager(newFakeSender())
	owner := uuid.New()
	a := uuid.New()
	b := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	for _, p := range []uuid.UUID{a, b} {
		m.AddInvitation(owner, id, p)
		m.AcceptInvitation(id, p)
	}

	if code := m.RemovePlayer(a, id, b); code != codec.ResultInsufficientRights {
		t.Errorf("member kicked another member: %s", code)
	}
	if code := m.RemovePlayer(a, id, a); code != codec.ResultOK {
		t.Errorf("self removal refused: %s", code)
	}
	if code := m.RemovePlayer(owner, id, b); code != codec.ResultOK {
		t.Errorf("owner kick refused: %s", code)
	}
}

func TestPartyDisbandFansOutRemove(t *testing.T) {
	sender := newFakeSender()
	m := NewPartyManager(sender)
	owner := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	if _, code := m.Subscribe("inst-1", id); code != codec.ResultOK {
		t.Fatalf("subscribe: %s", code)
	}

	if code := m.Disband(owner, id); code != codec.ResultOK {
		t.Fatalf("disband: %s", code)
	}
	if _, ok := m.Get(id); ok {
		t.Error("party survived disband")
	}

	packets := sender.sent["inst-1"]
	if len(packets) == 0 {
		t.Fatal("subscriber saw nothing")
	}
	if _, ok := packets[len(packets)-1].(*codec.ReplicatedRemovePacket); !ok {
		t.Errorf("last packet = %T, want remove", packets[len(packets)-1])
	}
}

func TestPartyMutationFansOutSnapshot(t *testing.T) {
	sender := newFakeSender()
	m := NewPartyManager(sender)
	owner := uuid.New()
	guest := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	m.Subscribe("inst-1", id)

	m.AddInvitation(owner, id, guest)
	packets := sender.sent["inst-1"]
	if len(packets) != 1 {
		t.Fatalf("packets = %d", len(packets))
	}
	update := packets[0].(*codec.ReplicatedUpdatePacket)
	var rec records.PartyRecord
	if err := json.Unmarshal(update.Snapshot, &rec); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(rec.Invitations) != 1 || rec.Invitations[0] != guest {
		t.Errorf("snapshot invitations = %v", rec.Invitations)
	}
}

func TestPartyMutationSucceedsWhenFanOutFails(t *testing.T) {
	sender := newFakeSender()
	sender.fail = true
	m := NewPartyManager(sender)
	owner := uuid.New()

	party := m.Create(owner)
	id := party.Record().PartyID
	m.Subscribe("inst-1", id)

	if code := m.SetInvitationsOnly(owner, id, true); code != codec.ResultOK {
		t.Errorf("fan-out failure leaked into the caller result: %s", code)
	}
	if !party.Record().InviteOnly {
		t.Error("state change lost")
	}
}
