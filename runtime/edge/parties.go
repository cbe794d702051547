package edge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
	"github.com/lahuca/lane/framework/replicate"
)

// PartyObjectType matches the controller's replication channel for parties.
const PartyObjectType = "party"

// Party fetches the current party record from the controller. Prefer a
// subscribed replica when the party is read often.
func (a *Agent) Party(ctx context.Context, partyID int64) (records.PartyRecord, error) {
	pkt := &codec.RequestPartyPacket{PartyID: partyID}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return records.PartyRecord{}, err
	}
	if !result.IsOK() {
		return records.PartyRecord{}, fmt.Errorf("party fetch failed: %s", result.Code)
	}
	var rec records.PartyRecord
	if err := json.Unmarshal(result.Data, &rec); err != nil {
		return records.PartyRecord{}, err
	}
	return rec, nil
}

// SubscribeParty opens a replica of the party that tracks controller-side
// changes until UnsubscribeParty or a disband.
func (a *Agent) SubscribeParty(ctx context.Context, partyID int64) (*replicate.Replica[records.PartyRecord], error) {
	a.mu.Lock()
	if replica, ok := a.parties[partyID]; ok {
		a.mu.Unlock()
		return replica, nil
	}
	a.mu.Unlock()

	pkt := &codec.ReplicatedSubscribePacket{ObjectType: PartyObjectType, ReplicationID: partyID}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return nil, err
	}
	if !result.IsOK() {
		return nil, fmt.Errorf("party subscribe failed: %s", result.Code)
	}

	replica := replicate.NewReplica[records.PartyRecord](PartyObjectType, partyID)
	replica.SetSubscribed(true)
	a.mu.Lock()
	a.parties[partyID] = replica
	a.mu.Unlock()
	a.replicas.Put(PartyObjectType, partyID, replica)
	return replica, nil
}

func (a *Agent) UnsubscribeParty(ctx context.Context, partyID int64) error {
	a.mu.Lock()
	replica, ok := a.parties[partyID]
	delete(a.parties, partyID)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	replica.SetSubscribed(false)
	a.replicas.Delete(PartyObjectType, partyID)

	pkt := &codec.ReplicatedUnsubscribePacket{ObjectType: PartyObjectType, ReplicationID: partyID}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("party unsubscribe failed: %s", result.Code)
	}
	return nil
}

// guardParty blocks party round-trips once the controller disbanded the
// replicated party, so stale handles fail fast instead of timing out.
func (a *Agent) guardParty(partyID int64) error {
	a.mu.Lock()
	replica, ok := a.parties[partyID]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return replica.Guard()
}

// --- party operations ---

// InviteToParty invites player on actor's behalf. A zero partyID creates a
// new party owned by the actor; the effective party id is returned.
func (a *Agent) InviteToParty(ctx context.Context, actor uuid.UUID, partyID int64, player uuid.UUID) (int64, error) {
	if err := a.guardParty(partyID); err != nil {
		return 0, err
	}
	pkt := &codec.PartyAddInvitationPacket{Actor: actor, PartyID: partyID, Player: player}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return 0, err
	}
	if !result.IsOK() {
		return 0, fmt.Errorf("party invite failed: %s", result.Code)
	}
	var id int64
	if err := json.Unmarshal(result.Data, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (a *Agent) HasPartyInvitation(ctx context.Context, partyID int64, player uuid.UUID) (bool, error) {
	pkt := &codec.PartyHasInvitationPacket{PartyID: partyID, Player: player}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return false, err
	}
	if !result.IsOK() {
		return false, fmt.Errorf("party invitation check failed: %s", result.Code)
	}
	var has bool
	if err := json.Unmarshal(result.Data, &has); err != nil {
		return false, err
	}
	return has, nil
}

func (a *Agent) AcceptPartyInvitation(ctx context.Context, partyID int64, player uuid.UUID) error {
	pkt := &codec.PartyAcceptInvitationPacket{PartyID: partyID, Player: player}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) DenyPartyInvitation(ctx context.Context, partyID int64, player uuid.UUID) error {
	pkt := &codec.PartyDenyInvitationPacket{PartyID: partyID, Player: player}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) JoinParty(ctx context.Context, partyID int64, player uuid.UUID) error {
	pkt := &codec.PartyJoinPlayerPacket{PartyID: partyID, Player: player}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) LeaveParty(ctx context.Context, partyID int64, player uuid.UUID) error {
	pkt := &codec.PartyRemovePlayerPacket{Actor: player, PartyID: partyID, Player: player}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) KickFromParty(ctx context.Context, actor uuid.UUID, partyID int64, player uuid.UUID) error {
	pkt := &codec.PartyRemovePlayerPacket{Actor: actor, PartyID: partyID, Player: player}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) SetPartyInvitationsOnly(ctx context.Context, actor uuid.UUID, partyID int64, only bool) error {
	pkt := &codec.PartySetInvitationsOnlyPacket{Actor: actor, PartyID: partyID, InvitationsOnly: only}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) SetPartyOwner(ctx context.Context, actor uuid.UUID, partyID int64, owner uuid.UUID) error {
	pkt := &codec.PartySetOwnerPacket{Actor: actor, PartyID: partyID, Owner: owner}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) DisbandParty(ctx context.Context, actor uuid.UUID, partyID int64) error {
	pkt := &codec.PartyDisbandPacket{Actor: actor, PartyID: partyID}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

// WarpParty pulls every member to the owner's current instance.
func (a *Agent) WarpParty(ctx context.Context, actor uuid.UUID, partyID int64) error {
	pkt := &codec.PartyWarpPacket{Actor: actor, PartyID: partyID}
	return a.partyOp(ctx, partyID, pkt, &pkt.ReqID)
}

func (a *Agent) partyOp(ctx context.Context, partyID int64, p codec.Packet, reqID *int64) error {
	if err := a.guardParty(partyID); err != nil {
		return err
	}
	result, err := a.roundTrip(ctx, p, reqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("party operation failed: %s", result.Code)
	}
	return nil
}
