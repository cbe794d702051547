package control

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lahuca/lane/common/jwts"
	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/bus"
	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/datastore"
	"github.com/lahuca/lane/framework/queue"
	"github.com/lahuca/lane/framework/records"
	"github.com/lahuca/lane/framework/transport"
)

// HandlerFunc processes one inbound packet on the connection's read loop.
// Anything slow must hop onto its own goroutine.
type HandlerFunc func(conn *transport.ServerConn, t *codec.Transfer, p codec.Packet)

const storeTimeout = 3 * time.Second

func (c *Controller) registerHandlers() {
	c.handlers = map[string]HandlerFunc{
		codec.IDConnectionConnect:   c.handleConnect,
		codec.IDConnectionKeepAlive: c.handleKeepAlive,

		codec.IDDataObjectRead:    c.handleDataRead,
		codec.IDDataObjectWrite:   c.handleDataWrite,
		codec.IDDataObjectRemove:  c.handleDataRemove,
		codec.IDDataObjectListIds: c.handleDataListIDs,
		codec.IDDataObjectsList:   c.handleDataList,

		codec.IDSavedLocaleGet: c.handleLocaleGet,
		codec.IDSavedLocaleSet: c.handleLocaleSet,

		codec.IDInstanceStatusUpdate: c.handleInstanceStatus,
		codec.IDInstanceUpdatePlayer: c.handleInstancePlayer,
		codec.IDInstanceDisconnect:   c.handleInstanceDisconnect,
		codec.IDGameStatusUpdate:     c.handleGameStatus,

		codec.IDQueueRequest:   c.handleQueueRequest,
		codec.IDPlayerJoinGame: c.handlePlayerJoinGame,
		codec.IDPlayerQuitGame: c.handlePlayerQuitGame,

		codec.IDRequestPlayers:   c.handleRequestPlayers,
		codec.IDRequestGames:     c.handleRequestGames,
		codec.IDRequestInstances: c.handleRequestInstances,

		codec.IDRequestParty:            c.handleRequestParty,
		codec.IDPartySetInvitationsOnly: c.handlePartySetInvitationsOnly,
		codec.IDPartyHasInvitation:      c.handlePartyHasInvitation,
		codec.IDPartyAddInvitation:      c.handlePartyAddInvitation,
		codec.IDPartyAcceptInvitation:   c.handlePartyAcceptInvitation,
		codec.IDPartyDenyInvitation:     c.handlePartyDenyInvitation,
		codec.IDPartyJoinPlayer:         c.handlePartyJoinPlayer,
		codec.IDPartyRemovePlayer:       c.handlePartyRemovePlayer,
		codec.IDPartyDisband:            c.handlePartyDisband,
		codec.IDPartySetOwner:           c.handlePartySetOwner,
		codec.IDPartyWarp:               c.handlePartyWarp,

		codec.IDSendMessage: c.handleSendMessage,

		codec.IDReplicatedSubscribe:   c.handleReplicatedSubscribe,
		codec.IDReplicatedUnsubscribe: c.handleReplicatedUnsubscribe,
	}
}

// dispatch routes every packet terminating at the controller. Response
// packets retire their pending request; everything else goes through the
// handler table.
func (c *Controller) dispatch(conn *transport.ServerConn, t *codec.Transfer, p codec.Packet) {
	if resp, ok := p.(codec.ResponsePacket); ok {
		if c.Requests.Resolve(resp.RequestID(), resp.Response()) {
			return
		}
		// late response for a retired id, dropped
		log.Debug("unmatched response %s id=%d from %s", p.PacketID(), resp.RequestID(), conn.ID())
		return
	}
	h, ok := c.handlers[p.PacketID()]
	if !ok {
		log.Debug("unhandled packet %s from %s", p.PacketID(), conn.ID())
		return
	}
	h(conn, t, p)
}

func (c *Controller) reply(conn *transport.ServerConn, reqID int64, result codec.Result) {
	resp := &codec.SimpleResultPacket{Result: result}
	resp.ReqID = reqID
	if err := conn.Send(resp); err != nil {
		log.Debug("reply to %s failed: %v", conn.ID(), err)
	}
}

func (c *Controller) replyLong(conn *transport.ServerConn, reqID int64, result codec.Result, value int64) {
	resp := &codec.LongResultPacket{Result: result, Value: value}
	resp.ReqID = reqID
	if err := conn.Send(resp); err != nil {
		log.Debug("reply to %s failed: %v", conn.ID(), err)
	}
}

// --- connection ---

func (c *Controller) handleConnect(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.ConnectionConnectPacket)
	if c.Conf.JwtConf.Enabled {
		id, err := jwts.ParseToken(pkt.Token, c.Conf.JwtConf.Secret)
		if err != nil || id != pkt.ID {
			log.Warn("rejected connect for %s: bad token", pkt.ID)
			c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
			return
		}
	}
	if err := c.Server.Assign(conn, pkt.ID); err != nil {
		log.Warn("rejected connect for %s: %v", pkt.ID, err)
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultInvalidID))
		return
	}
	c.Instances.Connected(pkt.ID, pkt.Type)
	log.Info("instance %s (%s) connected from %s", pkt.ID, pkt.Type, conn.RemoteAddr())
	c.Bus.Publish(bus.Event{Subject: bus.SubjectInstanceUp, Instance: pkt.ID})
	c.reply(conn, pkt.RequestID(), codec.OK(nil))
}

func (c *Controller) handleKeepAlive(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.ConnectionKeepAlivePacket)
	c.Instances.Touch(conn.ID())
	resp := &codec.ConnectionKeepAliveResultPacket{}
	resp.ReqID = pkt.RequestID()
	conn.Send(resp)
}

// --- data objects ---

// wirePermission parses the caller's key; the controller key is never
// accepted from the wire.
func wirePermission(raw string) (datastore.PermissionKey, bool) {
	key := datastore.KeyFromString(raw)
	if key.IsController() || !key.IsFormattedCorrectly() {
		return datastore.PermissionKey{}, false
	}
	return key, true
}

func (c *Controller) dataReply(conn *transport.ServerConn, reqID int64, result codec.Result) {
	resp := &codec.DataObjectResultPacket{Result: result}
	resp.ReqID = reqID
	if err := conn.Send(resp); err != nil {
		log.Debug("data reply to %s failed: %v", conn.ID(), err)
	}
}

func (c *Controller) handleDataRead(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.DataObjectReadPacket)
	key, ok := wirePermission(pkt.Permission)
	if !ok {
		c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		view, found, err := c.Store.Read(ctx, key, pkt.ID)
		switch {
		case err != nil:
			log.Error("data read %s: %v", pkt.ID, err)
			c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalState))
		case !found:
			c.dataReply(conn, pkt.RequestID(), codec.OK(nil))
		default:
			c.dataReply(conn, pkt.RequestID(), codec.OK(view))
		}
	}()
}

func (c *Controller) handleDataWrite(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.DataObjectWritePacket)
	key, ok := wirePermission(pkt.Permission)
	if !ok {
		c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		obj := pkt.Object
		written, err := c.Store.Write(ctx, key, &obj)
		switch {
		case err != nil:
			log.Error("data write %s: %v", obj.ID, err)
			c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalState))
		case !written:
			c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		default:
			c.dataReply(conn, pkt.RequestID(), codec.OK(nil))
		}
	}()
}

func (c *Controller) handleDataRemove(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.DataObjectRemovePacket)
	key, ok := wirePermission(pkt.Permission)
	if !ok {
		c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		removed, err := c.Store.Remove(ctx, key, pkt.ID)
		switch {
		case err != nil:
			log.Error("data remove %s: %v", pkt.ID, err)
			c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalState))
		case !removed:
			c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		default:
			c.dataReply(conn, pkt.RequestID(), codec.OK(nil))
		}
	}()
}

func (c *Controller) handleDataListIDs(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.DataObjectListIdsPacket)
	if _, ok := wirePermission(pkt.Permission); !ok {
		c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		ids, err := c.Store.ListIDs(ctx, pkt.Relational, pkt.Prefix)
		if err != nil {
			log.Error("data list ids: %v", err)
			c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalState))
			return
		}
		c.dataReply(conn, pkt.RequestID(), codec.OK(ids))
	}()
}

func (c *Controller) handleDataList(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.DataObjectsListPacket)
	key, ok := wirePermission(pkt.Permission)
	if !ok {
		c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		views, err := c.Store.ListObjects(ctx, key, pkt.Relational, pkt.Prefix)
		if err != nil {
			log.Error("data list objects: %v", err)
			c.dataReply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalState))
			return
		}
		c.dataReply(conn, pkt.RequestID(), codec.OK(views))
	}()
}

// --- locale ---

func (c *Controller) handleLocaleGet(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.SavedLocaleGetPacket)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		locale, err := c.Locales.Get(ctx, pkt.Player)
		if err != nil {
			c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalState))
			return
		}
		c.reply(conn, pkt.RequestID(), codec.OK(locale))
	}()
}

func (c *Controller) handleLocaleSet(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.SavedLocaleSetPacket)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := c.Locales.Set(ctx, pkt.Player, pkt.Locale); err != nil {
			c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalState))
			return
		}
		c.reply(conn, pkt.RequestID(), codec.OK(nil))
	}()
}

// --- instance and game state ---

func (c *Controller) handleInstanceStatus(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.InstanceStatusUpdatePacket)
	rec := pkt.Record
	rec.ID = conn.ID()
	if !c.Instances.UpdateStatus(rec) {
		log.Debug("status update from unknown instance %s", conn.ID())
	}
}

func (c *Controller) handleInstancePlayer(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.InstanceUpdatePlayerPacket)
	rec := pkt.Player
	if rec.InstanceID == "" {
		rec.InstanceID = conn.ID()
	}
	c.Players.Upsert(rec)
}

func (c *Controller) handleInstanceDisconnect(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.InstanceDisconnectPacket)
	c.Players.Remove(pkt.Player)
	c.Bus.Publish(bus.Event{Subject: bus.SubjectPlayerLeft, Player: pkt.Player.String(), Instance: conn.ID()})
}

func (c *Controller) handleGameStatus(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.GameStatusUpdatePacket)
	rec := pkt.Record
	rec.InstanceID = conn.ID()
	id := c.Games.Upsert(rec)
	c.replyLong(conn, pkt.RequestID(), codec.OK(nil), id)
}

// --- queue ---

func (c *Controller) handleQueueRequest(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.QueueRequestPacket)
	player := c.Players.Update(pkt.Player, func(rec *records.PlayerRecord) {
		if rec.State == "" {
			rec.State = records.StateQueued
		}
	})
	req := queue.NewRequest(player.UUID, queue.RequestReason(pkt.Reason), pkt.QueueType)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		outcome := queue.Run(ctx, req, &DefaultQueuePolicy{c: c}, &queueHost{c: c})
		if outcome.State == queue.StateStageSucceeded {
			c.reply(conn, pkt.RequestID(), codec.OK(nil))
			return
		}
		result := codec.Fail(codec.ResultIllegalState)
		result.Data, _ = json.Marshal(outcome.Message)
		c.reply(conn, pkt.RequestID(), result)
	}()
}

func (c *Controller) handlePlayerJoinGame(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PlayerJoinGamePacket)
	if _, ok := c.Games.Get(pkt.GameID); !ok {
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultInvalidID))
		return
	}
	c.Players.Update(pkt.Player, func(rec *records.PlayerRecord) {
		rec.GameID = pkt.GameID
		rec.InstanceID = conn.ID()
		rec.State = records.StateGame
	})
	c.reply(conn, pkt.RequestID(), codec.OK(nil))
}

func (c *Controller) handlePlayerQuitGame(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PlayerQuitGamePacket)
	rec, ok := c.Players.Get(pkt.Player)
	if !ok || rec.GameID != pkt.GameID {
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultInvalidPlayer))
		return
	}
	c.Players.Update(pkt.Player, func(rec *records.PlayerRecord) {
		rec.GameID = 0
		rec.State = records.StateInstance
	})
	c.reply(conn, pkt.RequestID(), codec.OK(nil))
}

// --- information ---

func (c *Controller) handleRequestPlayers(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.RequestPlayersPacket)
	c.reply(conn, pkt.RequestID(), codec.OK(c.Players.List()))
}

func (c *Controller) handleRequestGames(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.RequestGamesPacket)
	c.reply(conn, pkt.RequestID(), codec.OK(c.Games.List()))
}

func (c *Controller) handleRequestInstances(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.RequestInstancesPacket)
	c.reply(conn, pkt.RequestID(), codec.OK(c.Instances.List()))
}

// --- party ---

func (c *Controller) handleRequestParty(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.RequestPartyPacket)
	resp := &codec.ResponsePartyPacket{}
	resp.ReqID = pkt.RequestID()
	if party, ok := c.Parties.Get(pkt.PartyID); ok {
		rec := party.Record()
		resp.Record = &rec
	}
	conn.Send(resp)
}

func (c *Controller) handlePartySetInvitationsOnly(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartySetInvitationsOnlyPacket)
	code := c.Parties.SetInvitationsOnly(pkt.Actor, pkt.PartyID, pkt.InvitationsOnly)
	c.reply(conn, pkt.RequestID(), resultFromCode(code))
}

func (c *Controller) handlePartyHasInvitation(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyHasInvitationPacket)
	has, code := c.Parties.HasInvitation(pkt.PartyID, pkt.Player)
	if code != codec.ResultOK {
		c.reply(conn, pkt.RequestID(), codec.Fail(code))
		return
	}
	c.reply(conn, pkt.RequestID(), codec.OK(has))
}

func (c *Controller) handlePartyAddInvitation(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyAddInvitationPacket)
	partyID, code := c.Parties.AddInvitation(pkt.Actor, pkt.PartyID, pkt.Player)
	c.replyLong(conn, pkt.RequestID(), resultFromCode(code), partyID)
}

func (c *Controller) handlePartyAcceptInvitation(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyAcceptInvitationPacket)
	code := c.Parties.AcceptInvitation(pkt.PartyID, pkt.Player)
	if code == codec.ResultOK {
		c.Players.Update(pkt.Player, func(rec *records.PlayerRecord) {
			rec.PartyID = pkt.PartyID
		})
	}
	c.reply(conn, pkt.RequestID(), resultFromCode(code))
}

func (c *Controller) handlePartyDenyInvitation(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyDenyInvitationPacket)
	code := c.Parties.DenyInvitation(pkt.PartyID, pkt.Player)
	c.reply(conn, pkt.RequestID(), resultFromCode(code))
}

func (c *Controller) handlePartyJoinPlayer(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyJoinPlayerPacket)
	code := c.Parties.JoinPlayer(pkt.PartyID, pkt.Player)
	if code == codec.ResultOK {
		c.Players.Update(pkt.Player, func(rec *records.PlayerRecord) {
			rec.PartyID = pkt.PartyID
		})
	}
	c.reply(conn, pkt.RequestID(), resultFromCode(code))
}

func (c *Controller) handlePartyRemovePlayer(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyRemovePlayerPacket)
	code := c.Parties.RemovePlayer(pkt.Actor, pkt.PartyID, pkt.Player)
	if code == codec.ResultOK {
		c.Players.Update(pkt.Player, func(rec *records.PlayerRecord) {
			rec.PartyID = 0
		})
	}
	c.reply(conn, pkt.RequestID(), resultFromCode(code))
}

func (c *Controller) handlePartyDisband(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyDisbandPacket)
	members, _ := c.Parties.Members(pkt.PartyID)
	code := c.Parties.Disband(pkt.Actor, pkt.PartyID)
	if code == codec.ResultOK {
		for _, member := range members {
			c.Players.Update(member, func(rec *records.PlayerRecord) {
				rec.PartyID = 0
			})
		}
		c.Bus.Publish(bus.Event{Subject: bus.SubjectPartyDisbanded, Detail: pkt.Actor.String()})
	}
	c.reply(conn, pkt.RequestID(), resultFromCode(code))
}

func (c *Controller) handlePartySetOwner(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartySetOwnerPacket)
	code := c.Parties.SetOwner(pkt.Actor, pkt.PartyID, pkt.Owner)
	c.reply(conn, pkt.RequestID(), resultFromCode(code))
}

// handlePartyWarp brings every member to the owner's current instance. Each
// member runs their own queue request; the warp reply only confirms the
// dispatch.
func (c *Controller) handlePartyWarp(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.PartyWarpPacket)
	party, ok := c.Parties.Get(pkt.PartyID)
	if !ok {
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultInvalidID))
		return
	}
	rec := party.Record()
	if rec.Owner != pkt.Actor {
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultInsufficientRights))
		return
	}
	owner, ok := c.Players.Get(rec.Owner)
	if !ok || owner.InstanceID == "" {
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultInvalidPlayer))
		return
	}
	targetInstance := owner.InstanceID
	for _, member := range rec.Players {
		if member == rec.Owner {
			continue
		}
		member := member
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			req := queue.NewRequest(member, queue.ReasonPartyJoin, "")
			policy := queue.PolicyFunc(func(_ context.Context, r *queue.Request) queue.Decision {
				if r.IsInitialRequest() {
					return queue.JoinInstance(targetInstance)
				}
				return queue.None("")
			})
			queue.Run(ctx, req, policy, &queueHost{c: c})
		}()
	}
	c.reply(conn, pkt.RequestID(), codec.OK(nil))
}

// --- messaging ---

func (c *Controller) handleSendMessage(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.SendMessagePacket)
	rec, ok := c.Players.Get(pkt.Player)
	if !ok || rec.InstanceID == "" {
		return
	}
	c.Server.SendTo(rec.InstanceID, pkt)
}

// --- replication ---

func (c *Controller) handleReplicatedSubscribe(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.ReplicatedSubscribePacket)
	if pkt.ObjectType != PartyObjectType {
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalArgument))
		return
	}
	snapshot, code := c.Parties.Subscribe(conn.ID(), pkt.ReplicationID)
	if code != codec.ResultOK {
		c.reply(conn, pkt.RequestID(), codec.Fail(code))
		return
	}
	c.reply(conn, pkt.RequestID(), codec.OK(nil))
	// initial sync so the replica does not wait for the next change
	data, err := json.Marshal(snapshot)
	if err == nil {
		conn.Send(&codec.ReplicatedUpdatePacket{
			ObjectType:    PartyObjectType,
			ReplicationID: pkt.ReplicationID,
			Snapshot:      data,
		})
	}
}

func (c *Controller) handleReplicatedUnsubscribe(conn *transport.ServerConn, _ *codec.Transfer, p codec.Packet) {
	pkt := p.(*codec.ReplicatedUnsubscribePacket)
	if pkt.ObjectType != PartyObjectType {
		c.reply(conn, pkt.RequestID(), codec.Fail(codec.ResultIllegalArgument))
		return
	}
	c.reply(conn, pkt.RequestID(), resultFromCode(c.Parties.Unsubscribe(conn.ID(), pkt.ReplicationID)))
}

func resultFromCode(code string) codec.Result {
	if code == codec.ResultOK {
		return codec.OK(nil)
	}
	return codec.Fail(code)
}
