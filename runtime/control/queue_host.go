package control

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/bus"
	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/queue"
	"github.com/lahuca/lane/framework/records"
)

// joinTimeout allows for world loading on the target instance, so it is
// deliberately above the correlator default.
const joinTimeout = 5 * time.Second

// queueHost adapts the controller to the queue engine: attempts go out as
// instanceJoin requests, confirmed placements move the player's location of
// record.
type queueHost struct {
	c *Controller
}

func (h *queueHost) Attempt(ctx context.Context, req *queue.Request, target queue.Target, together []uuid.UUID) (queue.StageResult, bool) {
	instanceID := target.InstanceID
	if target.GameID != nil {
		game, ok := h.c.Games.Get(*target.GameID)
		if !ok {
			return queue.StageUnknownID, false
		}
		instanceID = game.InstanceID
	}
	if _, ok := h.c.Instances.Get(instanceID); !ok {
		return queue.StageUnknownID, false
	}
	conn, ok := h.c.Server.Conn(instanceID)
	if !ok {
		return queue.StageServerUnavailable, false
	}

	// Group moves are dispatched together but each player's join is still
	// judged independently by the target; only the subject's verdict drives
	// this stage.
	for _, other := range together {
		if other == req.Player {
			continue
		}
		if rec, ok := h.c.Players.Get(other); ok {
			h.sendJoin(conn.ID(), rec, target, nil)
		}
	}

	player, ok := h.c.Players.Get(req.Player)
	if !ok {
		return queue.StageInvalidState, false
	}
	player.QueueType = req.QueueType

	pending, err := h.c.Requests.Request(joinTimeout)
	if err != nil {
		return queue.StageServerUnavailable, false
	}
	join := &codec.InstanceJoinPacket{Player: player, GameID: target.GameID}
	join.ReqID = pending.ID()
	if err := conn.Send(join); err != nil {
		h.c.Requests.Resolve(pending.ID(), codec.Fail(codec.ResultTimedOut))
		return queue.StageNoResponse, false
	}

	result, err := pending.Wait(ctx)
	if err != nil {
		return queue.StageNoResponse, false
	}
	switch result.Code {
	case codec.ResultOK:
		return queue.StageOK, true
	case codec.ResultTimedOut:
		return queue.StageNoResponse, false
	case codec.ResultNoFreeSlots:
		return queue.StageNotJoinable, false
	case codec.ResultInvalidID:
		return queue.StageUnknownID, false
	case codec.ResultIllegalState:
		return queue.StageInvalidState, false
	default:
		return queue.StageJoinDenied, false
	}
}

// sendJoin fires a companion join without waiting on the outcome.
func (h *queueHost) sendJoin(instanceID string, player records.PlayerRecord, target queue.Target, gameID *int64) {
	join := &codec.InstanceJoinPacket{Player: player, GameID: target.GameID}
	if gameID != nil {
		join.GameID = gameID
	}
	if err := h.c.Server.SendTo(instanceID, join); err != nil {
		log.Debug("companion join to %s failed: %v", instanceID, err)
	}
}

func (h *queueHost) Location(player uuid.UUID) (string, *int64, string) {
	rec, ok := h.c.Players.Get(player)
	if !ok {
		return "", nil, ""
	}
	var gameID *int64
	if rec.GameID != 0 {
		id := rec.GameID
		gameID = &id
	}
	return rec.InstanceID, gameID, rec.QueueType
}

func (h *queueHost) Placed(req *queue.Request, target queue.Target) {
	instanceID := target.InstanceID
	if target.GameID != nil {
		if game, ok := h.c.Games.Get(*target.GameID); ok {
			instanceID = game.InstanceID
		}
	}
	h.c.Players.Update(req.Player, func(p *records.PlayerRecord) {
		p.InstanceID = instanceID
		if target.GameID != nil {
			p.GameID = *target.GameID
			p.State = records.StateGame
		} else {
			p.GameID = 0
			p.State = records.StateInstance
		}
		p.QueueType = req.QueueType
	})
	h.c.Server.SendTo(instanceID, &codec.QueueFinishedPacket{Player: req.Player})
	h.c.Bus.Publish(bus.Event{
		Subject:  bus.SubjectPlayerMoved,
		Instance: instanceID,
		Player:   req.Player.String(),
	})
}

func (h *queueHost) SwitchQueueType(req *queue.Request, target queue.Target) {
	h.c.Players.Update(req.Player, func(p *records.PlayerRecord) {
		p.QueueType = req.QueueType
	})
}

func (h *queueHost) Closed(req *queue.Request, disconnect bool, message string) {
	rec, ok := h.c.Players.Get(req.Player)
	if disconnect {
		if ok && rec.InstanceID != "" {
			h.c.Server.SendTo(rec.InstanceID, &codec.InstanceDisconnectPacket{
				Player:  req.Player,
				Message: message,
			})
		}
		h.c.Players.Remove(req.Player)
		h.c.Bus.Publish(bus.Event{Subject: bus.SubjectPlayerLeft, Player: req.Player.String(), Detail: message})
		return
	}
	if message != "" && ok && rec.InstanceID != "" {
		h.c.Server.SendTo(rec.InstanceID, &codec.SendMessagePacket{
			Player:  req.Player,
			Message: message,
		})
	}
	h.c.Bus.Publish(bus.Event{Subject: bus.SubjectQueueFinished, Player: req.Player.String(), Detail: message})
}
