package edge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
	"github.com/lahuca/lane/framework/request"
)

// RegisterGame announces a game to the controller. A zero GameID asks the
// controller to assign one; the effective id comes back and is tracked
// locally either way.
func (a *Agent) RegisterGame(ctx context.Context, rec records.GameRecord) (int64, error) {
	rec.InstanceID = a.conf.ID
	pkt := &codec.GameStatusUpdatePacket{Record: rec}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return 0, err
	}
	if !result.IsOK() {
		return 0, fmt.Errorf("game registration failed: %s", result.Code)
	}
	var id int64
	if err := json.Unmarshal(result.Data, &id); err != nil {
		return 0, err
	}
	rec.GameID = id

	a.mu.Lock()
	a.games[id] = rec
	a.mu.Unlock()
	return id, nil
}

// UpdateGame re-announces a tracked game after local changes.
func (a *Agent) UpdateGame(ctx context.Context, rec records.GameRecord) error {
	if rec.GameID == 0 {
		return fmt.Errorf("game has no id")
	}
	_, err := a.RegisterGame(ctx, rec)
	return err
}

func (a *Agent) Game(id int64) (records.GameRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.games[id]
	return rec, ok
}

// PlayerJoinGame records a player entering one of this instance's games.
func (a *Agent) PlayerJoinGame(ctx context.Context, player uuid.UUID, gameID int64) error {
	pkt := &codec.PlayerJoinGamePacket{Player: player, GameID: gameID}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("join game failed: %s", result.Code)
	}
	a.mu.Lock()
	if rec, ok := a.games[gameID]; ok && !containsUUID(rec.Players, player) {
		rec.Players = append(rec.Players, player)
		a.games[gameID] = rec
	}
	a.mu.Unlock()
	return nil
}

func (a *Agent) PlayerQuitGame(ctx context.Context, player uuid.UUID, gameID int64) error {
	pkt := &codec.PlayerQuitGamePacket{Player: player, GameID: gameID}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("quit game failed: %s", result.Code)
	}
	a.mu.Lock()
	if rec, ok := a.games[gameID]; ok {
		rec.Players = removeUUID(rec.Players, player)
		rec.Playing = removeUUID(rec.Playing, player)
		a.games[gameID] = rec
	}
	a.mu.Unlock()
	return nil
}

// QueuePlayer asks the controller to route a player somewhere else. The
// call returns when the queue run finishes, which can take several stages.
func (a *Agent) QueuePlayer(ctx context.Context, player uuid.UUID, reason, queueType string) error {
	pkt := &codec.QueueRequestPacket{Player: player, Reason: reason, QueueType: queueType}
	pending, err := a.requests.Request(queueTimeout)
	if err != nil {
		return err
	}
	pkt.ReqID = pending.ID()
	if err := a.client.SendToController(pkt); err != nil {
		a.requests.Resolve(pending.ID(), codec.Fail(codec.ResultControllerDisconnected))
		return err
	}
	result, err := pending.Wait(ctx)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("queue request failed: %s", result.Code)
	}
	return nil
}

const queueTimeout = 70 * request.DefaultTimeout

// SendMessage routes a message to a player wherever they currently are.
func (a *Agent) SendMessage(player uuid.UUID, message string) error {
	return a.client.SendToController(&codec.SendMessagePacket{Player: player, Message: message})
}

// --- network information ---

func (a *Agent) NetworkPlayers(ctx context.Context) ([]records.PlayerRecord, error) {
	pkt := &codec.RequestPlayersPacket{}
	return awaitList[records.PlayerRecord](ctx, a, pkt, &pkt.ReqID)
}

func (a *Agent) NetworkGames(ctx context.Context) ([]records.GameRecord, error) {
	pkt := &codec.RequestGamesPacket{}
	return awaitList[records.GameRecord](ctx, a, pkt, &pkt.ReqID)
}

func (a *Agent) NetworkInstances(ctx context.Context) ([]records.InstanceRecord, error) {
	pkt := &codec.RequestInstancesPacket{}
	return awaitList[records.InstanceRecord](ctx, a, pkt, &pkt.ReqID)
}

func awaitList[T any](ctx context.Context, a *Agent, p codec.Packet, reqID *int64) ([]T, error) {
	result, err := a.roundTrip(ctx, p, reqID)
	if err != nil {
		return nil, err
	}
	if !result.IsOK() {
		return nil, fmt.Errorf("information request failed: %s", result.Code)
	}
	var list []T
	if err := json.Unmarshal(result.Data, &list); err != nil {
		return nil, err
	}
	return list, nil
}
