package edge

import (
	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/records"
)

// Platform is the game server the agent runs inside. The agent drives the
// controller connection; the platform does everything player-facing.
type Platform interface {
	// HandleJoin admits a player the controller routed here. The returned
	// string is a result code; anything other than "OK" rejects the join
	// and the controller moves on to another stage.
	HandleJoin(player records.PlayerRecord, gameID *int64, overrideSlots bool) string

	// HandleQueueFinished tells the platform a queue run for one of its
	// players ended without moving them. message may be empty.
	HandleQueueFinished(player uuid.UUID, message string)

	// DeliverMessage shows a chat or system message to a connected player.
	DeliverMessage(player uuid.UUID, message string)

	// DisconnectPlayer kicks a player off this server with the given
	// message, at the controller's request.
	DisconnectPlayer(player uuid.UUID, message string)

	// Connected and Disconnected bracket the controller session. The
	// platform typically pauses matchmaking while disconnected.
	Connected()
	Disconnected(err error)
}
