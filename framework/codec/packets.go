package codec

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/datastore"
	"github.com/lahuca/lane/framework/records"
)

// Packet type ids. These are the wire contract; renaming one is a protocol
// break for every connected node.
const (
	IDConnectionConnect         = "connectionConnect"
	IDConnectionKeepAlive       = "connectionKeepAlive"
	IDConnectionKeepAliveResult = "connectionKeepAliveResult"

	IDDataObjectRead    = "dataObjectRead"
	IDDataObjectWrite   = "dataObjectWrite"
	IDDataObjectRemove  = "dataObjectRemove"
	IDDataObjectListIds = "dataObjectListIds"
	IDDataObjectsList   = "dataObjectsList"
	IDDataObjectResult  = "dataObjectResult"

	IDSavedLocaleGet = "savedLocaleGet"
	IDSavedLocaleSet = "savedLocaleSet"

	IDInstanceJoin         = "instanceJoin"
	IDInstanceStatusUpdate = "instanceStatusUpdate"
	IDInstanceUpdatePlayer = "instanceUpdatePlayer"
	IDInstanceDisconnect   = "instanceDisconnect"
	IDGameStatusUpdate     = "gameStatusUpdate"

	IDQueueRequest   = "queueRequestPacket"
	IDQueueFinished  = "queueFinished"
	IDPlayerJoinGame = "playerJoinGame"
	IDPlayerQuitGame = "playerQuitGame"

	IDRequestPlayers   = "requestInformationPacket.players"
	IDRequestGames     = "requestInformationPacket.games"
	IDRequestInstances = "requestInformationPacket.instances"

	IDRequestParty  = "requestParty"
	IDResponseParty = "responseParty"

	IDSendMessage  = "sendMessage"
	IDSimpleResult = "simpleResult"
	IDLongResult   = "longResult"

	IDPartySetInvitationsOnly = "partySetInvitationsOnly"
	IDPartyHasInvitation      = "partyHasInvitation"
	IDPartyAddInvitation      = "partyAddInvitation"
	IDPartyAcceptInvitation   = "partyAcceptInvitation"
	IDPartyDenyInvitation     = "partyDenyInvitation"
	IDPartyJoinPlayer         = "partyJoinPlayer"
	IDPartyRemovePlayer       = "partyRemovePlayer"
	IDPartyDisband            = "partyDisband"
	IDPartySetOwner           = "partySetOwner"
	IDPartyWarp               = "partyWarp"

	IDReplicatedUpdate      = "replicatedUpdate"
	IDReplicatedRemove      = "replicatedRemove"
	IDReplicatedSubscribe   = "replicatedSubscribe"
	IDReplicatedUnsubscribe = "replicatedUnsubscribe"
)

type requestBase struct {
	ReqID int64 `json:"requestId"`
}

func (r requestBase) RequestID() int64 { return r.ReqID }

// --- connection ---

// ConnectionConnectPacket announces the peer's identity on a fresh
// connection. Token is only checked when the controller runs with jwt auth.
type ConnectionConnectPacket struct {
	requestBase
	ID    string `json:"id"`
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

func (p *ConnectionConnectPacket) PacketID() string { return IDConnectionConnect }

type ConnectionKeepAlivePacket struct {
	requestBase
}

func (p *ConnectionKeepAlivePacket) PacketID() string { return IDConnectionKeepAlive }

type ConnectionKeepAliveResultPacket struct {
	requestBase
}

func (p *ConnectionKeepAliveResultPacket) PacketID() string { return IDConnectionKeepAliveResult }
func (p *ConnectionKeepAliveResultPacket) Response() Result { return OK(nil) }

// --- data objects ---

type DataObjectReadPacket struct {
	requestBase
	Permission string             `json:"permission"`
	ID         datastore.ObjectID `json:"id"`
}

func (p *DataObjectReadPacket) PacketID() string { return IDDataObjectRead }

type DataObjectWritePacket struct {
	requestBase
	Permission string               `json:"permission"`
	Object     datastore.DataObject `json:"object"`
}

func (p *DataObjectWritePacket) PacketID() string { return IDDataObjectWrite }

type DataObjectRemovePacket struct {
	requestBase
	Permission string             `json:"permission"`
	ID         datastore.ObjectID `json:"id"`
}

func (p *DataObjectRemovePacket) PacketID() string { return IDDataObjectRemove }

type DataObjectListIdsPacket struct {
	requestBase
	Permission string                  `json:"permission"`
	Relational *datastore.RelationalID `json:"relational,omitempty"`
	Prefix     string                  `json:"prefix,omitempty"`
}

func (p *DataObjectListIdsPacket) PacketID() string { return IDDataObjectListIds }

type DataObjectsListPacket struct {
	requestBase
	Permission string                  `json:"permission"`
	Relational *datastore.RelationalID `json:"relational,omitempty"`
	Prefix     string                  `json:"prefix,omitempty"`
}

func (p *DataObjectsListPacket) PacketID() string { return IDDataObjectsList }

type DataObjectResultPacket struct {
	requestBase
	Result Result `json:"result"`
}

func (p *DataObjectResultPacket) PacketID() string { return IDDataObjectResult }
func (p *DataObjectResultPacket) Response() Result { return p.Result }

// --- saved locale ---

type SavedLocaleGetPacket struct {
	requestBase
	Player uuid.UUID `json:"player"`
}

func (p *SavedLocaleGetPacket) PacketID() string { return IDSavedLocaleGet }

type SavedLocaleSetPacket struct {
	requestBase
	Player uuid.UUID `json:"player"`
	Locale string    `json:"locale"`
}

func (p *SavedLocaleSetPacket) PacketID() string { return IDSavedLocaleSet }

// --- instance and game state ---

// InstanceJoinPacket asks an instance to take a player. The instance
// answers with a simpleResult; only an OK answer moves the player's
// location of record on the controller.
type InstanceJoinPacket struct {
	requestBase
	Player        records.PlayerRecord `json:"player"`
	OverrideSlots bool                 `json:"overrideSlots"`
	GameID        *int64               `json:"gameId,omitempty"`
}

func (p *InstanceJoinPacket) PacketID() string { return IDInstanceJoin }

type InstanceStatusUpdatePacket struct {
	Record records.InstanceRecord `json:"record"`
}

func (p *InstanceStatusUpdatePacket) PacketID() string { return IDInstanceStatusUpdate }

type InstanceUpdatePlayerPacket struct {
	Player records.PlayerRecord `json:"player"`
}

func (p *InstanceUpdatePlayerPacket) PacketID() string { return IDInstanceUpdatePlayer }

type InstanceDisconnectPacket struct {
	Player  uuid.UUID `json:"player"`
	Message string    `json:"message,omitempty"`
}

func (p *InstanceDisconnectPacket) PacketID() string { return IDInstanceDisconnect }

// GameStatusUpdatePacket registers or updates a game. For a new game the
// controller assigns the id and returns it in a longResult.
type GameStatusUpdatePacket struct {
	requestBase
	Record records.GameRecord `json:"record"`
}

func (p *GameStatusUpdatePacket) PacketID() string { return IDGameStatusUpdate }

// --- queue ---

type QueueRequestPacket struct {
	requestBase
	Player    uuid.UUID `json:"player"`
	Reason    string    `json:"reason"`
	QueueType string    `json:"queueType,omitempty"`
}

func (p *QueueRequestPacket) PacketID() string { return IDQueueRequest }

type QueueFinishedPacket struct {
	Player  uuid.UUID `json:"player"`
	Message string    `json:"message,omitempty"`
}

func (p *QueueFinishedPacket) PacketID() string { return IDQueueFinished }

type PlayerJoinGamePacket struct {
	requestBase
	Player uuid.UUID `json:"player"`
	GameID int64     `json:"gameId"`
}

func (p *PlayerJoinGamePacket) PacketID() string { return IDPlayerJoinGame }

type PlayerQuitGamePacket struct {
	requestBase
	Player uuid.UUID `json:"player"`
	GameID int64     `json:"gameId"`
}

func (p *PlayerQuitGamePacket) PacketID() string { return IDPlayerQuitGame }

// --- information requests ---

type RequestPlayersPacket struct {
	requestBase
}

func (p *RequestPlayersPacket) PacketID() string { return IDRequestPlayers }

type RequestGamesPacket struct {
	requestBase
}

func (p *RequestGamesPacket) PacketID() string { return IDRequestGames }

type RequestInstancesPacket struct {
	requestBase
}

func (p *RequestInstancesPacket) PacketID() string { return IDRequestInstances }

// --- party ---

type RequestPartyPacket struct {
	requestBase
	PartyID int64 `json:"partyId"`
}

func (p *RequestPartyPacket) PacketID() string { return IDRequestParty }

type ResponsePartyPacket struct {
	requestBase
	Record *records.PartyRecord `json:"record,omitempty"`
}

func (p *ResponsePartyPacket) PacketID() string { return IDResponseParty }

func (p *ResponsePartyPacket) Response() Result {
	if p.Record == nil {
		return Fail(ResultInvalidID)
	}
	return OK(p.Record)
}

type PartySetInvitationsOnlyPacket struct {
	requestBase
	Actor           uuid.UUID `json:"actor"`
	PartyID         int64     `json:"partyId"`
	InvitationsOnly bool      `json:"invitationsOnly"`
}

func (p *PartySetInvitationsOnlyPacket) PacketID() string { return IDPartySetInvitationsOnly }

type PartyHasInvitationPacket struct {
	requestBase
	PartyID int64     `json:"partyId"`
	Player  uuid.UUID `json:"player"`
}

func (p *PartyHasInvitationPacket) PacketID() string { return IDPartyHasInvitation }

type PartyAddInvitationPacket struct {
	requestBase
	Actor   uuid.UUID `json:"actor"`
	PartyID int64     `json:"partyId"`
	Player  uuid.UUID `json:"player"`
}

func (p *PartyAddInvitationPacket) PacketID() string { return IDPartyAddInvitation }

type PartyAcceptInvitationPacket struct {
	requestBase
	PartyID int64     `json:"partyId"`
	Player  uuid.UUID `json:"player"`
}

func (p *PartyAcceptInvitationPacket) PacketID() string { return IDPartyAcceptInvitation }

type PartyDenyInvitationPacket struct {
	requestBase
	PartyID int64     `json:"partyId"`
	Player  uuid.UUID `json:"player"`
}

func (p *PartyDenyInvitationPacket) PacketID() string { return IDPartyDenyInvitation }

type PartyJoinPlayerPacket struct {
	requestBase
	PartyID int64     `json:"partyId"`
	Player  uuid.UUID `json:"player"`
}

func (p *PartyJoinPlayerPacket) PacketID() string { return IDPartyJoinPlayer }

type PartyRemovePlayerPacket struct {
	requestBase
	Actor   uuid.UUID `json:"actor"`
	PartyID int64     `json:"partyId"`
	Player  uuid.UUID `json:"player"`
}

func (p *PartyRemovePlayerPacket) PacketID() string { return IDPartyRemovePlayer }

type PartyDisbandPacket struct {
	requestBase
	Actor   uuid.UUID `json:"actor"`
	PartyID int64     `json:"partyId"`
}

func (p *PartyDisbandPacket) PacketID() string { return IDPartyDisband }

type PartySetOwnerPacket struct {
	requestBase
	Actor   uuid.UUID `json:"actor"`
	PartyID int64     `json:"partyId"`
	Owner   uuid.UUID `json:"owner"`
}

func (p *PartySetOwnerPacket) PacketID() string { return IDPartySetOwner }

type PartyWarpPacket struct {
	requestBase
	Actor   uuid.UUID `json:"actor"`
	PartyID int64     `json:"partyId"`
}

func (p *PartyWarpPacket) PacketID() string { return IDPartyWarp }

// --- messaging and generic results ---

type SendMessagePacket struct {
	Player  uuid.UUID `json:"player"`
	Message string    `json:"message"`
}

func (p *SendMessagePacket) PacketID() string { return IDSendMessage }

type SimpleResultPacket struct {
	requestBase
	Result Result `json:"result"`
}

func (p *SimpleResultPacket) PacketID() string { return IDSimpleResult }
func (p *SimpleResultPacket) Response() Result { return p.Result }

type LongResultPacket struct {
	requestBase
	Result Result `json:"result"`
	Value  int64  `json:"value"`
}

func (p *LongResultPacket) PacketID() string { return IDLongResult }

func (p *LongResultPacket) Response() Result {
	if p.Result.IsOK() {
		return OK(p.Value)
	}
	return p.Result
}

// --- replication ---

type ReplicatedSubscribePacket struct {
	requestBase
	ObjectType    string `json:"objectType"`
	ReplicationID int64  `json:"replicationId"`
}

func (p *ReplicatedSubscribePacket) PacketID() string { return IDReplicatedSubscribe }

type ReplicatedUnsubscribePacket struct {
	requestBase
	ObjectType    string `json:"objectType"`
	ReplicationID int64  `json:"replicationId"`
}

func (p *ReplicatedUnsubscribePacket) PacketID() string { return IDReplicatedUnsubscribe }

type ReplicatedUpdatePacket struct {
	ObjectType    string          `json:"objectType"`
	ReplicationID int64           `json:"replicationId"`
	Snapshot      json.RawMessage `json:"snapshot"`
}

func (p *ReplicatedUpdatePacket) PacketID() string { return IDReplicatedUpdate }

type ReplicatedRemovePacket struct {
	ObjectType    string `json:"objectType"`
	ReplicationID int64  `json:"replicationId"`
}

func (p *ReplicatedRemovePacket) PacketID() string { return IDReplicatedRemove }

// RegisterAll binds the full packet catalog onto reg. Both nodes call this
// once at startup; unknown ids still flow through as RawPackets.
func RegisterAll(reg *Registry) {
	reg.Register(IDConnectionConnect, &ConnectionConnectPacket{})
	reg.Register(IDConnectionKeepAlive, &ConnectionKeepAlivePacket{})
	reg.Register(IDConnectionKeepAliveResult, &ConnectionKeepAliveResultPacket{})
	reg.Register(IDDataObjectRead, &DataObjectReadPacket{})
	reg.Register(IDDataObjectWrite, &DataObjectWritePacket{})
	reg.Register(IDDataObjectRemove, &DataObjectRemovePacket{})
	reg.Register(IDDataObjectListIds, &DataObjectListIdsPacket{})
	reg.Register(IDDataObjectsList, &DataObjectsListPacket{})
	reg.Register(IDDataObjectResult, &DataObjectResultPacket{})
	reg.Register(IDSavedLocaleGet, &SavedLocaleGetPacket{})
	reg.Register(IDSavedLocaleSet, &SavedLocaleSetPacket{})
	reg.Register(IDInstanceJoin, &InstanceJoinPacket{})
	reg.Register(IDInstanceStatusUpdate, &InstanceStatusUpdatePacket{})
	reg.Register(IDInstanceUpdatePlayer, &InstanceUpdatePlayerPacket{})
	reg.Register(IDInstanceDisconnect, &InstanceDisconnectPacket{})
	reg.Register(IDGameStatusUpdate, &GameStatusUpdatePacket{})
	reg.Register(IDQueueRequest, &QueueRequestPacket{})
	reg.Register(IDQueueFinished, &QueueFinishedPacket{})
	reg.Register(IDPlayerJoinGame, &PlayerJoinGamePacket{})
	reg.Register(IDPlayerQuitGame, &PlayerQuitGamePacket{})
	reg.Register(IDRequestPlayers, &RequestPlayersPacket{})
	reg.Register(IDRequestGames, &RequestGamesPacket{})
	reg.Register(IDRequestInstances, &RequestInstancesPacket{})
	reg.Register(IDRequestParty, &RequestPartyPacket{})
	reg.Register(IDResponseParty, &ResponsePartyPacket{})
	reg.Register(IDSendMessage, &SendMessagePacket{})
	reg.Register(IDSimpleResult, &SimpleResultPacket{})
	reg.Register(IDLongResult, &LongResultPacket{})
	reg.Register(IDPartySetInvitationsOnly, &PartySetInvitationsOnlyPacket{})
	reg.Register(IDPartyHasInvitation, &PartyHasInvitationPacket{})
	reg.Register(IDPartyAddInvitation, &PartyAddInvitationPacket{})
	reg.Register(IDPartyAcceptInvitation, &PartyAcceptInvitationPacket{})
	reg.Register(IDPartyDenyInvitation, &PartyDenyInvitationPacket{})
	reg.Register(IDPartyJoinPlayer, &PartyJoinPlayerPacket{})
	reg.Register(IDPartyRemovePlayer, &PartyRemovePlayerPacket{})
	reg.Register(IDPartyDisband, &PartyDisbandPacket{})
	reg.Register(IDPartySetOwner, &PartySetOwnerPacket{})
	reg.Register(IDPartyWarp, &PartyWarpPacket{})
	reg.Register(IDReplicatedUpdate, &ReplicatedUpdatePacket{})
	reg.Register(IDReplicatedRemove, &ReplicatedRemovePacket{})
	reg.Register(IDReplicatedSubscribe, &ReplicatedSubscribePacket{})
	reg.Register(IDReplicatedUnsubscribe, &ReplicatedUnsubscribePacket{})
}
