// Package records holds the plain data snapshots exchanged between the
// controller and its instances. A record is a point-in-time copy: holding
// one never implies the remote state is still current.
package records

import "github.com/google/uuid"

type PlayerState string

const (
	StateOffline  PlayerState = "offline"
	StateQueued   PlayerState = "queued"
	StateInstance PlayerState = "instance"
	StateGame     PlayerState = "game"
)

type PlayerRecord struct {
	UUID        uuid.UUID   `json:"uuid"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName,omitempty"`
	Locale      string      `json:"locale,omitempty"`
	InstanceID  string      `json:"instanceId,omitempty"`
	GameID      int64       `json:"gameId,omitempty"`
	PartyID     int64       `json:"partyId,omitempty"`
	State       PlayerState `json:"state"`
	QueueType   string      `json:"queueType,omitempty"`
}

type PartyRecord struct {
	PartyID       int64       `json:"partyId"`
	Owner         uuid.UUID   `json:"owner"`
	Players       []uuid.UUID `json:"players"`
	Invitations   []uuid.UUID `json:"invitations,omitempty"`
	InviteOnly    bool        `json:"invitationsOnly"`
	CreationStamp int64       `json:"creationStamp"`
}

// SlotState captures the occupancy and join rules shared by instances and
// games: who is reserved, connected, or actively playing, and whether each
// tier accepts or may evict players.
type SlotState struct {
	Reserved []uuid.UUID `json:"reserved"`
	Online   []uuid.UUID `json:"online"`
	Players  []uuid.UUID `json:"players"`
	Playing  []uuid.UUID `json:"playing"`

	OnlineJoinable  bool `json:"onlineJoinable"`
	PlayersJoinable bool `json:"playersJoinable"`
	PlayingJoinable bool `json:"playingJoinable"`

	MaxOnlineSlots  int `json:"maxOnlineSlots"`
	MaxPlayersSlots int `json:"maxPlayersSlots"`
	MaxPlayingSlots int `json:"maxPlayingSlots"`

	OnlineKickable  bool `json:"onlineKickable"`
	PlayersKickable bool `json:"playersKickable"`
	PlayingKickable bool `json:"playingKickable"`
}

type InstanceRecord struct {
	ID              string  `json:"id"`
	GameAddress     string  `json:"gameAddress"`
	GameAddressPort int     `json:"gameAddressPort"`
	Type            string  `json:"type"`
	Private         bool    `json:"isPrivate"`
	Load            float64 `json:"load,omitempty"`
	SlotState
}

type GameRecord struct {
	GameID     int64  `json:"gameId"`
	InstanceID string `json:"instanceId"`
	GameType   string `json:"gameType"`
	GameMode   string `json:"gameMode,omitempty"`
	GameMap    string `json:"gameMap,omitempty"`
	GameState  string `json:"gameState,omitempty"`
	SlotState
}

// Snapshot returns a copy whose slot lists share no backing arrays with s,
// so it stays safe to marshal while s keeps mutating under its owner's lock.
func (s *SlotState) Snapshot() SlotState {
	out := *s
	out.Reserved = append([]uuid.UUID(nil), s.Reserved...)
	out.Online = append([]uuid.UUID(nil), s.Online...)
	out.Players = append([]uuid.UUID(nil), s.Players...)
	out.Playing = append([]uuid.UUID(nil), s.Playing...)
	return out
}

// Joinable reports whether the online tier can take count more players.
func (s *SlotState) Joinable(count int) bool {
	if !s.OnlineJoinable {
		return false
	}
	if s.MaxOnlineSlots <= 0 {
		return true
	}
	return len(s.Online)+len(s.Reserved)+count <= s.MaxOnlineSlots
}
