// Package queue implements the routing state machine that places a player
// somewhere on the network, one attempted stage at a time.
package queue

import (
	"sync"

	"github.com/google/uuid"
)

// StageResult explains the outcome of one placement attempt. StageOK marks
// the confirming stage; the rest are failure reasons fed back into the next
// policy evaluation.
type StageResult string

const (
	StageOK                StageResult = "OK"
	StageUnknownID         StageResult = "UNKNOWN_ID"
	StageNotJoinable       StageResult = "NOT_JOINABLE"
	StageNoResponse        StageResult = "NO_RESPONSE"
	StageJoinDenied        StageResult = "JOIN_DENIED"
	StageServerUnavailable StageResult = "SERVER_UNAVAILABLE"
	StageInvalidState      StageResult = "INVALID_STATE"
)

// RequestReason records why the routing operation started.
type RequestReason string

const (
	ReasonPluginController RequestReason = "PLUGIN_CONTROLLER"
	ReasonPluginInstance   RequestReason = "PLUGIN_INSTANCE"
	ReasonNetworkJoin      RequestReason = "NETWORK_JOIN"
	ReasonPartyJoin        RequestReason = "PARTY_JOIN"
	ReasonServerKicked     RequestReason = "SERVER_KICKED"
	ReasonGameShutdown     RequestReason = "GAME_SHUTDOWN"
	ReasonGameQuit         RequestReason = "GAME_QUIT"
)

// Stage is one attempted placement, immutable once appended.
type Stage struct {
	Result     StageResult `json:"result"`
	InstanceID string      `json:"instanceId,omitempty"`
	GameID     *int64      `json:"gameId,omitempty"`
}

// Request accumulates the ordered stage history of one routing operation.
// It lives only until the player is placed or the queue is abandoned.
type Request struct {
	Player     uuid.UUID     `json:"player"`
	Reason     RequestReason `json:"reason"`
	QueueType  string        `json:"queueType,omitempty"`
	Parameters []string      `json:"parameters,omitempty"`

	mu     sync.Mutex
	stages []Stage
}

func NewRequest(player uuid.UUID, reason RequestReason, queueType string) *Request {
	return &Request{Player: player, Reason: reason, QueueType: queueType}
}

// IsInitialRequest reports that no attempt has been made yet; it drives the
// initial policy evaluation branch.
func (r *Request) IsInitialRequest() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stages) == 0
}

func (r *Request) FirstStage() (Stage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stages) == 0 {
		return Stage{}, false
	}
	return r.stages[0], true
}

func (r *Request) LastStage() (Stage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stages) == 0 {
		return Stage{}, false
	}
	return r.stages[len(r.stages)-1], true
}

func (r *Request) Stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.stages))
	copy(out, r.stages)
	return out
}

func (r *Request) AddStage(s Stage) {
	r.mu.Lock()
	r.stages = append(r.stages, s)
	r.mu.Unlock()
}

// TriedInstance reports whether a previous stage already targeted the
// instance, letting policy avoid repeating a failed target.
func (r *Request) TriedInstance(instanceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stages {
		if s.InstanceID == instanceID && s.GameID == nil {
			return true
		}
	}
	return false
}

func (r *Request) TriedGame(gameID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.stages {
		if s.GameID != nil && *s.GameID == gameID {
			return true
		}
	}
	return false
}
