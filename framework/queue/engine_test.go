package queue

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

// scriptHost replays canned attempt results and records every callback.
type scriptHost struct {
	results []StageResult

	instanceID string
	gameID     *int64
	queueType  string

	attempts     []Target
	placed       *Target
	switched     *Target
	closed       bool
	disconnected bool
	closeMessage string
}

func (h *scriptHost) Attempt(_ context.Context, _ *Request, target Target, _ []uuid.UUID) (StageResult, bool) {
	h.attempts = append(h.attempts, target)
	result := h.results[0]
	h.results = h.results[1:]
	return result, result == StageOK
}

func (h *scriptHost) Location(uuid.UUID) (string, *int64, string) {
	return h.instanceID, h.gameID, h.queueType
}

func (h *scriptHost) Placed(_ *Request, target Target) {
	h.placed = &target
}

func (h *scriptHost) SwitchQueueType(_ *Request, target Target) {
	h.switched = &target
}

func (h *scriptHost) Closed(_ *Request, disconnect bool, message string) {
	h.closed = true
	h.disconnected = disconnect
	h.closeMessage = message
}

func TestRunRetriesUntilAccepted(t *testing.T) {
	host := &scriptHost{results: []StageResult{StageNotJoinable, StageOK}}
	req := NewRequest(uuid.New(), ReasonNetworkJoin, "lobby")

	policy := PolicyFunc(func(_ context.Context, r *Request) Decision {
		if r.TriedInstance("a") {
			return JoinInstance("b")
		}
		return JoinInstance("a")
	})

	outcome := Run(context.Background(), req, policy, host)
	if outcome.State != StateStageSucceeded {
		t.Fatalf("state = %s", outcome.State)
	}
	if outcome.Target.InstanceID != "b" {
		t.Errorf("target = %q, want b", outcome.Target.InstanceID)
	}
	stages := req.Stages()
	if len(stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(stages))
	}
	if stages[0].Result != StageNotJoinable || stages[0].InstanceID != "a" {
		t.Errorf("first stage = %+v", stages[0])
	}
	if stages[1].Result != StageOK || stages[1].InstanceID != "b" {
		t.Errorf("second stage = %+v", stages[1])
	}
	if host.placed == nil || host.placed.InstanceID != "b" {
		t.Error("placement must commit the accepted target")
	}
}

func TestRunNoneKeepsPlayer(t *testing.T) {
	host := &scriptHost{}
	req := NewRequest(uuid.New(), ReasonPluginController, "")

	outcome := Run(context.Background(), req, PolicyFunc(func(context.Context, *Request) Decision {
		return None("nowhere to go")
	}), host)

	if outcome.State != StateAbandoned {
		t.Fatalf("state = %s", outcome.State)
	}
	if !host.closed || host.disconnected {
		t.Error("None must close without disconnecting")
	}
	if host.closeMessage != "nowhere to go" {
		t.Errorf("message = %q", host.closeMessage)
	}
}

func TestRunDisconnect(t *testing.T) {
	host := &scriptHost{}
	req := NewRequest(uuid.New(), ReasonNetworkJoin, "")

	outcome := Run(context.Background(), req, PolicyFunc(func(context.Context, *Request) Decision {
		return Disconnect("no server available")
	}), host)

	if outcome.State != StateAbandoned {
		t.Fatalf("state = %s", outcome.State)
	}
	if !host.disconnected {
		t.Error("Disconnect must remove the player")
	}
}

func TestRunSameLocationSameTypeIsNoop(t *testing.T) {
	host := &scriptHost{instanceID: "a", queueType: "lobby"}
	req := NewRequest(uuid.New(), ReasonPluginInstance, "lobby")

	outcome := Run(context.Background(), req, PolicyFunc(func(context.Context, *Request) Decision {
		return JoinInstance("a")
	}), host)

	if outcome.State != StateStageSucceeded {
		t.Fatalf("state = %s", outcome.State)
	}
	if len(host.attempts) != 0 {
		t.Error("no wire attempt for a no-op")
	}
	if host.placed != nil || host.switched != nil {
		t.Error("no-op must not touch placement")
	}
}

func TestRunSameLocationNewTypeSwitches(t *testing.T) {
	host := &scriptHost{instanceID: "a", queueType: "lobby"}
	req := NewRequest(uuid.New(), ReasonPluginInstance, "duels")

	outcome := Run(context.Background(), req, PolicyFunc(func(context.Context, *Request) Decision {
		return JoinInstance("a")
	}), host)

	if outcome.State != StateStageSucceeded {
		t.Fatalf("state = %s", outcome.State)
	}
	if host.switched == nil {
		t.Fatal("queue type switch not signaled")
	}
	if len(host.attempts) != 0 {
		t.Error("switching type in place needs no join attempt")
	}
}

func TestRunJoinGameTargets(t *testing.T) {
	host := &scriptHost{results: []StageResult{StageOK}}
	req := NewRequest(uuid.New(), ReasonPluginController, "")

	outcome := Run(context.Background(), req, PolicyFunc(func(context.Context, *Request) Decision {
		return JoinGame(7)
	}), host)

	if outcome.State != StateStageSucceeded {
		t.Fatalf("state = %s", outcome.State)
	}
	if outcome.Target.GameID == nil || *outcome.Target.GameID != 7 {
		t.Errorf("target game = %v", outcome.Target.GameID)
	}
	if !req.TriedGame(7) {
		t.Error("stage history must record the game")
	}
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	host := &scriptHost{}
	req := NewRequest(uuid.New(), ReasonNetworkJoin, "")
	outcome := Run(ctx, req, PolicyFunc(func(context.Context, *Request) Decision {
		t.Fatal("policy must not run after cancel")
		return None("")
	}), host)

	if outcome.State != StateAbandoned {
		t.Fatalf("state = %s", outcome.State)
	}
}

func TestRequestHistory(t *testing.T) {
	req := NewRequest(uuid.New(), ReasonServerKicked, "")
	if !req.IsInitialRequest() {
		t.Error("fresh request must be initial")
	}
	req.AddStage(Stage{Result: StageNoResponse, InstanceID: "a"})
	if req.IsInitialRequest() {
		t.Error("request with history is not initial")
	}
	first, ok := req.FirstStage()
	if !ok || first.InstanceID != "a" {
		t.Errorf("first stage = %+v, %v", first, ok)
	}
	req.AddStage(Stage{Result: StageOK, InstanceID: "b"})
	last, ok := req.LastStage()
	if !ok || last.InstanceID != "b" {
		t.Errorf("last stage = %+v, %v", last, ok)
	}
	if !req.TriedInstance("a") || req.TriedInstance("c") {
		t.Error("tried-instance bookkeeping wrong")
	}
}
