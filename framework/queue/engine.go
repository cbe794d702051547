package queue

import (
	"context"

	"github.com/google/uuid"
)

// State of a queue request as the engine drives it.
type State string

const (
	StateInitial         State = "initial"
	StateStageEvaluating State = "stageEvaluating"
	StateStagePending    State = "stagePending"
	StateStageSucceeded  State = "stageSucceeded"
	StateStageFailed     State = "stageFailed"
	StateAbandoned       State = "abandoned"
)

// DecisionKind is the tag of the policy decision sum type.
type DecisionKind int

const (
	DecisionNone DecisionKind = iota
	DecisionDisconnect
	DecisionJoinInstance
	DecisionJoinGame
)

// Decision is what policy returns for one evaluation. JoinTogether names
// players that should attempt the identical transition with the subject:
// dispatched together, each still evaluated independently by the target.
type Decision struct {
	Kind         DecisionKind
	Message      string
	InstanceID   string
	GameID       int64
	JoinTogether []uuid.UUID
}

func None(message string) Decision {
	return Decision{Kind: DecisionNone, Message: message}
}

func Disconnect(message string) Decision {
	return Decision{Kind: DecisionDisconnect, Message: message}
}

func JoinInstance(instanceID string, together ...uuid.UUID) Decision {
	return Decision{Kind: DecisionJoinInstance, InstanceID: instanceID, JoinTogether: together}
}

func JoinGame(gameID int64, together ...uuid.UUID) Decision {
	return Decision{Kind: DecisionJoinGame, GameID: gameID, JoinTogether: together}
}

// Policy decides the next target given the request's stage history. A bound
// on evaluate/fail loops is policy's responsibility; the engine enforces no
// stage cap.
type Policy interface {
	Evaluate(ctx context.Context, req *Request) Decision
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(ctx context.Context, req *Request) Decision

func (f PolicyFunc) Evaluate(ctx context.Context, req *Request) Decision {
	return f(ctx, req)
}

// Target is the chosen destination of one stage.
type Target struct {
	InstanceID string
	GameID     *int64
}

// Host is the surrounding system the engine calls into: attempting the move
// against a target, resolving current locations, and reacting to terminal
// outcomes. The controller runtime implements it over the wire.
type Host interface {
	// Attempt sends the move request and waits for the target's verdict.
	Attempt(ctx context.Context, req *Request, target Target, together []uuid.UUID) (StageResult, bool)
	// Location returns where the player currently is.
	Location(player uuid.UUID) (instanceID string, gameID *int64, queueType string)
	// Placed commits the confirmed location; the only point at which the
	// player's location of record changes.
	Placed(req *Request, target Target)
	// SwitchQueueType handles a same-location transition with a changed
	// queue type.
	SwitchQueueType(req *Request, target Target)
	// Closed reports a terminal outcome that keeps the player where they
	// are (None) or removes them (Disconnect). An empty message means keep
	// silent.
	Closed(req *Request, disconnect bool, message string)
}

// Outcome is the engine's terminal report for one request.
type Outcome struct {
	State   State
	Message string
	Target  Target
}

// Run drives the request to a terminal state: evaluate, attempt, record the
// stage, loop on failure. Failure reasons are normal control flow here, not
// errors.
func Run(ctx context.Context, req *Request, policy Policy, host Host) Outcome {
	for {
		if ctx.Err() != nil {
			return Outcome{State: StateAbandoned, Message: "canceled"}
		}

		decision := policy.Evaluate(ctx, req)
		switch decision.Kind {
		case DecisionNone:
			host.Closed(req, false, decision.Message)
			return Outcome{State: StateAbandoned, Message: decision.Message}

		case DecisionDisconnect:
			host.Closed(req, true, decision.Message)
			return Outcome{State: StateAbandoned, Message: decision.Message}

		case DecisionJoinInstance, DecisionJoinGame:
			target := Target{InstanceID: decision.InstanceID}
			if decision.Kind == DecisionJoinGame {
				gameID := decision.GameID
				target.GameID = &gameID
			}

			curInstance, curGame, curQueueType := host.Location(req.Player)
			if sameLocation(target, curInstance, curGame) {
				if curQueueType == req.QueueType {
					// Already fully there: no-op success, no churn.
					return Outcome{State: StateStageSucceeded, Target: target}
				}
				host.SwitchQueueType(req, target)
				return Outcome{State: StateStageSucceeded, Target: target}
			}

			result, ok := host.Attempt(ctx, req, target, decision.JoinTogether)
			req.AddStage(Stage{Result: result, InstanceID: target.InstanceID, GameID: target.GameID})
			if ok {
				host.Placed(req, target)
				return Outcome{State: StateStageSucceeded, Target: target}
			}
			// StageFailed: loop back into evaluation with the history.

		default:
			host.Closed(req, false, "")
			return Outcome{State: StateAbandoned}
		}
	}
}

func sameLocation(target Target, instanceID string, gameID *int64) bool {
	if target.GameID != nil {
		return gameID != nil && *gameID == *target.GameID
	}
	return target.InstanceID != "" && target.InstanceID == instanceID && gameID == nil
}
