package control

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/queue"
)

// maxStages bounds the evaluate/fail loop. The engine itself enforces no
// cap; this is the policy-layer bound.
const maxStages = 8

// DefaultQueuePolicy is the controller's stock routing policy: try the
// least-loaded joinable instance of the requested type, skip anything the
// stage history already tried, and carry the subject's party along on
// network joins.
type DefaultQueuePolicy struct {
	c *Controller

	// Together is the fixed companion set for group moves like party warp;
	// nil derives it from the player's party on network joins.
	Together []uuid.UUID
}

func (p *DefaultQueuePolicy) Evaluate(_ context.Context, req *queue.Request) queue.Decision {
	if len(req.Stages()) >= maxStages {
		return p.exhausted(req)
	}

	candidates := p.candidates(req)
	if len(candidates) == 0 {
		return p.exhausted(req)
	}

	together := p.Together
	if together == nil && req.Reason == queue.ReasonNetworkJoin {
		together = p.partyOf(req.Player)
	}
	return queue.JoinInstance(candidates[0], together...)
}

// candidates returns untried, joinable, public instances of the requested
// type ordered by reported load.
func (p *DefaultQueuePolicy) candidates(req *queue.Request) []string {
	needed := 1
	if req.Reason == queue.ReasonPartyJoin {
		needed += len(p.Together)
	}
	var out []string
	loads := make(map[string]float64)
	for _, inst := range p.c.Instances.List() {
		if inst.Private {
			continue
		}
		if req.QueueType != "" && inst.Type != req.QueueType {
			continue
		}
		if req.TriedInstance(inst.ID) {
			continue
		}
		if !inst.Joinable(needed) {
			continue
		}
		out = append(out, inst.ID)
		loads[inst.ID] = inst.Load
	}
	sort.Slice(out, func(i, j int) bool { return loads[out[i]] < loads[out[j]] })
	return out
}

func (p *DefaultQueuePolicy) partyOf(player uuid.UUID) []uuid.UUID {
	rec, ok := p.c.Players.Get(player)
	if !ok || rec.PartyID == 0 {
		return nil
	}
	members, ok := p.c.Parties.Members(rec.PartyID)
	if !ok {
		return nil
	}
	return members
}

// exhausted picks the terminal outcome when no target remains. A player
// first entering the network has nowhere to stay, so they disconnect;
// anyone already placed keeps their current location.
func (p *DefaultQueuePolicy) exhausted(req *queue.Request) queue.Decision {
	if req.Reason == queue.ReasonNetworkJoin || req.Reason == queue.ReasonServerKicked {
		return queue.Disconnect("No server available.")
	}
	return queue.None("No destination available.")
}
