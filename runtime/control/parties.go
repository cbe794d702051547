package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
	"github.com/lahuca/lane/framework/replicate"
)

// PartyObjectType tags party snapshots in replication packets.
const PartyObjectType = "party"

// Party is the authoritative party object. All state changes happen here on
// the controller; instance-side replicas only mirror the record.
type Party struct {
	mu     sync.Mutex
	record records.PartyRecord
	auth   *replicate.Authoritative[records.PartyRecord]
}

// Record returns a snapshot copy.
func (p *Party) Record() records.PartyRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Party) snapshotLocked() records.PartyRecord {
	rec := p.record
	rec.Players = append([]uuid.UUID(nil), p.record.Players...)
	rec.Invitations = append([]uuid.UUID(nil), p.record.Invitations...)
	return rec
}

// mutate applies fn under the party lock; when fn reports OK the new
// snapshot fans out to subscribers. Fan-out is independent of the caller's
// response and cannot fail it.
func (p *Party) mutate(fn func(rec *records.PartyRecord) string) string {
	p.mu.Lock()
	code := fn(&p.record)
	var snapshot records.PartyRecord
	if code == codec.ResultOK {
		snapshot = p.snapshotLocked()
	}
	p.mu.Unlock()
	if code == codec.ResultOK {
		p.auth.PushUpdate(snapshot)
	}
	return code
}

// PartyManager owns every live party.
type PartyManager struct {
	nextID  atomic.Int64
	sender  replicate.Sender
	mu      sync.RWMutex
	parties map[int64]*Party
}

func NewPartyManager(sender replicate.Sender) *PartyManager {
	return &PartyManager{sender: sender, parties: make(map[int64]*Party)}
}

func (m *PartyManager) Get(id int64) (*Party, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[id]
	return p, ok
}

// Create starts a new party owned by owner.
func (m *PartyManager) Create(owner uuid.UUID) *Party {
	id := m.nextID.Add(1)
	p := &Party{
		record: records.PartyRecord{
			PartyID:       id,
			Owner:         owner,
			Players:       []uuid.UUID{owner},
			CreationStamp: time.Now().UnixMilli(),
		},
		auth: replicate.NewAuthoritative[records.PartyRecord](PartyObjectType, id, m.sender),
	}
	m.mu.Lock()
	m.parties[id] = p
	m.mu.Unlock()
	return p
}

func (m *PartyManager) SetInvitationsOnly(actor uuid.UUID, partyID int64, only bool) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	return p.mutate(func(rec *records.PartyRecord) string {
		if rec.Owner != actor {
			return codec.ResultInsufficientRights
		}
		rec.InviteOnly = only
		return codec.ResultOK
	})
}

func (m *PartyManager) HasInvitation(partyID int64, player uuid.UUID) (bool, string) {
	p, ok := m.Get(partyID)
	if !ok {
		return false, codec.ResultInvalidID
	}
	rec := p.Record()
	return contains(rec.Invitations, player), codec.ResultOK
}

// AddInvitation invites player. A partyID of zero creates a fresh party
// owned by the actor first.
func (m *PartyManager) AddInvitation(actor uuid.UUID, partyID int64, player uuid.UUID) (int64, string) {
	var p *Party
	if partyID == 0 {
		p = m.Create(actor)
		partyID = p.Record().PartyID
	} else {
		var ok bool
		p, ok = m.Get(partyID)
		if !ok {
			return 0, codec.ResultInvalidID
		}
	}
	code := p.mutate(func(rec *records.PartyRecord) string {
		if rec.Owner != actor && (rec.InviteOnly || !contains(rec.Players, actor)) {
			return codec.ResultInsufficientRights
		}
		if contains(rec.Players, player) {
			return codec.ResultIllegalState
		}
		if !contains(rec.Invitations, player) {
			rec.Invitations = append(rec.Invitations, player)
		}
		return codec.ResultOK
	})
	return partyID, code
}

func (m *PartyManager) AcceptInvitation(partyID int64, player uuid.UUID) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	return p.mutate(func(rec *records.PartyRecord) string {
		if !contains(rec.Invitations, player) {
			return codec.ResultIllegalState
		}
		rec.Invitations = remove(rec.Invitations, player)
		rec.Players = append(rec.Players, player)
		return codec.ResultOK
	})
}

func (m *PartyManager) DenyInvitation(partyID int64, player uuid.UUID) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	return p.mutate(func(rec *records.PartyRecord) string {
		if !contains(rec.Invitations, player) {
			return codec.ResultIllegalState
		}
		rec.Invitations = remove(rec.Invitations, player)
		return codec.ResultOK
	})
}

// JoinPlayer adds player directly; an invitation-only party requires a
// pending invitation.
func (m *PartyManager) JoinPlayer(partyID int64, player uuid.UUID) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	return p.mutate(func(rec *records.PartyRecord) string {
		if contains(rec.Players, player) {
			return codec.ResultIllegalState
		}
		if rec.InviteOnly && !contains(rec.Invitations, player) {
			return codec.ResultInsufficientRights
		}
		rec.Invitations = remove(rec.Invitations, player)
		rec.Players = append(rec.Players, player)
		return codec.ResultOK
	})
}

// RemovePlayer removes player; allowed for the owner or the player
// themselves. Removing the last player disbands the party.
func (m *PartyManager) RemovePlayer(actor uuid.UUID, partyID int64, player uuid.UUID) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	code := p.mutate(func(rec *records.PartyRecord) string {
		if actor != rec.Owner && actor != player {
			return codec.ResultInsufficientRights
		}
		if !contains(rec.Players, player) {
			return codec.ResultInvalidPlayer
		}
		rec.Players = remove(rec.Players, player)
		if player == rec.Owner && len(rec.Players) > 0 {
			rec.Owner = rec.Players[0]
		}
		return codec.ResultOK
	})
	if code == codec.ResultOK {
		if rec := p.Record(); len(rec.Players) == 0 {
			m.Disband(rec.Owner, partyID)
		}
	}
	return code
}

// Disband destroys the party and tells every replica via a replicated
// remove.
func (m *PartyManager) Disband(actor uuid.UUID, partyID int64) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	p.mu.Lock()
	empty := len(p.record.Players) == 0
	if p.record.Owner != actor && !empty {
		p.mu.Unlock()
		return codec.ResultInsufficientRights
	}
	p.mu.Unlock()

	m.mu.Lock()
	delete(m.parties, partyID)
	m.mu.Unlock()
	p.auth.PushRemove()
	return codec.ResultOK
}

func (m *PartyManager) SetOwner(actor uuid.UUID, partyID int64, owner uuid.UUID) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	return p.mutate(func(rec *records.PartyRecord) string {
		if rec.Owner != actor {
			return codec.ResultInsufficientRights
		}
		if !contains(rec.Players, owner) {
			return codec.ResultInvalidPlayer
		}
		rec.Owner = owner
		return codec.ResultOK
	})
}

// Members returns the party's players; used by warp and join-together.
func (m *PartyManager) Members(partyID int64) ([]uuid.UUID, bool) {
	p, ok := m.Get(partyID)
	if !ok {
		return nil, false
	}
	return p.Record().Players, true
}

// Subscribe registers subscriberID for the party's replication updates and
// returns the current snapshot for the initial sync.
func (m *PartyManager) Subscribe(subscriberID string, partyID int64) (records.PartyRecord, string) {
	p, ok := m.Get(partyID)
	if !ok {
		return records.PartyRecord{}, codec.ResultInvalidID
	}
	p.auth.Subscribe(subscriberID)
	return p.Record(), codec.ResultOK
}

func (m *PartyManager) Unsubscribe(subscriberID string, partyID int64) string {
	p, ok := m.Get(partyID)
	if !ok {
		return codec.ResultInvalidID
	}
	p.auth.Unsubscribe(subscriberID)
	return codec.ResultOK
}

// UnsubscribeAll drops the subscriber from every party, used on instance
// disconnect.
func (m *PartyManager) UnsubscribeAll(subscriberID string) {
	m.mu.RLock()
	parties := make([]*Party, 0, len(m.parties))
	for _, p := range m.parties {
		parties = append(parties, p)
	}
	m.mu.RUnlock()
	for _, p := range parties {
		p.auth.Unsubscribe(subscriberID)
	}
}

func (m *PartyManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.parties)
}

func contains(list []uuid.UUID, id uuid.UUID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
