package records

import (
	"testing"

	"github.com/google/uuid"
)

func TestSlotStateSnapshotSharesNoBacking(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	s := SlotState{
		Reserved: []uuid.UUID{a},
		Online:   []uuid.UUID{a, b, c},
		Playing:  []uuid.UUID{c},
	}

	snap := s.Snapshot()

	// compact in place the way the agent drops a leaving player
	out := s.Online[:0]
	for _, v := range s.Online {
		if v != b {
			out = append(out, v)
		}
	}
	s.Online = out
	s.Reserved = append(s.Reserved, b)

	if len(snap.Online) != 3 || snap.Online[1] != b {
		t.Errorf("snapshot online changed under compaction: %v", snap.Online)
	}
	if len(snap.Reserved) != 1 {
		t.Errorf("snapshot reserved changed under append: %v", snap.Reserved)
	}
	if len(snap.Playing) != 1 || snap.Playing[0] != c {
		t.Errorf("snapshot playing = %v", snap.Playing)
	}
}

func TestSlotStateJoinable(t *testing.T) {
	s := SlotState{OnlineJoinable: true, MaxOnlineSlots: 3}
	s.Online = []uuid.UUID{uuid.New()}
	s.Reserved = []uuid.UUID{uuid.New()}

	if !s.Joinable(1) {
		t.Error("one free slot refused")
	}
	if s.Joinable(2) {
		t.Error("overcommit accepted")
	}

	s.OnlineJoinable = false
	if s.Joinable(1) {
		t.Error("closed tier accepted")
	}

	unbounded := SlotState{OnlineJoinable: true}
	if !unbounded.Joinable(100) {
		t.Error("unbounded tier refused")
	}
}
