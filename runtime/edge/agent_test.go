package edge

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
)

type quietPlatform struct{}

func (quietPlatform) HandleJoin(records.PlayerRecord, *int64, bool) string { return codec.ResultOK }
func (quietPlatform) HandleQueueFinished(uuid.UUID, string)                {}
func (quietPlatform) DeliverMessage(uuid.UUID, string)                     {}
func (quietPlatform) DisconnectPlayer(uuid.UUID, string)                   {}
func (quietPlatform) Connected()                                           {}
func (quietPlatform) Disconnected(error)                                   {}

func newTestAgent(t *testing.T) *Agent {
	t.Helper()
	conf := config.InstanceConfiguration{
		BaseConfig: config.BaseConfig{ID: "inst-test"},
		MaxSlots:   64,
	}
	conf.SocketConf.Addr = "127.0.0.1:0"
	conf.SocketConf.Insecure = true
	a, err := NewAgent(conf, quietPlatform{})
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	return a
}

// Status pushes marshal the slot state outside the agent mutex, so the
// record they carry must not share backing arrays with the live slot lists.
func TestStatusPushRacesSlotChurn(t *testing.T) {
	a := newTestAgent(t)
	defer a.Close()

	players := make([]uuid.UUID, 8)
	for i := range players {
		players[i] = uuid.New()
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			for _, p := range players {
				a.PlayerOnline(p)
			}
			for _, p := range players {
				a.PlayerOffline(p)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 400; i++ {
			a.PushStatus()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 400; i++ {
			a.SetJoinable(i%2 == 0)
		}
	}()
	wg.Wait()

	online, playing, maxSlots := a.occupancy()
	if online != 0 || playing != 0 {
		t.Errorf("occupancy after churn = %d online, %d playing", online, playing)
	}
	if maxSlots != 64 {
		t.Errorf("max slots = %d", maxSlots)
	}
}

func TestPlayerTierTransitions(t *testing.T) {
	a := newTestAgent(t)
	defer a.Close()

	p := uuid.New()
	a.mu.Lock()
	a.slots.Reserved = append(a.slots.Reserved, p)
	a.mu.Unlock()

	a.PlayerOnline(p)
	a.mu.Lock()
	reserved, online := len(a.slots.Reserved), len(a.slots.Online)
	a.mu.Unlock()
	if reserved != 0 || online != 1 {
		t.Fatalf("after online: %d reserved, %d online", reserved, online)
	}

	// going online twice must not duplicate the entry
	a.PlayerOnline(p)
	a.mu.Lock()
	online = len(a.slots.Online)
	a.mu.Unlock()
	if online != 1 {
		t.Fatalf("duplicate online entry: %d", online)
	}

	a.PlayerOffline(p)
	online, playing, _ := a.occupancy()
	if online != 0 || playing != 0 {
		t.Errorf("after offline: %d online, %d playing", online, playing)
	}
}
