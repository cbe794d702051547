package edge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lahuca/lane/common/config"
	"github.com/lahuca/lane/common/discovery"
	"github.com/lahuca/lane/common/jwts"
	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/records"
	"github.com/lahuca/lane/framework/replicate"
	"github.com/lahuca/lane/framework/request"
	"github.com/lahuca/lane/framework/transport"
)

var (
	ErrNotConnected = errors.New("edge: not connected to controller")
	ErrNoController = errors.New("edge: no controller found in discovery")
)

// Agent is the instance-side runtime: it owns the controller connection,
// announces this server, reports status, and bridges controller traffic to
// the Platform.
type Agent struct {
	conf     config.InstanceConfiguration
	platform Platform
	registry *codec.Registry
	requests *request.Handler
	client   *transport.Client
	replicas *replicate.Table
	monitor  *Monitor

	mu        sync.Mutex
	connected bool
	slots     records.SlotState
	address   string
	port      int
	private   bool
	games     map[int64]records.GameRecord
	parties   map[int64]*replicate.Replica[records.PartyRecord]
}

func NewAgent(conf config.InstanceConfiguration, platform Platform) (*Agent, error) {
	registry := codec.NewRegistry()
	codec.RegisterAll(registry)

	a := &Agent{
		conf:     conf,
		platform: platform,
		registry: registry,
		requests: request.NewHandler(),
		replicas: replicate.NewTable(),
		games:    make(map[int64]records.GameRecord),
		parties:  make(map[int64]*replicate.Replica[records.PartyRecord]),
		slots: records.SlotState{
			OnlineJoinable: true,
			MaxOnlineSlots: conf.MaxSlots,
		},
	}
	a.monitor = NewMonitor(a)

	dialer, err := a.buildDialer()
	if err != nil {
		return nil, err
	}
	a.client = transport.NewClient(transport.ClientOptions{
		ID:                conf.ID,
		Dial:              dialer,
		Registry:          registry,
		Requests:          a.requests,
		Backoff:           transport.ExponentialBackoff{Base: 500 * time.Millisecond, Max: 30 * time.Second},
		KeepAlivePeriod:   time.Duration(conf.KeepAliveConf.Period) * time.Second,
		KeepAliveMaxFails: conf.KeepAliveConf.MaxFails,
		OnPacket:          a.dispatch,
		OnConnected:       a.onConnected,
		OnClose:           a.onClose,
	})
	return a, nil
}

// buildDialer picks the transport from config. When etcd is configured the
// controller address comes from discovery instead of the static socket addr.
func (a *Agent) buildDialer() (transport.Dialer, error) {
	addr := a.conf.SocketConf.Addr
	if len(a.conf.EtcdConf.Addrs) > 0 {
		resolved, err := a.resolveController()
		if err != nil {
			return nil, err
		}
		addr = resolved
	}
	if a.conf.SocketConf.WebSocket {
		scheme := "wss"
		if a.conf.SocketConf.Insecure {
			scheme = "ws"
		}
		return transport.WebSocketDialer(fmt.Sprintf("%s://%s/socket", scheme, addr)), nil
	}
	var tlsConf *tls.Config
	if !a.conf.SocketConf.Insecure {
		tlsConf = &tls.Config{}
	}
	return transport.TCPDialer(addr, tlsConf), nil
}

func (a *Agent) resolveController() (string, error) {
	seeker, err := discovery.NewSeeker(a.conf.EtcdConf)
	if err != nil {
		return "", err
	}
	defer seeker.Close()
	servers, err := seeker.GetServers(a.conf.EtcdConf.Register.Domain)
	if err != nil {
		return "", err
	}
	if len(servers) == 0 {
		return "", ErrNoController
	}
	return servers[0].Addr, nil
}

// Start connects to the controller and blocks until ctx is canceled or the
// connection is closed for good.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.client.Connect(ctx); err != nil {
		return err
	}
	go a.monitor.Run(ctx)
	<-ctx.Done()
	a.client.Close(ctx.Err())
	return nil
}

func (a *Agent) Close() {
	a.client.Close(nil)
	a.requests.Close()
}

// onConnected runs on every (re)established stream. The announce round-trip
// happens off the read loop so the response can come back.
func (a *Agent) onConnected() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.announce(ctx); err != nil {
			log.Error("announce to controller failed: %v", err)
			a.client.CloseAndReconnect(context.Background())
			return
		}
		a.mu.Lock()
		a.connected = true
		a.mu.Unlock()
		log.Info("connected to controller as %s", a.conf.ID)
		a.platform.Connected()
		a.PushStatus()
	}()
}

func (a *Agent) announce(ctx context.Context) error {
	pkt := &codec.ConnectionConnectPacket{
		ID:   a.conf.ID,
		Type: a.conf.InstanceType,
	}
	if a.conf.JwtConf.Enabled {
		token, err := jwts.GetToken(&jwts.CustomClaims{InstanceID: a.conf.ID}, a.conf.JwtConf.Secret)
		if err != nil {
			return err
		}
		pkt.Token = token
	}
	result, err := a.roundTrip(ctx, pkt, &pkt.ReqID)
	if err != nil {
		return err
	}
	if !result.IsOK() {
		return fmt.Errorf("controller refused connection: %s", result.Code)
	}
	return nil
}

func (a *Agent) onClose(err error) {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	a.platform.Disconnected(err)
}

func (a *Agent) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// roundTrip sends a request packet and waits for the correlated result.
// reqID points at the packet's request id field so it can be stamped after
// the pending slot is allocated.
func (a *Agent) roundTrip(ctx context.Context, p codec.Packet, reqID *int64) (codec.Result, error) {
	pending, err := a.requests.Request(request.DefaultTimeout)
	if err != nil {
		return codec.Result{}, err
	}
	*reqID = pending.ID()
	if err := a.client.SendToController(p); err != nil {
		a.requests.Resolve(pending.ID(), codec.Fail(codec.ResultControllerDisconnected))
		return codec.Result{}, err
	}
	return pending.Wait(ctx)
}

// dispatch handles packets the controller pushes; responses never reach it
// because the client read loop retires them against the request handler.
func (a *Agent) dispatch(t *codec.Transfer, p codec.Packet) {
	switch pkt := p.(type) {
	case *codec.InstanceJoinPacket:
		a.handleJoin(pkt)
	case *codec.QueueFinishedPacket:
		a.platform.HandleQueueFinished(pkt.Player, pkt.Message)
	case *codec.SendMessagePacket:
		a.platform.DeliverMessage(pkt.Player, pkt.Message)
	case *codec.InstanceDisconnectPacket:
		a.platform.DisconnectPlayer(pkt.Player, pkt.Message)
	case *codec.ReplicatedUpdatePacket:
		if !a.replicas.Update(pkt) {
			log.Debug("update for unknown replica %s/%d", pkt.ObjectType, pkt.ReplicationID)
		}
	case *codec.ReplicatedRemovePacket:
		a.replicas.Remove(pkt)
	case *codec.RawPacket:
		log.Debug("unknown packet type %s from %s", pkt.TypeID, t.From)
	default:
		log.Debug("unhandled packet %s from %s", p.PacketID(), t.From)
	}
}

func (a *Agent) handleJoin(pkt *codec.InstanceJoinPacket) {
	a.mu.Lock()
	joinable := pkt.OverrideSlots || a.slots.Joinable(1)
	a.mu.Unlock()

	code := codec.ResultNoFreeSlots
	if joinable {
		code = a.platform.HandleJoin(pkt.Player, pkt.GameID, pkt.OverrideSlots)
	}
	if code == codec.ResultOK {
		a.mu.Lock()
		a.slots.Reserved = append(a.slots.Reserved, pkt.Player.UUID)
		a.mu.Unlock()
	}

	resp := &codec.SimpleResultPacket{Result: resultFromCode(code)}
	resp.ReqID = pkt.RequestID()
	if err := a.client.SendToController(resp); err != nil {
		log.Warn("join result for %s lost: %v", pkt.Player.UUID, err)
	}
}

// --- occupancy ---

// PlayerOnline moves a player from reserved to online, then reports status.
func (a *Agent) PlayerOnline(player uuid.UUID) {
	a.mu.Lock()
	a.slots.Reserved = removeUUID(a.slots.Reserved, player)
	if !containsUUID(a.slots.Online, player) {
		a.slots.Online = append(a.slots.Online, player)
	}
	a.mu.Unlock()
	a.PushStatus()
}

// PlayerOffline clears a player from every tier and tells the controller
// they left this instance.
func (a *Agent) PlayerOffline(player uuid.UUID) {
	a.mu.Lock()
	a.slots.Reserved = removeUUID(a.slots.Reserved, player)
	a.slots.Online = removeUUID(a.slots.Online, player)
	a.slots.Players = removeUUID(a.slots.Players, player)
	a.slots.Playing = removeUUID(a.slots.Playing, player)
	a.mu.Unlock()

	a.client.SendToController(&codec.InstanceDisconnectPacket{Player: player})
	a.PushStatus()
}

// SetJoinable flips the online tier's join flag, for maintenance drains.
func (a *Agent) SetJoinable(joinable bool) {
	a.mu.Lock()
	a.slots.OnlineJoinable = joinable
	a.mu.Unlock()
	a.PushStatus()
}

// SetGameAddress sets the address players use to reach this server, as
// opposed to the controller socket.
func (a *Agent) SetGameAddress(addr string, port int, private bool) {
	a.mu.Lock()
	a.address = addr
	a.port = port
	a.private = private
	a.mu.Unlock()
}

// PushStatus sends the current instance record to the controller. Sent on
// change and on the monitor's timer.
func (a *Agent) PushStatus() {
	a.mu.Lock()
	rec := records.InstanceRecord{
		ID:              a.conf.ID,
		GameAddress:     a.address,
		GameAddressPort: a.port,
		Type:            a.conf.InstanceType,
		Private:         a.private,
		Load:            a.monitor.Load(),
		SlotState:       a.slots.Snapshot(),
	}
	a.mu.Unlock()

	if err := a.client.SendToController(&codec.InstanceStatusUpdatePacket{Record: rec}); err != nil {
		log.Debug("status update not sent: %v", err)
	}
}

// UpdatePlayer pushes a player record change (displayname, locale, party)
// to the controller's registry.
func (a *Agent) UpdatePlayer(rec records.PlayerRecord) error {
	rec.InstanceID = a.conf.ID
	return a.client.SendToController(&codec.InstanceUpdatePlayerPacket{Player: rec})
}

func (a *Agent) occupancy() (online, playing, maxSlots int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.slots.Online) + len(a.slots.Reserved), len(a.slots.Playing), a.slots.MaxOnlineSlots
}

func resultFromCode(code string) codec.Result {
	if code == codec.ResultOK {
		return codec.OK(nil)
	}
	return codec.Fail(code)
}

func containsUUID(list []uuid.UUID, id uuid.UUID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeUUID(list []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
