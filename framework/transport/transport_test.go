package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/request"
)

type helloPacket struct {
	Greeting string `json:"greeting"`
	ReqID    int64  `json:"requestId,omitempty"`
}

func (p *helloPacket) PacketID() string { return "test.hello" }

type helloResultPacket struct {
	ReqID  int64        `json:"requestId"`
	Result codec.Result `json:"result"`
}

func (p *helloResultPacket) PacketID() string       { return "test.helloResult" }
func (p *helloResultPacket) RequestID() int64       { return p.ReqID }
func (p *helloResultPacket) Response() codec.Result { return p.Result }

func testRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	reg.Register("test.hello", &helloPacket{})
	reg.Register("test.helloResult", &helloResultPacket{})
	return reg
}

type serverPacket struct {
	conn *ServerConn
	t    *codec.Transfer
	p    codec.Packet
}

func startServer(t *testing.T, reg *codec.Registry) (*Server, chan serverPacket) {
	t.Helper()
	packets := make(chan serverPacket, 16)
	srv := NewServer(ServerOptions{
		Addr:     "127.0.0.1:0",
		Registry: reg,
		OnPacket: func(conn *ServerConn, tr *codec.Transfer, p codec.Packet) {
			packets <- serverPacket{conn, tr, p}
		},
	})
	if err := srv.Listen(); err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	t.Cleanup(srv.Close)
	go srv.Serve(ctx)
	return srv, packets
}

func startClient(t *testing.T, id, addr string, reg *codec.Registry, requests *request.Handler) (*Client, chan codec.Packet) {
	t.Helper()
	inbound := make(chan codec.Packet, 16)
	cli := NewClient(ClientOptions{
		ID:       id,
		Dial:     TCPDialer(addr, nil),
		Registry: reg,
		Requests: requests,
		OnPacket: func(_ *codec.Transfer, p codec.Packet) {
			inbound <- p
		},
	})
	if err := cli.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { cli.Close(nil) })
	return cli, inbound
}

func waitPacket[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
		panic("unreachable")
	}
}

func TestClientToServerDelivery(t *testing.T) {
	reg := testRegistry()
	srv, packets := startServer(t, reg)
	cli, _ := startClient(t, "inst-1", srv.Addr(), reg, request.NewHandler())

	if err := cli.SendToController(&helloPacket{Greeting: "hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := waitPacket(t, packets)
	hello, ok := got.p.(*helloPacket)
	if !ok {
		t.Fatalf("got %T", got.p)
	}
	if hello.Greeting != "hi" {
		t.Errorf("greeting = %q", hello.Greeting)
	}
	if got.t.From != "inst-1" {
		t.Errorf("from = %q", got.t.From)
	}
	if got.conn.ID() != "" {
		t.Errorf("connection assigned too early: %q", got.conn.ID())
	}
}

func TestAssignAndSendTo(t *testing.T) {
	reg := testRegistry()
	srv, packets := startServer(t, reg)
	cli, inbound := startClient(t, "inst-1", srv.Addr(), reg, request.NewHandler())

	cli.SendToController(&helloPacket{Greeting: "announce"})
	got := waitPacket(t, packets)

	if err := srv.Assign(got.conn, "inst-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := srv.Assign(got.conn, "other"); !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("second assign = %v", err)
	}

	if err := srv.SendTo("inst-1", &helloPacket{Greeting: "welcome"}); err != nil {
		t.Fatalf("send to: %v", err)
	}
	p := waitPacket(t, inbound)
	hello, ok := p.(*helloPacket)
	if !ok || hello.Greeting != "welcome" {
		t.Errorf("inbound = %#v", p)
	}

	ids := srv.AssignedIDs()
	if len(ids) != 1 || ids[0] != "inst-1" {
		t.Errorf("assigned = %v", ids)
	}
}

func TestAssignDuplicateIDRefused(t *testing.T) {
	reg := testRegistry()
	srv, packets := startServer(t, reg)

	cliA, _ := startClient(t, "inst-1", srv.Addr(), reg, request.NewHandler())
	cliA.SendToController(&helloPacket{})
	first := waitPacket(t, packets)
	if err := srv.Assign(first.conn, "inst-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	cliB, _ := startClient(t, "inst-1", srv.Addr(), reg, request.NewHandler())
	cliB.SendToController(&helloPacket{})
	second := waitPacket(t, packets)
	if err := srv.Assign(second.conn, "inst-1"); !errors.Is(err, ErrConnectionIDTaken) {
		t.Errorf("duplicate id assign = %v", err)
	}
}

func TestRelayBetweenClients(t *testing.T) {
	reg := testRegistry()
	srv, packets := startServer(t, reg)

	cliA, _ := startClient(t, "inst-a", srv.Addr(), reg, request.NewHandler())
	cliB, inboundB := startClient(t, "inst-b", srv.Addr(), reg, request.NewHandler())

	// both announce so the server can assign them
	cliA.SendToController(&helloPacket{})
	srv.Assign(waitPacket(t, packets).conn, "inst-a")
	cliB.SendToController(&helloPacket{})
	srv.Assign(waitPacket(t, packets).conn, "inst-b")

	if err := cliA.SendPacket(&helloPacket{Greeting: "tunneled"}, "inst-b"); err != nil {
		t.Fatalf("send: %v", err)
	}
	p := waitPacket(t, inboundB)
	hello, ok := p.(*helloPacket)
	if !ok || hello.Greeting != "tunneled" {
		t.Errorf("relayed packet = %#v", p)
	}

	// the relayed envelope never hit the server's packet handler
	select {
	case extra := <-packets:
		t.Errorf("server decoded a relayed packet: %#v", extra.p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestResponseResolvesPending(t *testing.T) {
	reg := testRegistry()
	srv, packets := startServer(t, reg)
	requests := request.NewHandler()
	cli, _ := startClient(t, "inst-1", srv.Addr(), reg, requests)

	pending, err := requests.Request(5 * time.Second)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	cli.SendToController(&helloPacket{Greeting: "ask", ReqID: pending.ID()})

	got := waitPacket(t, packets)
	hello := got.p.(*helloPacket)
	got.conn.Send(&helloResultPacket{ReqID: hello.ReqID, Result: codec.OK(nil)})

	result, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !result.IsOK() {
		t.Errorf("result = %q", result.Code)
	}
}

func TestUnknownDestinationDropsSilently(t *testing.T) {
	reg := testRegistry()
	srv, _ := startServer(t, reg)
	if err := srv.SendTo("ghost", &helloPacket{}); err != nil {
		t.Errorf("unknown destination must be a silent no-op, got %v", err)
	}
}

func TestClientReconnectAfterServerDrop(t *testing.T) {
	reg := testRegistry()
	srv, packets := startServer(t, reg)

	connected := make(chan struct{}, 4)
	cli := NewClient(ClientOptions{
		ID:          "inst-1",
		Dial:        TCPDialer(srv.Addr(), nil),
		Registry:    reg,
		Requests:    request.NewHandler(),
		Backoff:     ExponentialBackoff{Base: 10 * time.Millisecond, Max: 100 * time.Millisecond},
		OnConnected: func() { connected <- struct{}{} },
	})
	if err := cli.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer cli.Close(nil)
	waitPacket(t, connected)

	// drop the server side of the stream
	cli.SendToController(&helloPacket{})
	got := waitPacket(t, packets)
	got.conn.close()

	// the backoff policy must bring the client back
	waitPacket(t, connected)
	if err := cli.SendToController(&helloPacket{Greeting: "again"}); err != nil {
		t.Fatalf("send after reconnect: %v", err)
	}
	again := waitPacket(t, packets)
	if again.p.(*helloPacket).Greeting != "again" {
		t.Error("post-reconnect packet lost")
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Max: 400 * time.Millisecond, MaxAttempts: 4}

	d, ok := b.Delay(1)
	if !ok || d != 100*time.Millisecond {
		t.Errorf("attempt 1 = %v, %v", d, ok)
	}
	d, _ = b.Delay(3)
	if d != 400*time.Millisecond {
		t.Errorf("attempt 3 = %v", d)
	}
	if _, ok := b.Delay(5); ok {
		t.Error("attempts past the cap must refuse")
	}
	if _, ok := (NoReconnect{}).Delay(1); ok {
		t.Error("NoReconnect never retries")
	}
}
