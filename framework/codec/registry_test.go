package codec

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

type pingPacket struct {
	requestBase
	Nonce string `json:"nonce"`
}

func (p *pingPacket) PacketID() string { return "test.ping" }

type otherPingPacket struct {
	Different int `json:"different"`
}

func (p *otherPingPacket) PacketID() string { return "test.ping" }

func TestRegistryRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test.ping", &pingPacket{})

	data, err := Encode(&pingPacket{Nonce: "abc"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	p, err := reg.Decode("test.ping", data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	ping, ok := p.(*pingPacket)
	if !ok {
		t.Fatalf("decoded wrong type %T", p)
	}
	if ping.Nonce != "abc" {
		t.Errorf("nonce = %q, want abc", ping.Nonce)
	}
}

func TestRegistryUnknownTypeYieldsRaw(t *testing.T) {
	reg := NewRegistry()
	payload := []byte(`{"whatever":1}`)
	p, err := reg.Decode("never.registered", payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	raw, ok := p.(*RawPacket)
	if !ok {
		t.Fatalf("expected RawPacket, got %T", p)
	}
	if raw.TypeID != "never.registered" {
		t.Errorf("type id = %q", raw.TypeID)
	}
	if string(raw.Payload) != string(payload) {
		t.Errorf("payload altered: %s", raw.Payload)
	}
}

func TestRegistryDuplicateSameShapeIsNoop(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test.ping", &pingPacket{})
	reg.Register("test.ping", &pingPacket{})
}

func TestRegistryDuplicateDifferentShapePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register("test.ping", &pingPacket{})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on conflicting registration")
		}
	}()
	reg.Register("test.ping", &otherPingPacket{})
}

func TestRegistryRejectsRawPacket(t *testing.T) {
	reg := NewRegistry()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering RawPacket")
		}
	}()
	reg.Register("raw", &RawPacket{})
}

func TestTransferForController(t *testing.T) {
	pkt := &pingPacket{Nonce: "x"}
	tr, err := NewTransfer("instance-1", ControllerID, pkt)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !tr.ForController() {
		t.Error("empty destination must address the controller")
	}
	tr2, err := NewTransfer("instance-1", "instance-2", pkt)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if tr2.ForController() {
		t.Error("addressed transfer must not hit the controller")
	}
}

func TestTransferLineCodec(t *testing.T) {
	pkt := &pingPacket{Nonce: "line"}
	tr, err := NewTransfer("a", "b", pkt)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	line, err := tr.EncodeLine()
	if err != nil {
		t.Fatalf("encode line failed: %v", err)
	}
	if line[len(line)-1] != '\n' {
		t.Fatal("line must end with newline")
	}
	decoded, err := DecodeLine(line)
	if err != nil {
		t.Fatalf("decode line failed: %v", err)
	}
	if decoded.TypeID != "test.ping" || decoded.From != "a" || decoded.To != "b" {
		t.Errorf("envelope fields lost: %+v", decoded)
	}
	if decoded.SentAt == 0 {
		t.Error("sentAt not stamped")
	}
}

func TestResultHelpers(t *testing.T) {
	ok := OK(map[string]int{"v": 1})
	if !ok.IsOK() {
		t.Error("OK result must report ok")
	}
	fail := Fail(ResultNoFreeSlots)
	if fail.IsOK() {
		t.Error("failed result must not report ok")
	}
	if fail.Code != ResultNoFreeSlots {
		t.Errorf("code = %q", fail.Code)
	}

	type payload struct {
		V int `json:"v"`
	}
	got, err := ResultDataAs[payload](ok)
	if err != nil {
		t.Fatalf("result data: %v", err)
	}
	if got.V != 1 {
		t.Errorf("v = %d", got.V)
	}
}

func TestLongResultResponseWrapsValue(t *testing.T) {
	p := &LongResultPacket{Result: OK(nil), Value: 42}
	result := p.Response()
	if !result.IsOK() {
		t.Fatal("expected ok")
	}
	var v int64
	if err := json.Unmarshal(result.Data, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v != 42 {
		t.Errorf("value = %d", v)
	}

	failed := &LongResultPacket{Result: Fail(ResultInvalidID)}
	if failed.Response().Code != ResultInvalidID {
		t.Error("failure code must pass through")
	}
}

func TestRegisterAllCatalog(t *testing.T) {
	reg := NewRegistry()
	RegisterAll(reg)

	data, err := Encode(&QueueRequestPacket{Player: uuid.New(), Reason: "NETWORK_JOIN"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	p, err := reg.Decode(IDQueueRequest, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := p.(*QueueRequestPacket); !ok {
		t.Fatalf("catalog mapping broken, got %T", p)
	}
}
