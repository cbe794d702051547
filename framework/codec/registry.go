// Package codec defines the typed packet model, the id registry and the
// socket transfer envelope that every connection speaks.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// Packet is any message with a registered string type id.
type Packet interface {
	PacketID() string
}

// RequestPacket carries a correlator id and expects exactly one response.
type RequestPacket interface {
	Packet
	RequestID() int64
}

// ResponsePacket answers a RequestPacket with the same correlator id.
type ResponsePacket interface {
	Packet
	RequestID() int64
	Response() Result
}

// RawPacket is the passthrough form for type ids this node does not know.
// It is never registered: decoding an unknown id yields one, which keeps
// relaying working for payloads only the destination understands.
type RawPacket struct {
	TypeID  string
	Payload json.RawMessage
}

func (p *RawPacket) PacketID() string { return p.TypeID }

// Registry maps type ids to packet shapes. It is built once at process
// start and handed by reference to the transports; there is no ambient
// global registry.
type Registry struct {
	mu     sync.RWMutex
	shapes map[string]reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{shapes: make(map[string]reflect.Type)}
}

// Register binds id to the concrete type of shape. Registering the same id
// twice with the same shape is a no-op; a different shape panics, since that
// is a wiring bug that must surface at startup.
func (r *Registry) Register(id string, shape Packet) {
	if id == "" {
		panic("codec: empty packet id")
	}
	if _, ok := shape.(*RawPacket); ok {
		panic("codec: RawPacket must not be registered")
	}
	t := reflect.TypeOf(shape)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.shapes[id]; ok {
		if existing != t {
			panic(fmt.Sprintf("codec: packet id %q registered twice with different shapes (%s, %s)", id, existing, t))
		}
		return
	}
	r.shapes[id] = t
}

// Knows reports whether id has a registered shape.
func (r *Registry) Knows(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shapes[id]
	return ok
}

// Decode builds the typed packet for id, or a RawPacket when the id is
// unknown. A malformed payload for a known id is a decode error; the caller
// decides what to do with the connection.
func (r *Registry) Decode(id string, payload json.RawMessage) (Packet, error) {
	r.mu.RLock()
	t, ok := r.shapes[id]
	r.mu.RUnlock()
	if !ok {
		return &RawPacket{TypeID: id, Payload: payload}, nil
	}
	v := reflect.New(t).Interface()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, fmt.Errorf("codec: decode %q: %w", id, err)
		}
	}
	p, ok := v.(Packet)
	if !ok {
		return nil, fmt.Errorf("codec: registered shape for %q is not a packet", id)
	}
	return p, nil
}

// Encode marshals the packet body.
func Encode(p Packet) (json.RawMessage, error) {
	if raw, ok := p.(*RawPacket); ok {
		return raw.Payload, nil
	}
	return json.Marshal(p)
}
