// Package bus publishes network lifecycle events to NATS so operational
// tooling can follow the network without speaking the socket protocol.
// Nothing in the core consumes these events.
package bus

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lahuca/lane/common/log"
)

var ErrNotConnected = errors.New("nats not connected")

const (
	SubjectInstanceUp     = "lane.instance.up"
	SubjectInstanceDown   = "lane.instance.down"
	SubjectPlayerJoined   = "lane.player.joined"
	SubjectPlayerLeft     = "lane.player.left"
	SubjectPlayerMoved    = "lane.player.moved"
	SubjectQueueFinished  = "lane.queue.finished"
	SubjectPartyDisbanded = "lane.party.disbanded"
)

type Event struct {
	Subject  string `json:"-"`
	At       int64  `json:"at"`
	Instance string `json:"instance,omitempty"`
	Player   string `json:"player,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Publisher is a fire-and-forget event sink. A nil Publisher is valid and
// drops everything, so call sites need no enabled checks.
type Publisher struct {
	conn      *nats.Conn
	publish   func(subject string, data []byte) error
	writeChan chan Event
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewPublisher(url string) (*Publisher, error) {
	log.Info("connecting nats event bus, url:%s", url)
	conn, err := nats.Connect(url)
	if err != nil {
		log.Error("nats connect error: %v", err)
		return nil, err
	}
	p := &Publisher{
		conn:      conn,
		publish:   conn.Publish,
		writeChan: make(chan Event, 1024),
		done:      make(chan struct{}),
	}
	go p.writeLoop()
	log.Info("nats event bus connected")
	return p, nil
}

func (p *Publisher) writeLoop() {
	defer close(p.done)
	for ev := range p.writeChan {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if err := p.publish(ev.Subject, data); err != nil {
			log.Debug("nats publish %s: %v", ev.Subject, err)
		}
	}
}

// Publish enqueues the event; a full queue drops it rather than blocking a
// connection read loop. Events arriving after Close are dropped.
func (p *Publisher) Publish(ev Event) {
	if p == nil {
		return
	}
	ev.At = time.Now().UnixMilli()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.writeChan <- ev:
	default:
		log.Debug("nats event queue full, dropping %s", ev.Subject)
	}
}

// Close drains the queued events, then tears down the connection. Safe to
// call more than once and concurrently with Publish.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	// Publish sends under the same mutex, so no sender can be mid-send here.
	close(p.writeChan)
	p.mu.Unlock()

	<-p.done
	if p.conn != nil {
		p.conn.Close()
	}
	log.Info("nats event bus closed")
}
