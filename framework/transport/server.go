package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/codec"
)

// ServerConn is one accepted peer. It starts unassigned; the application
// layer assigns the peer id exactly once after validating the announce
// packet.
type ServerConn struct {
	srv    *Server
	stream Stream

	mu sync.Mutex
	id string

	closeOnce sync.Once
}

// ID returns the assigned peer id, empty while unassigned.
func (sc *ServerConn) ID() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.id
}

func (sc *ServerConn) RemoteAddr() string {
	return sc.stream.RemoteAddr()
}

// Send delivers a packet addressed to this peer.
func (sc *ServerConn) Send(p codec.Packet) error {
	t, err := codec.NewTransfer(codec.ControllerID, sc.ID(), p)
	if err != nil {
		return err
	}
	return sc.SendTransfer(t)
}

func (sc *ServerConn) SendTransfer(t *codec.Transfer) error {
	line, err := t.EncodeLine()
	if err != nil {
		return err
	}
	return sc.stream.WriteLine(line)
}

func (sc *ServerConn) close() {
	sc.closeOnce.Do(func() {
		sc.stream.Close()
	})
}

type ServerOptions struct {
	Addr      string
	TLSConfig *tls.Config
	Registry  *codec.Registry

	// OnPacket runs on the connection's read loop for every decoded packet
	// that terminates at this node.
	OnPacket func(conn *ServerConn, t *codec.Transfer, p codec.Packet)
	// OnDisconnect is best-effort; id is empty when the peer never assigned.
	OnDisconnect func(id string, err error)
}

// Server accepts many peer connections, each with its own read loop, and
// relays envelopes addressed to other peers without decoding them.
type Server struct {
	opts     ServerOptions
	listener net.Listener

	mu         sync.Mutex
	unassigned map[*ServerConn]struct{}
	assigned   map[string]*ServerConn
	closed     bool

	totalConns atomic.Int64
	packetsIn  atomic.Int64
	relayed    atomic.Int64
}

func NewServer(opts ServerOptions) *Server {
	return &Server{
		opts:       opts,
		unassigned: make(map[*ServerConn]struct{}),
		assigned:   make(map[string]*ServerConn),
	}
}

// Listen binds the TCP (or TLS) listener without starting the accept loop.
func (s *Server) Listen() error {
	var err error
	if s.opts.TLSConfig != nil {
		s.listener, err = tls.Listen("tcp", s.opts.Addr, s.opts.TLSConfig)
	} else {
		s.listener, err = net.Listen("tcp", s.opts.Addr)
	}
	return err
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return s.opts.Addr
	}
	return s.listener.Addr().String()
}

// Serve accepts until ctx is canceled or the listener closes.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			log.Warn("accept failed: %v", err)
			continue
		}
		go s.handleStream(newTCPStream(conn))
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleStream runs the per-connection read loop. One goroutine per peer;
// a slow handler for one peer never blocks another peer's loop.
func (s *Server) handleStream(st Stream) {
	sc := &ServerConn{srv: s, stream: st}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		st.Close()
		return
	}
	s.unassigned[sc] = struct{}{}
	s.mu.Unlock()
	s.totalConns.Add(1)

	var readErr error
	for {
		line, err := st.ReadLine()
		if err != nil {
			readErr = err
			break
		}
		t, err := codec.DecodeLine(line)
		if err != nil {
			log.Warn("bad envelope from %s: %v", st.RemoteAddr(), err)
			continue
		}
		s.packetsIn.Add(1)
		if !t.ForController() {
			s.Relay(t)
			continue
		}
		p, err := s.opts.Registry.Decode(t.TypeID, t.Data)
		if err != nil {
			log.Warn("decode %s from %s: %v", t.TypeID, st.RemoteAddr(), err)
			continue
		}
		if s.opts.OnPacket != nil {
			s.opts.OnPacket(sc, t, p)
		}
	}
	s.teardown(sc, readErr)
}

func (s *Server) teardown(sc *ServerConn, err error) {
	id := sc.ID()
	s.mu.Lock()
	delete(s.unassigned, sc)
	if id != "" && s.assigned[id] == sc {
		delete(s.assigned, id)
	}
	s.mu.Unlock()
	sc.close()
	if s.opts.OnDisconnect != nil {
		s.opts.OnDisconnect(id, err)
	}
}

// Assign moves the connection from unassigned to assigned under id. A
// connection assigns at most once, and an id in use by a live connection
// is refused.
func (s *Server) Assign(sc *ServerConn, id string) error {
	if id == "" {
		return ErrConnectionIDTaken
	}
	sc.mu.Lock()
	if sc.id != "" {
		sc.mu.Unlock()
		return ErrAlreadyAssigned
	}
	sc.mu.Unlock()

	s.mu.Lock()
	if _, taken := s.assigned[id]; taken {
		s.mu.Unlock()
		return ErrConnectionIDTaken
	}
	delete(s.unassigned, sc)
	s.assigned[id] = sc
	s.mu.Unlock()

	sc.mu.Lock()
	sc.id = id
	sc.mu.Unlock()
	return nil
}

// Conn returns the assigned connection for id.
func (s *Server) Conn(id string) (*ServerConn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.assigned[id]
	return sc, ok
}

// SendTo delivers a packet to the named peer. An unknown or disconnected
// destination is a silent no-op; callers wanting confirmation correlate a
// response instead.
func (s *Server) SendTo(id string, p codec.Packet) error {
	sc, ok := s.Conn(id)
	if !ok {
		return nil
	}
	return sc.Send(p)
}

// Relay forwards a raw envelope to the peer named in its destination
// without decoding the payload. Unknown destinations drop silently.
func (s *Server) Relay(t *codec.Transfer) {
	sc, ok := s.Conn(t.To)
	if !ok {
		return
	}
	s.relayed.Add(1)
	if err := sc.SendTransfer(t); err != nil {
		log.Debug("relay to %s failed: %v", t.To, err)
	}
}

func (s *Server) AssignedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.assigned))
	for id := range s.assigned {
		ids = append(ids, id)
	}
	return ids
}

// Stats reports total accepted connections, packets read and envelopes
// relayed.
func (s *Server) Stats() (conns, packets, relayed int64) {
	return s.totalConns.Load(), s.packetsIn.Load(), s.relayed.Load()
}

func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]*ServerConn, 0, len(s.assigned)+len(s.unassigned))
	for sc := range s.unassigned {
		conns = append(conns, sc)
	}
	for _, sc := range s.assigned {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	for _, sc := range conns {
		sc.close()
	}
}
