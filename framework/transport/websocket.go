package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsStream carries one envelope per text message, so the websocket and
// stream-socket transports share identical envelope semantics.
type wsStream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *wsStream) ReadLine() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	// a socket line carries its delimiter, a ws message does not
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	return data, nil
}

func (s *wsStream) WriteLine(line []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return s.conn.WriteMessage(websocket.TextMessage, line)
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

func (s *wsStream) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// WebSocketDialer connects to a controller websocket endpoint, e.g.
// wss://controller:8443/lane.
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (Stream, error) {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsStream{conn: conn}, nil
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades inbound HTTP requests and hands the stream to
// the server exactly as the TCP accept loop does.
func (s *Server) WebSocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go s.handleStream(&wsStream{conn: conn})
	})
}
