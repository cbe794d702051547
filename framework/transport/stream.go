// Package transport maintains the long-lived controller<->instance
// connections: line framing, identity assignment, relaying, and client
// reconnect handling. The reference stream is a TLS-wrapped TCP socket; a
// websocket stream is available behind the same interface.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"
)

// maxLineBytes bounds one envelope line; oversized lines kill the
// connection instead of the process.
const maxLineBytes = 4 << 20

// Stream is one framed byte channel to a single peer. ReadLine returns one
// envelope without the trailing newline. WriteLine is safe for concurrent
// use; ReadLine is owned by the single read loop.
type Stream interface {
	ReadLine() ([]byte, error)
	WriteLine(line []byte) error
	Close() error
	RemoteAddr() string
}

type tcpStream struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex
}

func newTCPStream(conn net.Conn) *tcpStream {
	return &tcpStream{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 64*1024),
	}
}

func (s *tcpStream) ReadLine() ([]byte, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if len(line) > maxLineBytes {
		s.conn.Close()
		return nil, bufio.ErrBufferFull
	}
	// strip the delimiter
	return line[:len(line)-1], nil
}

func (s *tcpStream) WriteLine(line []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err := s.conn.Write(line)
	return err
}

func (s *tcpStream) Close() error {
	return s.conn.Close()
}

func (s *tcpStream) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// Dialer opens a Stream to the controller. Clients hold one so the same
// reconnect logic drives both socket and websocket transports.
type Dialer func(ctx context.Context) (Stream, error)

// TCPDialer dials addr, wrapping in TLS when tlsConf is non-nil.
func TCPDialer(addr string, tlsConf *tls.Config) Dialer {
	return func(ctx context.Context) (Stream, error) {
		d := net.Dialer{Timeout: 10 * time.Second}
		if tlsConf != nil {
			conn, err := tls.DialWithDialer(&d, "tcp", addr, tlsConf)
			if err != nil {
				return nil, err
			}
			return newTCPStream(conn), nil
		}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		return newTCPStream(conn), nil
	}
}
