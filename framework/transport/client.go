package transport

import (
	"context"
	"sync"
	"time"

	"github.com/lahuca/lane/common/log"
	"github.com/lahuca/lane/framework/codec"
	"github.com/lahuca/lane/framework/request"
)

// BackoffPolicy decides whether and when to retry after a broken
// connection. attempt starts at 1.
type BackoffPolicy interface {
	Delay(attempt int) (time.Duration, bool)
}

// ExponentialBackoff doubles the base delay up to Max. MaxAttempts <= 0
// retries forever.
type ExponentialBackoff struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

func (b ExponentialBackoff) Delay(attempt int) (time.Duration, bool) {
	if b.MaxAttempts > 0 && attempt > b.MaxAttempts {
		return 0, false
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max, true
		}
	}
	if d > b.Max {
		d = b.Max
	}
	return d, true
}

// NoReconnect terminates the client on the first disconnect.
type NoReconnect struct{}

func (NoReconnect) Delay(int) (time.Duration, bool) { return 0, false }

type ClientOptions struct {
	// ID is this node's identity, stamped as the envelope source.
	ID       string
	Dial     Dialer
	Registry *codec.Registry
	// Requests resolves inbound response packets; the keepalive loop also
	// correlates through it.
	Requests *request.Handler
	Backoff  BackoffPolicy

	// KeepAlivePeriod of 0 disables the keepalive loop.
	KeepAlivePeriod   time.Duration
	KeepAliveMaxFails int

	OnPacket    func(t *codec.Transfer, p codec.Packet)
	OnConnected func()
	OnClose     func(err error)
}

// Client maintains the instance side of the controller connection.
type Client struct {
	opts ClientOptions

	mu     sync.Mutex
	stream Stream
	gen    int
	closed bool
}

func NewClient(opts ClientOptions) *Client {
	if opts.Backoff == nil {
		opts.Backoff = NoReconnect{}
	}
	if opts.KeepAliveMaxFails <= 0 {
		opts.KeepAliveMaxFails = 3
	}
	return &Client{opts: opts}
}

// Connect dials once and starts the read and keepalive loops. It does not
// retry; retrying an initial connect is the caller's call, while broken
// established connections follow the backoff policy automatically.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	if c.stream != nil {
		c.mu.Unlock()
		return ErrAlreadyAssigned
	}
	c.mu.Unlock()

	st, err := c.opts.Dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		st.Close()
		return ErrClientClosed
	}
	c.stream = st
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readLoop(st, gen)
	if c.opts.KeepAlivePeriod > 0 {
		go c.keepAliveLoop(st, gen)
	}
	if c.opts.OnConnected != nil {
		c.opts.OnConnected()
	}
	return nil
}

// Reconnect resets connection state and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.dropStream()
	return c.Connect(ctx)
}

// CloseAndReconnect tears the connection down and reconnects only when the
// backoff policy permits a first attempt.
func (c *Client) CloseAndReconnect(ctx context.Context) error {
	if _, ok := c.opts.Backoff.Delay(1); !ok {
		c.Close(nil)
		return ErrReconnectDenied
	}
	c.dropStream()
	return c.Connect(ctx)
}

func (c *Client) dropStream() {
	c.mu.Lock()
	st := c.stream
	c.stream = nil
	c.gen++
	c.mu.Unlock()
	if st != nil {
		st.Close()
	}
}

// Close terminates the client for good; no reconnect follows.
func (c *Client) Close(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	st := c.stream
	c.stream = nil
	c.mu.Unlock()
	if st != nil {
		st.Close()
	}
	if c.opts.OnClose != nil {
		c.opts.OnClose(err)
	}
}

func (c *Client) current(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.gen == gen && c.stream != nil
}

func (c *Client) readLoop(st Stream, gen int) {
	for {
		line, err := st.ReadLine()
		if err != nil {
			if c.current(gen) {
				c.handleDisconnect(err)
			}
			return
		}
		t, err := codec.DecodeLine(line)
		if err != nil {
			log.Warn("bad envelope from controller: %v", err)
			continue
		}
		p, err := c.opts.Registry.Decode(t.TypeID, t.Data)
		if err != nil {
			log.Warn("decode %s: %v", t.TypeID, err)
			continue
		}
		if resp, ok := p.(codec.ResponsePacket); ok {
			if c.opts.Requests != nil && c.opts.Requests.Resolve(resp.RequestID(), resp.Response()) {
				continue
			}
		}
		if c.opts.OnPacket != nil {
			c.opts.OnPacket(t, p)
		}
	}
}

// handleDisconnect retries per the backoff policy; exhaustion closes the
// client.
func (c *Client) handleDisconnect(cause error) {
	log.Warn("controller connection lost: %v", cause)
	c.dropStream()
	for attempt := 1; ; attempt++ {
		delay, ok := c.opts.Backoff.Delay(attempt)
		if !ok {
			c.Close(cause)
			return
		}
		time.Sleep(delay)
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			log.Info("reconnected to controller after %d attempt(s)", attempt)
			return
		}
		log.Warn("reconnect attempt %d failed: %v", attempt, err)
	}
}

// keepAliveLoop pings the controller through the correlator. After
// KeepAliveMaxFails consecutive misses the connection is recycled.
func (c *Client) keepAliveLoop(st Stream, gen int) {
	ticker := time.NewTicker(c.opts.KeepAlivePeriod)
	defer ticker.Stop()
	fails := 0
	for range ticker.C {
		if !c.current(gen) {
			return
		}
		pending, err := c.opts.Requests.Request(c.opts.KeepAlivePeriod)
		if err != nil {
			return
		}
		ka := &codec.ConnectionKeepAlivePacket{}
		ka.ReqID = pending.ID()
		if err := c.SendToController(ka); err != nil {
			fails++
		} else if r := <-pending.Done(); r.IsOK() {
			fails = 0
		} else {
			fails++
		}
		if fails >= c.opts.KeepAliveMaxFails {
			log.Warn("keepalive failed %d times, recycling connection", fails)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			c.CloseAndReconnect(ctx)
			cancel()
			return
		}
	}
}

// SendToController sends a packet that terminates at the controller.
func (c *Client) SendToController(p codec.Packet) error {
	return c.SendPacket(p, codec.ControllerID)
}

// SendPacket sends to the named destination; any non-controller destination
// is relayed by the controller without inspection.
func (c *Client) SendPacket(p codec.Packet, to string) error {
	t, err := codec.NewTransfer(c.opts.ID, to, p)
	if err != nil {
		return err
	}
	line, err := t.EncodeLine()
	if err != nil {
		return err
	}
	c.mu.Lock()
	st := c.stream
	c.mu.Unlock()
	if st == nil {
		return ErrNotConnected
	}
	return st.WriteLine(line)
}
