package viewxprotocol

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pyviewx/viewx/logging"
)

// DisconnectHandler is a callback function called when the connection is lost.
type DisconnectHandler func(err error)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver installs a traffic observer on every channel the client opens.
func WithObserver(observer Observer) ClientOption {
	return func(c *Client) { c.observer = observer }
}

// WithProbe sets the timeout of the ET_SRT liveness probe sent on connect.
// A zero timeout disables the probe.
func WithProbe(timeout time.Duration) ClientOption {
	return func(c *Client) { c.probeTimeout = timeout }
}

// WithLocalPort binds the client socket to a fixed local UDP port.
func WithLocalPort(port int) ClientOption {
	return func(c *Client) { c.localPort = port }
}

// Client is a UDP client for an iViewX eye tracker.
//
// It owns one Channel at a time and runs a reader goroutine that dispatches
// replies to pending commands and everything else to the event handler.
//
// Thread Safety:
// The client uses a mutex to protect its state and is safe for concurrent
// use from multiple goroutines. Handlers run on the reader goroutine and
// must not call Disconnect.
type Client struct {
	mu sync.Mutex

	channel     *Channel
	isConnected bool

	// Handlers for unmatched datagrams and connection events
	eventHandler      EventHandler
	refusedHandler    RefusedHandler
	disconnectHandler DisconnectHandler

	logger       logging.Logger
	observer     Observer
	probeTimeout time.Duration
	localPort    int

	// refused carries connection-refused notifications to a running probe
	refused chan error

	// Cancellation for the reader goroutine
	cancelReader context.CancelFunc
	readerDone   chan struct{}
}

// NewClient creates a new tracker client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:       logging.NoOpLogger{},
		probeTimeout: ProbeTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEventHandler sets the callback for datagrams that match no pending command.
func (c *Client) SetEventHandler(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventHandler = handler
}

// SetRefusedHandler sets the callback for connection-refused notifications.
func (c *Client) SetRefusedHandler(handler RefusedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refusedHandler = handler
}

// SetDisconnectHandler sets the callback for unexpected disconnection.
func (c *Client) SetDisconnectHandler(handler DisconnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectHandler = handler
}

// IsConnected returns true if the client is currently connected.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// RemoteAddr returns the tracker address, or nil if not connected.
func (c *Client) RemoteAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isConnected {
		return nil
	}
	return c.channel.transport.RemoteAddr()
}

// Connect connects to a tracker at host:port.
func (c *Client) Connect(host string, port int) error {
	return c.ConnectWithContext(context.Background(), host, port)
}

// ConnectWithContext connects to a tracker with a context for cancellation.
func (c *Client) ConnectWithContext(ctx context.Context, host string, port int) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}

	dialCtx, cancel := context.WithTimeout(ctx, ConnectionTimeout)
	defer cancel()

	c.mu.Lock()
	localPort := c.localPort
	c.mu.Unlock()

	t, err := DialUDP(dialCtx, host, port, localPort)
	if err != nil {
		return err
	}
	if err := c.ConnectTransport(ctx, t); err != nil {
		if errors.Is(err, ErrAlreadyConnected) {
			t.Close()
		}
		return err
	}
	return nil
}

// ConnectTransport attaches the client to an already connected transport.
// The client takes ownership of t and closes it on Disconnect.
func (c *Client) ConnectTransport(ctx context.Context, t Transport) error {
	c.mu.Lock()
	if c.isConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	ch := NewChannel(t, c.logger)
	ch.SetUnhandledHandler(c.dispatchEvent)
	ch.SetRefusedHandler(c.dispatchRefused)
	if c.observer != nil {
		ch.SetObserver(c.observer)
	}

	c.channel = ch
	c.isConnected = true
	c.refused = make(chan error, 1)

	readerCtx, cancelReader := context.WithCancel(context.Background())
	c.cancelReader = cancelReader
	c.readerDone = make(chan struct{})

	go c.readerLoop(readerCtx, ch, c.readerDone)
	probeTimeout := c.probeTimeout
	refused := c.refused
	c.mu.Unlock()

	c.logger.Info("connected", "remote", addrString(t.RemoteAddr()), "local", addrString(t.LocalAddr()))

	if probeTimeout <= 0 {
		return nil
	}
	if err := c.probe(ctx, ch, refused, probeTimeout); err != nil {
		c.Disconnect()
		return NewConnectionError("tracker did not answer probe", err)
	}
	return nil
}

// probe sends ET_SRT and waits for the answer. UDP has no handshake, so
// this is the only way to learn whether a tracker is listening.
func (c *Client) probe(ctx context.Context, ch *Channel, refused <-chan error, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p, err := ch.Expect(NewGetSampleRateCommand(), nil)
	if err != nil {
		return err
	}

	select {
	case <-p.Done():
		_, err := p.Result()
		return err
	case err := <-refused:
		ch.Table().CancelWithCause(p, err)
		return err
	case <-probeCtx.Done():
		if ch.Table().CancelWithCause(p, contextCause(probeCtx)) {
			return contextCause(probeCtx)
		}
		_, err := p.Result()
		return err
	}
}

// Disconnect disconnects from the tracker. Pending commands fail with ErrClosed.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return
	}

	c.isConnected = false
	ch := c.channel
	cancelReader := c.cancelReader
	done := c.readerDone
	c.mu.Unlock()

	if cancelReader != nil {
		cancelReader()
	}
	if err := ch.Close(); err != nil {
		c.logger.Debug("close transport", "error", err)
	}

	// Wait for reader to finish (outside lock to avoid deadlock)
	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.channel = nil
	c.refused = nil
	c.cancelReader = nil
	c.readerDone = nil
	c.mu.Unlock()

	c.logger.Info("disconnected")
}

func (c *Client) currentChannel() (*Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isConnected {
		return nil, ErrNotConnected
	}
	return c.channel, nil
}

// Send transmits cmd without waiting for a reply.
func (c *Client) Send(cmd Command) error {
	ch, err := c.currentChannel()
	if err != nil {
		return err
	}
	return ch.Send(cmd)
}

// Go transmits cmd and calls handler once its reply arrives or the
// expectation fails. The returned Pending can be used to cancel it.
func (c *Client) Go(cmd Command, handler ReplyHandler) (*Pending, error) {
	ch, err := c.currentChannel()
	if err != nil {
		return nil, err
	}
	return ch.Expect(cmd, handler)
}

// Call transmits cmd and waits for its reply.
//
// When ctx ends first the expectation is cancelled and Call returns
// ErrTimeout (deadline) or ErrCanceled. Commands the tracker never answers
// (see ExpectsReply) are sent and Call returns a zero Reply immediately.
func (c *Client) Call(ctx context.Context, cmd Command) (Reply, error) {
	ch, err := c.currentChannel()
	if err != nil {
		return Reply{}, err
	}

	if !cmd.ExpectsReply() {
		return Reply{}, ch.Send(cmd)
	}

	p, err := ch.Expect(cmd, nil)
	if err != nil {
		return Reply{}, err
	}

	select {
	case <-p.Done():
		return p.Result()
	case <-ctx.Done():
		cause := contextCause(ctx)
		if ch.Table().CancelWithCause(p, cause) {
			c.logger.Debug("call abandoned", "keyword", cmd.Keyword(), "pending_id", p.ID(), "error", cause)
			return Reply{}, cause
		}
		// Resolved while we were giving up.
		return p.Result()
	}
}

// CallWithTimeout is Call with a timeout. A non-positive timeout waits forever.
func (c *Client) CallWithTimeout(cmd Command, timeout time.Duration) (Reply, error) {
	if timeout <= 0 {
		return c.Call(context.Background(), cmd)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Call(ctx, cmd)
}

// PendingCount returns the number of commands awaiting a reply.
func (c *Client) PendingCount() int {
	ch, err := c.currentChannel()
	if err != nil {
		return 0
	}
	return ch.Table().Len()
}

// PendingByKeyword returns the number of commands awaiting a reply per keyword.
func (c *Client) PendingByKeyword() map[string]int {
	out := make(map[string]int)
	ch, err := c.currentChannel()
	if err != nil {
		return out
	}
	table := ch.Table()
	for _, kw := range table.Keywords() {
		if n := table.PendingFor(kw); n > 0 {
			out[kw] = n
		}
	}
	return out
}

// CancelPending cancels every pending command for keyword, or every pending
// command when keyword is empty. It returns the number cancelled.
func (c *Client) CancelPending(keyword string) int {
	ch, err := c.currentChannel()
	if err != nil {
		return 0
	}
	table := ch.Table()

	keywords := []string{keyword}
	if keyword == "" {
		keywords = table.Keywords()
	}

	n := 0
	for _, kw := range keywords {
		for p := table.Oldest(kw); p != nil; p = table.Oldest(kw) {
			if table.Cancel(p) {
				n++
			}
		}
	}
	return n
}

// readerLoop serves the channel until it is closed or fails.
func (c *Client) readerLoop(ctx context.Context, ch *Channel, done chan struct{}) {
	err := ch.Serve(ctx)
	close(done)
	if err != nil {
		c.handleDisconnect(ch, err)
	}
}

func (c *Client) dispatchEvent(event Reply) {
	c.mu.Lock()
	handler := c.eventHandler
	c.mu.Unlock()

	if handler != nil {
		handler(event)
	}
}

func (c *Client) dispatchRefused(err error) {
	c.mu.Lock()
	handler := c.refusedHandler
	refused := c.refused
	c.mu.Unlock()

	if refused != nil {
		select {
		case refused <- err:
		default:
		}
	}
	if handler != nil {
		handler(err)
	}
}

// handleDisconnect handles an unexpected read failure.
func (c *Client) handleDisconnect(ch *Channel, err error) {
	c.mu.Lock()
	if !c.isConnected || c.channel != ch {
		c.mu.Unlock()
		return
	}

	c.isConnected = false
	handler := c.disconnectHandler
	c.channel = nil
	c.refused = nil
	c.cancelReader = nil
	c.readerDone = nil
	c.mu.Unlock()

	c.logger.Error("connection lost", "error", err)
	ch.Close()

	if handler != nil {
		handler(err)
	}
}

func contextCause(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrCanceled
}
