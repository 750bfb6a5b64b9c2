package viewxprotocol

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pyviewx/viewx/logging"
)

// EventHandler receives datagrams that matched no pending expectation:
// streamed samples, tracker notifications, and late or duplicate replies.
type EventHandler func(event Reply)

// RefusedHandler is called when the tracker host reports the port closed.
type RefusedHandler func(err error)

// Observer watches traffic on a Channel. Calls are made synchronously from
// the sending goroutine and the receive loop respectively.
//
// CommandSent is called before the datagram is written, so it always
// precedes DatagramReceived for the reply. It is also called for a command
// whose write then fails.
type Observer interface {
	CommandSent(cmd Command)
	DatagramReceived(reply Reply, matched bool)
}

// Channel is the single point of contact with a Transport. It encodes and
// transmits commands, registers expectations in its own CorrelationTable,
// and dispatches inbound datagrams by keyword.
//
// A Channel is safe for concurrent use.
type Channel struct {
	transport Transport
	table     *CorrelationTable
	logger    logging.Logger

	mu          sync.RWMutex
	onUnhandled EventHandler
	onRefused   RefusedHandler
	observer    Observer

	closeOnce     sync.Once
	transportOnce sync.Once
	transportErr  error
}

// NewChannel creates a channel that owns transport. logger may be nil.
func NewChannel(transport Transport, logger logging.Logger) *Channel {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Channel{
		transport: transport,
		table:     NewCorrelationTable(),
		logger:    logger,
	}
}

// SetUnhandledHandler sets the callback for datagrams with no pending expectation.
func (c *Channel) SetUnhandledHandler(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnhandled = handler
}

// SetRefusedHandler sets the callback for connection-refused notifications.
func (c *Channel) SetRefusedHandler(handler RefusedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefused = handler
}

// SetObserver installs a traffic observer. Pass nil to remove it.
func (c *Channel) SetObserver(observer Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = observer
}

// Table returns the channel's correlation table.
func (c *Channel) Table() *CorrelationTable {
	return c.table
}

// Send transmits cmd without expecting a reply. Any reply the tracker
// sends anyway is reported as unhandled.
func (c *Channel) Send(cmd Command) error {
	return c.transmit(cmd, nil)
}

// Expect transmits cmd and registers an expectation for its reply. The
// expectation is registered before the datagram is written, so a reply
// cannot overtake it. handler may be nil when the caller uses the returned
// Pending as a future.
func (c *Channel) Expect(cmd Command, handler ReplyHandler) (*Pending, error) {
	p := NewPending(handler)
	if err := c.transmit(cmd, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Channel) transmit(cmd Command, p *Pending) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	payload := cmd.Encode()
	if len(payload) > MaxDatagramSize {
		return &ValidationError{Keyword: cmd.Keyword(), Kind: ErrKindInvalidValue, Message: ErrLineTooLong.Error()}
	}

	if p != nil {
		if err := c.table.Register(cmd.Keyword(), p); err != nil {
			return err
		}
	}

	c.mu.RLock()
	observer := c.observer
	c.mu.RUnlock()
	if observer != nil {
		observer.CommandSent(cmd)
	}

	if err := c.transport.Send(payload); err != nil {
		if p != nil {
			c.table.withdraw(p, err)
		}
		c.logger.Warn("send failed", "keyword", cmd.Keyword(), "error", err)
		var ce *ConnectionError
		if errors.As(err, &ce) {
			return err
		}
		return NewConnectionError("failed to send "+cmd.Keyword(), err)
	}

	if p != nil {
		c.logger.Debug("command sent", "command", cmd.Format(), "pending_id", p.ID())
	} else {
		c.logger.Debug("command sent", "command", cmd.Format())
	}
	return nil
}

// HandleDatagram dispatches one inbound datagram. The oldest expectation for
// the datagram's keyword is resolved with it; otherwise it goes to the
// unhandled handler. Datagrams without tokens are dropped.
func (c *Channel) HandleDatagram(raw []byte, addr net.Addr) {
	reply, ok := ParseReply(raw)
	if !ok {
		c.logger.Debug("dropped empty datagram", "bytes", len(raw))
		return
	}
	reply.Addr = addr
	reply.ReceivedAt = time.Now()

	matched := c.table.Resolve(reply.Keyword, reply)

	c.mu.RLock()
	observer := c.observer
	handler := c.onUnhandled
	c.mu.RUnlock()

	if observer != nil {
		observer.DatagramReceived(reply, matched)
	}
	if matched {
		return
	}

	c.logger.Debug("unhandled datagram", "keyword", reply.Keyword, "data", reply.Raw)
	if handler != nil {
		handler(reply)
	}
}

// Serve reads datagrams from the transport until ctx is done or the
// transport is closed, dispatching each with HandleDatagram. Connection
// refusals are reported to the refused handler and do not stop the loop.
// It returns nil on orderly shutdown.
func (c *Channel) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.closeTransport() })
	defer stop()

	buf := make([]byte, MaxReceiveSize)
	for {
		n, addr, err := c.transport.Receive(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if errors.Is(err, ErrConnectionRefused) {
				c.reportRefused(err)
				continue
			}
			return NewConnectionError("receive", err)
		}
		c.HandleDatagram(buf[:n], addr)
	}
}

func (c *Channel) reportRefused(err error) {
	c.logger.Warn("tracker refused datagram", "remote", addrString(c.transport.RemoteAddr()), "error", err)

	c.mu.RLock()
	handler := c.onRefused
	c.mu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

func (c *Channel) closeTransport() error {
	c.transportOnce.Do(func() {
		c.transportErr = c.transport.Close()
	})
	return c.transportErr
}

// Close fails all pending expectations with ErrClosed and closes the
// transport. It is safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		if n := c.table.Close(ErrClosed); n > 0 {
			c.logger.Debug("failed pending expectations on close", "count", n)
		}
	})
	return c.closeTransport()
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
