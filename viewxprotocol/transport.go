package viewxprotocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
)

// Transport is a connected, message-oriented link to the tracker. Each Send
// writes exactly one datagram and each Receive returns exactly one.
//
// Receive must return an error wrapping ErrConnectionRefused when the peer
// host reports the port as unreachable, and an error wrapping net.ErrClosed
// once Close has been called.
type Transport interface {
	Send(p []byte) error
	Receive(buf []byte) (n int, addr net.Addr, err error)
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
	io.Closer
}

// UDPTransport is a Transport over a connected UDP socket.
type UDPTransport struct {
	conn *net.UDPConn
}

// Compile-time assertion that UDPTransport implements Transport.
var _ Transport = (*UDPTransport)(nil)

// DialUDP connects a UDP socket to host:port. If localPort is non-zero the
// socket is bound to that local port, which matters for trackers configured
// to answer on a fixed port.
func DialUDP(ctx context.Context, host string, port, localPort int) (*UDPTransport, error) {
	if port <= 0 || port > 65535 {
		return nil, NewConnectionError("invalid port "+strconv.Itoa(port), nil)
	}

	var d net.Dialer
	if localPort > 0 {
		d.LocalAddr = &net.UDPAddr{Port: localPort}
	}

	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, NewConnectionError("failed to dial tracker", err)
	}
	udp, ok := conn.(*net.UDPConn)
	if !ok {
		conn.Close()
		return nil, NewConnectionError(fmt.Sprintf("unexpected connection type %T", conn), nil)
	}
	return &UDPTransport{conn: udp}, nil
}

// NewUDPTransport wraps an already connected UDP socket.
func NewUDPTransport(conn *net.UDPConn) *UDPTransport {
	return &UDPTransport{conn: conn}
}

// Send writes one datagram.
func (t *UDPTransport) Send(p []byte) error {
	n, err := t.conn.Write(p)
	if err != nil {
		if isRefused(err) {
			return NewConnectionError("send", fmt.Errorf("%w: %v", ErrConnectionRefused, err))
		}
		return NewConnectionError("send", err)
	}
	if n != len(p) {
		return NewConnectionError(fmt.Sprintf("short write: %d of %d bytes", n, len(p)), nil)
	}
	return nil
}

// Receive reads one datagram into buf.
func (t *UDPTransport) Receive(buf []byte) (int, net.Addr, error) {
	n, addr, err := t.conn.ReadFrom(buf)
	if err != nil {
		if isRefused(err) {
			return 0, nil, fmt.Errorf("%w: %v", ErrConnectionRefused, err)
		}
		return 0, nil, err
	}
	return n, addr, nil
}

// LocalAddr returns the local socket address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// RemoteAddr returns the tracker address.
func (t *UDPTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// Close closes the socket, unblocking any pending Receive.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
