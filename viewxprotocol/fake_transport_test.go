package viewxprotocol

import (
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeTransport is an in-memory Transport. Datagrams queued with inject are
// returned by Receive; everything written with Send is recorded.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []string
	sendErr error

	// onSend, if set, is called after each successful Send with the line
	// written (terminator removed). Tests use it to script replies.
	onSend func(line string)

	inbox     chan fakeDatagram
	closed    chan struct{}
	closeOnce sync.Once
}

type fakeDatagram struct {
	data string
	err  error
}

var fakeRemote = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DefaultPort}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:  make(chan fakeDatagram, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) Send(p []byte) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	line := strings.TrimSuffix(string(p), LineTerminator)
	f.sent = append(f.sent, line)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook(line)
	}
	return nil
}

func (f *fakeTransport) Receive(buf []byte) (int, net.Addr, error) {
	select {
	case <-f.closed:
		return 0, nil, net.ErrClosed
	default:
	}
	select {
	case d := <-f.inbox:
		if d.err != nil {
			return 0, nil, d.err
		}
		return copy(buf, d.data), fakeRemote, nil
	case <-f.closed:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeTransport) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func (f *fakeTransport) RemoteAddr() net.Addr {
	return fakeRemote
}

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) inject(data string) {
	f.inbox <- fakeDatagram{data: data}
}

func (f *fakeTransport) injectErr(err error) {
	f.inbox <- fakeDatagram{err: err}
}

func (f *fakeTransport) setSendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) setOnSend(hook func(line string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSend = hook
}

func (f *fakeTransport) sentLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// replyWith returns an onSend hook answering keyword with reply.
func (f *fakeTransport) replyWith(keyword, reply string) func(string) {
	return func(line string) {
		if strings.HasPrefix(line, keyword) {
			f.inject(reply)
		}
	}
}

// waitFor polls cond until it is true or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}
