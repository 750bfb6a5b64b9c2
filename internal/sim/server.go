// Package sim simulates an iViewX eye tracker on a UDP socket so the client
// can be exercised without hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pyviewx/viewx/logging"
	"github.com/pyviewx/viewx/viewxprotocol"
)

// Server answers iViewX commands on a UDP socket.
type Server struct {
	scenario *Scenario
	tracker  *Tracker
	parser   *viewxprotocol.CommandParser
	logger   logging.Logger
	rng      *rand.Rand

	mu           sync.Mutex
	conn         net.PacketConn
	streamCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer creates a server for sc. logger may be nil.
func NewServer(sc *Scenario, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Server{
		scenario: sc,
		tracker:  NewTracker(sc),
		parser:   &viewxprotocol.CommandParser{AllowUnknown: true},
		logger:   logger,
		rng:      rand.New(rand.NewSource(sc.Seed + 1)),
	}
}

// Tracker returns the simulated instrument state.
func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Listen binds the scenario's listen address.
func (s *Server) Listen() error {
	conn, err := net.ListenPacket("udp", s.scenario.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.scenario.Listen, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info("simulated tracker listening", "addr", conn.LocalAddr().String(), "sample_rate", s.scenario.SampleRate)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// ListenAndServe binds and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve reads commands until ctx is done or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	buf := make([]byte, viewxprotocol.MaxReceiveSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.handle(ctx, conn, string(buf[:n]), addr)
	}
}

func (s *Server) handle(ctx context.Context, conn net.PacketConn, line string, addr net.Addr) {
	cmd, err := s.parser.Parse(line)
	if err != nil {
		s.logger.Warn("ignoring malformed command", "from", addr.String(), "line", line, "error", err)
		return
	}
	s.logger.Debug("command", "from", addr.String(), "command", cmd.Format())

	replies := s.tracker.Handle(cmd)

	switch cmd.Keyword() {
	case viewxprotocol.KeywordStartStreaming:
		s.startStream(conn, addr)
	case viewxprotocol.KeywordStopStreaming:
		s.stopStream()
	}

	if len(replies) == 0 {
		return
	}
	if delay := time.Duration(s.scenario.ReplyDelay); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
	for _, reply := range replies {
		if s.scenario.DropRate > 0 && s.rng.Float64() < s.scenario.DropRate {
			s.logger.Debug("dropped reply", "reply", reply)
			continue
		}
		if _, err := conn.WriteTo([]byte(reply), addr); err != nil {
			s.logger.Warn("write failed", "to", addr.String(), "error", err)
		}
	}
}

func (s *Server) startStream(conn net.PacketConn, addr net.Addr) {
	ok, interval := s.tracker.Streaming()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.streamCancel != nil {
		s.streamCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.streamCancel = cancel
	s.mu.Unlock()

	s.logger.Info("streaming started", "to", addr.String(), "interval", interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := conn.WriteTo([]byte(s.tracker.Sample()), addr); err != nil {
					s.logger.Debug("sample write failed", "error", err)
					return
				}
			}
		}
	}()
}

func (s *Server) stopStream() {
	s.mu.Lock()
	cancel := s.streamCancel
	s.streamCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		s.logger.Info("streaming stopped")
	}
}

// Close stops streaming and closes the socket.
func (s *Server) Close() error {
	s.stopStream()
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	s.wg.Wait()
	return err
}
