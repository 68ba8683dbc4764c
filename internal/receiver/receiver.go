// Package receiver accepts state pushes from the door sensor.
//
// Protocol: one TCP connection per update carrying the ASCII bytes "True" or
// "False" with no framing. The connection is read until EOF.
package receiver

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/status"
	"github.com/sweeney/door-monitor/internal/transport"
)

const (
	maxPayload  = 64
	readTimeout = 5 * time.Second
)

// Server listens for pushes and writes them into a DataHandler.
type Server struct {
	data     *status.DataHandler
	log      *logger.Logger
	onUpdate func(open bool)

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithUpdateHook registers fn to be called after every accepted push.
func WithUpdateHook(fn func(open bool)) Option {
	return func(s *Server) { s.onUpdate = fn }
}

// New creates a Server that is not yet listening.
func New(data *status.DataHandler, log *logger.Logger, opts ...Option) *Server {
	s := &Server{data: data, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds addr and starts accepting in the background.
// It is a no-op if the server is already listening.
func (s *Server) Listen(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ln)
	}()

	s.log.Infow("receiver listening", "addr", ln.Addr().String())
	return nil
}

// Bound reports whether a listener is active.
func (s *Server) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ln != nil
}

// Addr returns the bound address, or nil if not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting and waits for in-flight connections to finish.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.ln
	s.ln = nil
	s.mu.Unlock()

	if ln == nil {
		return nil
	}
	err := ln.Close()
	s.wg.Wait()
	s.log.Infow("receiver closed")
	return err
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warnw("accept error", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	payload, err := io.ReadAll(io.LimitReader(conn, maxPayload))
	if err != nil {
		s.log.Warnw("read push", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}

	open := transport.Decode(payload)
	s.data.Set(open)
	s.log.Debugw("push received", "remote", conn.RemoteAddr().String(), "open", open)

	if s.onUpdate != nil {
		s.onUpdate(open)
	}
}
