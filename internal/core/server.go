package core

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Server runs the TCP accept loop and hands connections to the registry.
type Server struct {
	reg  *Registry
	ln   net.Listener
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewServer(reg *Registry) *Server {
	return &Server{reg: reg, quit: make(chan struct{})}
}

// Listen binds addr (host:port; empty host means all interfaces) and starts
// accepting in the background.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	slog.Info("relay listening", "addr", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
			}
			slog.Warn("accept failed", "err", err)
			return
		}

		client, err := s.reg.Admit(conn)
		if err != nil {
			continue // Admit already notified and closed the conn.
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			client.Run()
		}()
	}
}

// Close stops accepting, disconnects every session, and waits for the
// session goroutines to drain.
func (s *Server) Close() {
	close(s.quit)
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.reg.DisconnectAll("Server shutting down")
	s.wg.Wait()
}
