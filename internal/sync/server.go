package sync

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"
)

// Server accepts line-oriented TCP subscribers.
type Server struct {
	Addr string
	Hub  *Hub

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Listen binds the address; Serve must follow.
func (s *Server) Listen() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Serve accepts clients until ctx is done. It waits for every client
// goroutine before returning.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("sync server: Listen not called")
	}

	logger := s.Hub.logger.With(zap.String("addr", ln.Addr().String()))
	logger.Info("tcp sync listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			continue
		}

		// welcome goes out before the hub can broadcast to this conn
		if err := writeLine(conn, s.Hub.welcome()); err != nil {
			_ = conn.Close()
			continue
		}
		s.Hub.Add(conn)
		logger.Debug("tcp client connected", zap.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer func() {
				s.Hub.Remove(c)
				logger.Debug("tcp client disconnected", zap.String("remote", c.RemoteAddr().String()))
			}()

			stop := context.AfterFunc(ctx, func() { _ = c.Close() })
			defer stop()

			// subscribers only listen; consume anything they send
			sc := bufio.NewScanner(c)
			for sc.Scan() {
			}
		}(conn)
	}
}

// Run is Listen followed by Serve.
func (s *Server) Run(ctx context.Context) error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}
