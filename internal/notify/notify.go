// Package notify pushes catalog change events to UDP subscribers. A client
// registers by sending a subscribe datagram and then receives one JSON
// datagram per invalidation until a send to it fails twice.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	synchub "exercisehub/internal/sync"
)

const (
	SubscribeMessageType   = "subscribe"
	UnsubscribeMessageType = "unsubscribe"
)

const maxDatagram = 2048

var ErrNotRunning = errors.New("udp notify server not running")

type SubscribeMessage struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type Client struct {
	ID   string
	Addr *net.UDPAddr
}

type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

func (r *Registry) Register(id string, addr *net.UDPAddr) {
	if id == "" || addr == nil {
		return
	}
	r.mu.Lock()
	r.clients[id] = Client{ID: id, Addr: addr}
	r.mu.Unlock()
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.clients, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) Snapshot() []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

type Server struct {
	addr     string
	registry *Registry
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.RWMutex
	conn *net.UDPConn
}

func NewServer(addr string, registry *Registry, logger *zap.Logger) *Server {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{addr: addr, registry: registry, logger: logger.Named("notify"), now: time.Now}
}

// Listen binds the UDP socket. Serve must be called to accept subscriptions.
func (s *Server) Listen() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.Info("udp notify listening", zap.String("addr", conn.LocalAddr().String()))
	return nil
}

// Addr is the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve reads subscription datagrams until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotRunning
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buffer := make([]byte, maxDatagram)
	for {
		n, addr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		msg, err := parseSubscribeMessage(buffer[:n])
		if err != nil {
			s.logger.Debug("invalid udp message", zap.Stringer("from", addr), zap.Error(err))
			continue
		}
		switch msg.Type {
		case SubscribeMessageType:
			s.registry.Register(msg.ClientID, addr)
			s.logger.Info("udp subscriber registered", zap.String("client", msg.ClientID), zap.Stringer("addr", addr))
			s.send(Client{ID: msg.ClientID, Addr: addr}, s.event(synchub.EventWelcome, "", nil, nil))
		case UnsubscribeMessageType:
			s.registry.Remove(msg.ClientID)
		}
	}
}

// Run is Listen followed by Serve.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// CatalogChanged sends an invalidation event to every subscriber.
func (s *Server) CatalogChanged(code string, tags, paths []string) {
	s.mu.RLock()
	running := s.conn != nil
	s.mu.RUnlock()
	if !running {
		return
	}

	payload := s.event(synchub.EventInvalidated, code, tags, paths)
	if payload == nil {
		return
	}
	for _, client := range s.registry.Snapshot() {
		s.sendWithRetry(client, payload)
	}
}

func (s *Server) event(typ, code string, tags, paths []string) []byte {
	payload, err := json.Marshal(synchub.CatalogEvent{
		Type:  typ,
		Code:  code,
		Tags:  tags,
		Paths: paths,
		At:    s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("marshal event", zap.Error(err))
		return nil
	}
	return payload
}

func (s *Server) sendWithRetry(client Client, payload []byte) {
	if err := s.sendOnce(client, payload); err == nil {
		return
	}
	if err := s.sendOnce(client, payload); err != nil {
		s.logger.Warn("dropping udp subscriber", zap.String("client", client.ID), zap.Stringer("addr", client.Addr), zap.Error(err))
		s.registry.Remove(client.ID)
	}
}

func (s *Server) send(client Client, payload []byte) {
	if payload == nil {
		return
	}
	if err := s.sendOnce(client, payload); err != nil {
		s.logger.Debug("udp send failed", zap.String("client", client.ID), zap.Error(err))
	}
}

func (s *Server) sendOnce(client Client, payload []byte) error {
	if client.Addr == nil {
		return errors.New("missing client address")
	}
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotRunning
	}
	_, err := conn.WriteToUDP(payload, client.Addr)
	return err
}

func parseSubscribeMessage(data []byte) (SubscribeMessage, error) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.ClientID == "" || msg.Type == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}
